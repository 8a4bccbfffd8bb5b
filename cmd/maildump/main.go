// Command maildump fetches the messages a source query would ingest and
// dumps their bodies to files. Used to collect notification samples for unit
// tests and for tuning the extraction chains.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/lchiayu/cardfeed/pkg/api"
	"github.com/lchiayu/cardfeed/pkg/client"
	"github.com/lchiayu/cardfeed/pkg/config"
	"github.com/lchiayu/cardfeed/pkg/logging"
	gmailreader "github.com/lchiayu/cardfeed/pkg/reader/gmail"
)

const dumpDir = "tests/data/dump"

func main() {
	logger := logging.Setup(logging.FromEnv())

	query := flag.String("query", "", "mail search query to dump")
	max := flag.Int64("max", 10, "maximum messages to dump")
	secretsPath := flag.String("secrets", config.ClientSecretFile, "path to Google OAuth credentials")
	flag.Parse()

	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: maildump -query '<gmail search>' [-max N]")
		os.Exit(2)
	}

	httpClient, err := client.New(*secretsPath, config.TokenFile, gmail.GmailReadonlyScope)
	if err != nil {
		logger.Error("failed to create http client", "error", err)
		os.Exit(1)
	}

	fetcher, err := gmailreader.New(httpClient, logger)
	if err != nil {
		logger.Error("failed to create gmail fetcher", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		logger.Error("failed to create dump directory", "error", err)
		os.Exit(1)
	}

	msgs, err := fetcher.Fetch(context.Background(), *query, *max)
	if err != nil {
		logger.Error("failed to fetch messages", "error", err)
		os.Exit(1)
	}

	dumped := 0
	for _, msg := range msgs {
		if err := dumpMessage(msg, logger); err != nil {
			logger.Warn("failed to dump message", "message_id", msg.ID, "error", err)
			continue
		}
		dumped++
	}

	logger.Info("mail dump complete", "dumped", dumped, "directory", dumpDir)
}

func dumpMessage(msg *api.Message, logger *slog.Logger) error {
	body := msg.Plain
	suffix := "plain"
	if body == "" {
		body = msg.HTML
		suffix = "html"
	}
	if body == "" {
		return fmt.Errorf("empty message body")
	}

	filename := sanitizeFilename(fmt.Sprintf("%s_%s_%s.%s.txt",
		msg.Sent.Format("2006-01-02_150405"), msg.ID, msg.Subject, suffix))
	path := filepath.Join(dumpDir, filename)

	if _, err := os.Stat(path); err == nil {
		logger.Debug("file already exists, skipping", "file", filename)
		return nil
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	logger.Info("dumped message", "file", filename, "subject", msg.Subject)
	return nil
}

var (
	unsafeRe     = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	underscoreRe = regexp.MustCompile(`_+`)
)

func sanitizeFilename(name string) string {
	name = unsafeRe.ReplaceAllString(name, "_")
	name = underscoreRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}
