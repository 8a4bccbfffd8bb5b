package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"

	"github.com/lchiayu/cardfeed/pkg/client"
	"github.com/lchiayu/cardfeed/pkg/config"
)

// runSetup handles the OAuth setup flow.
func runSetup(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	secretsPath := fs.String("secrets", config.ClientSecretFile, "path to Google OAuth credentials")
	force := fs.Bool("force", false, "re-authenticate even if a token exists")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*secretsPath); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", *secretsPath, *secretsPath)
	}

	if !*force {
		if _, err := os.Stat(config.TokenFile); err == nil {
			fmt.Printf("Already authenticated! Token file exists: %s\n", config.TokenFile)
			fmt.Println("To re-authenticate, run: cardfeed setup -force")
			return nil
		}
	}
	if *force {
		if err := os.Remove(config.TokenFile); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove existing token", "error", err)
		}
		fmt.Println("Forcing re-authentication...")
	}

	fmt.Println("Required permissions:")
	fmt.Println("  - Gmail: read bank notification emails")
	fmt.Println("  - Sheets: read and append ledger rows")
	fmt.Println()
	fmt.Println("Starting authentication...")

	_, err := client.New(
		*secretsPath,
		config.TokenFile,
		gmail.GmailReadonlyScope,
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Printf("Setup complete. Token saved to: %s\n", config.TokenFile)
	fmt.Println("Run 'cardfeed run' to start ingesting transactions.")
	return nil
}
