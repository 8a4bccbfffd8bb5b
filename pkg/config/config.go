// Package config loads the application configuration from an optional JSON
// file overlaid with environment variables.
package config

import (
	"encoding/json"
	"os"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// ClientSecretFile is the default path to the Google OAuth credentials JSON file.
const ClientSecretFile = "data/client_secret.json"

// TokenFile is the default path to the cached OAuth token.
const TokenFile = "data/token.json"

// DefaultHeader is the ledger header used when no valid HEADER override is
// configured. Column order is the persisted row order plus the
// externally-managed flow column.
var DefaultHeader = []string{
	"已記帳", "銀行", "授權日期時間", "卡末四碼", "金額_NTD",
	"交易內容/商店", "類別", "Gmail連結", "MessageId",
}

// Config holds the application configuration.
type Config struct {
	// TZ is the civil timezone the deployment operates in.
	TZ string `koanf:"TZ"`

	// SpreadsheetID identifies the ledger spreadsheet. Mandatory for the
	// sheets backend.
	SpreadsheetID string `koanf:"SPREADSHEET_ID"`
	// SheetName is the ledger tab within the spreadsheet.
	SheetName string `koanf:"SHEET_NAME"`
	// HeaderJSON optionally overrides the header row as a JSON array.
	// Malformed overrides fall back to DefaultHeader silently.
	HeaderJSON string `koanf:"HEADER"`

	// WindowDays is the inclusive ingestion window length in days.
	WindowDays int `koanf:"WINDOW_DAYS"`

	// Per-source mail scope expressions.
	FubonQuerySubject   string `koanf:"FUBON_QUERY_SUBJECT"`
	CathayLabel         string `koanf:"CATHAY_LABEL"`
	CathaySubject       string `koanf:"CATHAY_SUBJECT"`
	CathayTransferQuery string `koanf:"CATHAY_TRANSFER_QUERY"`

	// StoreBackend selects the ledger store: "sheets" or "postgres".
	StoreBackend string `koanf:"STORE_BACKEND"`

	// LockFile is the advisory lock path for a run.
	LockFile string `koanf:"LOCK_FILE"`

	// PostgreSQL settings, used when StoreBackend is "postgres".
	PGHost     string `koanf:"PG_HOST"`
	PGPort     int    `koanf:"PG_PORT"`
	PGDatabase string `koanf:"PG_DATABASE"`
	PGUser     string `koanf:"PG_USER"`
	PGPassword string `koanf:"PG_PASSWORD"`
	PGSSLMode  string `koanf:"PG_SSLMODE"`
}

// Load reads configPath (when it exists) and overlays environment variables.
// A missing SpreadsheetID with the sheets backend is a fatal configuration
// error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), kjson.Parser()); err != nil {
				return nil, errors.Wrapf(err, "loading config file %s", configPath)
			}
		}
	}
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, errors.Wrap(err, "loading config from environment")
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	cfg.applyDefaults()

	if cfg.StoreBackend == "sheets" && cfg.SpreadsheetID == "" {
		return nil, errors.New("missing required config: SPREADSHEET_ID")
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TZ == "" {
		c.TZ = "Asia/Taipei"
	}
	if c.SheetName == "" {
		c.SheetName = "Transactions"
	}
	if c.WindowDays <= 0 {
		c.WindowDays = 15
	}
	if c.FubonQuerySubject == "" {
		c.FubonQuerySubject = `(subject:"即時消費通知" OR subject:"富邦信用卡消費通知" OR subject:"富邦信用卡即時消費通知")`
	}
	if c.CathayLabel == "" {
		c.CathayLabel = "國泰世華消費"
	}
	if c.CathaySubject == "" {
		c.CathaySubject = "消費彙整通知"
	}
	if c.CathayTransferQuery == "" {
		c.CathayTransferQuery = `from:cathaybk subject:"CUBE App轉帳通知"`
	}
	if c.StoreBackend == "" {
		c.StoreBackend = "sheets"
	}
	if c.LockFile == "" {
		c.LockFile = "data/cardfeed.lock"
	}
}

// Header returns the configured header row, falling back to DefaultHeader
// when the override is absent or not a non-empty JSON string array.
func (c *Config) Header() []string {
	if c.HeaderJSON == "" {
		return DefaultHeader
	}
	var header []string
	if err := json.Unmarshal([]byte(c.HeaderJSON), &header); err != nil || len(header) == 0 {
		return DefaultHeader
	}
	return header
}
