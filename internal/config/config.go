package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	YNABAPIBaseURL   string
	YNABToken        string
	YNABBudgetID     string
	YNABPayeeFilter  string
	YNABRateLimitRPS int
	YNABTimeoutMs    int

	// Matching tolerances, as configured upstream: days apart and whole
	// currency units apart.
	DateToleranceDays   float64
	DollarTolerance     float64
	ExtractConcurrency  int
	ApproveOnMemoUpdate bool

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool
	IMAPFromAddr string

	MailListenerProvider    string
	MailListenerLabel       string
	MailListenerIntervalSec int
	MailListenerFetchMax    int
	MailListenerAutoExport  bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		YNABAPIBaseURL:   getEnv("YNAB_API_BASE_URL", "https://api.ynab.com/v1"),
		YNABToken:        getEnv("YNAB_TOKEN", ""),
		YNABBudgetID:     getEnv("YNAB_BUDGET_ID", ""),
		YNABPayeeFilter:  getEnv("YNAB_PAYEE_FILTER", "amazon"),
		YNABRateLimitRPS: getEnvInt("YNAB_RATE_LIMIT_RPS", 2),
		YNABTimeoutMs:    getEnvInt("YNAB_TIMEOUT_MS", 30000),

		DateToleranceDays:   getEnvFloat("YNAB_ACCEPTABLE_DATE_DIFFERENCE", 4),
		DollarTolerance:     getEnvFloat("YNAB_ACCEPTABLE_DOLLAR_DIFFERENCE", 0.5),
		ExtractConcurrency:  getEnvInt("EXTRACT_CONCURRENCY", 4),
		ApproveOnMemoUpdate: getEnvBool("YNAB_APPROVE_ON_UPDATE", false),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_INCOMING_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_INCOMING_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_TLS", true),
		IMAPUser:     getEnv("IMAP_USERNAME", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),
		IMAPFromAddr: getEnv("IMAP_FROM_FILTER", "auto-confirm@amazon.com"),

		MailListenerProvider:    getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:       getEnv("IMAP_INBOX_NAME", "INBOX"),
		MailListenerIntervalSec: getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:    getEnvInt("MAIL_LISTENER_FETCH_MAX", 50),
		MailListenerAutoExport:  getEnvBool("MAIL_LISTENER_AUTO_EXPORT", false),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// DateToleranceMs is the date tolerance converted to absolute
// milliseconds between order and transaction dates.
func (c Config) DateToleranceMs() int64 {
	return int64(c.DateToleranceDays * 86400 * 1000)
}

// PriceToleranceMilli is the dollar tolerance converted to milliunits.
func (c Config) PriceToleranceMilli() int64 {
	return int64(c.DollarTolerance * 1000)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
