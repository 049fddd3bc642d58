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
	DBPath    string
	UploadDir string
	OutputDir string

	// Matcher thresholds. Test suites probe the boundaries, so these must
	// stay configurable rather than hard-coded.
	MatchMinScore     float64
	DateToleranceDays int

	// Evaluator tolerances: an amount matches when the difference is within
	// max(pct of reference, abs rupees).
	AmountTolerancePct float64
	AmountToleranceAbs float64

	// Compliance classification.
	MinorIssueLimit   int
	MatchedRatioFloor float64

	// GST portal API (GSTR2B fetch).
	GSTAPIBaseURL    string
	GSTAPIToken      string
	GSTAPIRateLimRPS int
	GSTAPITimeoutMs  int

	HTTPAddr    string
	CORSOrigins []string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	InboxProvider    string
	InboxLabel       string
	InboxIntervalSec int
	InboxFetchMax    int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "gstrecon.db")),
		UploadDir: getEnv("UPLOAD_DIR", filepath.Join(cwd, "data", "uploads")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		MatchMinScore:     getEnvFloat("MATCH_MIN_SCORE", 0.60),
		DateToleranceDays: getEnvInt("DATE_TOLERANCE_DAYS", 0),

		AmountTolerancePct: getEnvFloat("AMOUNT_TOLERANCE_PCT", 1.0),
		AmountToleranceAbs: getEnvFloat("AMOUNT_TOLERANCE_ABS", 1.0),

		MinorIssueLimit:   getEnvInt("MINOR_ISSUE_LIMIT", 3),
		MatchedRatioFloor: getEnvFloat("MATCHED_RATIO_FLOOR", 0.8),

		GSTAPIBaseURL:    getEnv("GST_API_BASE_URL", "https://api.gst.gov.in/taxpayerapi/v1"),
		GSTAPIToken:      getEnv("GST_API_TOKEN", ""),
		GSTAPIRateLimRPS: getEnvInt("GST_API_RATE_LIMIT_RPS", 2),
		GSTAPITimeoutMs:  getEnvInt("GST_API_TIMEOUT_MS", 30000),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		InboxProvider:    getEnv("INBOX_PROVIDER", "imap"),
		InboxLabel:       getEnv("INBOX_LABEL", "INBOX"),
		InboxIntervalSec: getEnvInt("INBOX_INTERVAL_SEC", 60),
		InboxFetchMax:    getEnvInt("INBOX_FETCH_MAX", 20),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
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

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
