// Package config builds the monitor's configuration from environment
// variables and the monitored-target input files. The struct is constructed
// once at startup and passed into every component; there is no ambient
// global state.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrConfiguration marks invalid configuration; fatal at startup.
var ErrConfiguration = errors.New("invalid configuration")

// Config holds every knob the monitor consumes.
type Config struct {
	DatabaseDSN      string
	TelegramBotToken string

	// Source adapter retry policy.
	HTTPRetries        int
	HTTPBaseRetryPause time.Duration

	// Fuzzy subcategory resolution.
	SearchMinChars          int
	SearchMaxSuffix         int
	MaxMatchedSubcategories int

	// Price-slot discovery and consensus.
	SlotMinSamples          int
	SlotMaxSamples          int
	SlotMinConsensusPercent int
	MaxPlausibleDiscount    int
	CatalogPagesPerProbe    int

	// Notification rate limiting.
	ReportChangesDelay time.Duration
	ReportErrorsDelay  time.Duration

	// Monitored-target input files.
	AdminContactsFile  string
	ReportContactsFile string
	ArticlesFile       string
	CategoriesFile     string

	// Optional per-run xlsx report directory; empty disables export.
	ExportDir string

	// Daemon settings.
	MonitorInterval time.Duration
	APIAddr         string
}

// Load collects configuration from environment with defaults. Call Validate
// before using the result.
func Load() *Config {
	return &Config{
		DatabaseDSN:      getEnv("DATABASE_DSN", "sppmon:sppmon@tcp(127.0.0.1:3306)/sppmon?charset=utf8mb4&parseTime=True&loc=UTC"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		HTTPRetries:        intEnv("HTTP_RETRIES", 5),
		HTTPBaseRetryPause: durEnvMs("HTTP_BASE_RETRY_PAUSE_MS", 500),

		SearchMinChars:          intEnv("SEARCH_MIN_CHARS", 4),
		SearchMaxSuffix:         intEnv("SEARCH_MAX_SUFFIX", 6),
		MaxMatchedSubcategories: intEnv("MAX_MATCHED_SUBCATEGORIES", 3),

		SlotMinSamples:          intEnv("SLOT_MIN_SAMPLES", 10),
		SlotMaxSamples:          intEnv("SLOT_MAX_SAMPLES", 20),
		SlotMinConsensusPercent: intEnv("SLOT_MIN_CONSENSUS_PERCENT", 60),
		MaxPlausibleDiscount:    intEnv("MAX_PLAUSIBLE_DISCOUNT", 50),
		CatalogPagesPerProbe:    intEnv("CATALOG_PAGES_PER_PROBE", 2),

		ReportChangesDelay: durEnvS("REPORT_CHANGES_DELAY_S", 3600),
		ReportErrorsDelay:  durEnvS("REPORT_ERRORS_DELAY_S", 4*3600),

		AdminContactsFile:  getEnv("ADMIN_CONTACTS_FILE", "contacts_admins.txt"),
		ReportContactsFile: getEnv("REPORT_CONTACTS_FILE", "contacts_users.txt"),
		ArticlesFile:       getEnv("MONITOR_ARTICLES_FILE", "articles.txt"),
		CategoriesFile:     getEnv("MONITOR_CATEGORIES_FILE", "categories.txt"),

		ExportDir: getEnv("EXPORT_DIR", ""),

		MonitorInterval: durEnvS("MONITOR_INTERVAL_S", 1800),
		APIAddr:         getEnv("API_ADDR", ":8080"),
	}
}

// Validate rejects configurations that would make the discovery floor or the
// consensus thresholds meaningless.
func (c *Config) Validate() error {
	switch {
	case c.HTTPRetries < 0:
		return errors.Mark(errors.Newf("HTTP_RETRIES must be >= 0, got %d", c.HTTPRetries), ErrConfiguration)
	case c.SearchMinChars < 1:
		return errors.Mark(errors.Newf("SEARCH_MIN_CHARS must be >= 1, got %d", c.SearchMinChars), ErrConfiguration)
	case c.SearchMaxSuffix < 0:
		return errors.Mark(errors.Newf("SEARCH_MAX_SUFFIX must be >= 0, got %d", c.SearchMaxSuffix), ErrConfiguration)
	case c.MaxMatchedSubcategories < 1:
		return errors.Mark(errors.Newf("MAX_MATCHED_SUBCATEGORIES must be >= 1, got %d", c.MaxMatchedSubcategories), ErrConfiguration)
	case c.SlotMinSamples < 1:
		return errors.Mark(errors.Newf("SLOT_MIN_SAMPLES must be >= 1, got %d", c.SlotMinSamples), ErrConfiguration)
	case c.SlotMaxSamples < c.SlotMinSamples:
		return errors.Mark(errors.Newf("SLOT_MAX_SAMPLES must be >= SLOT_MIN_SAMPLES, got %d < %d", c.SlotMaxSamples, c.SlotMinSamples), ErrConfiguration)
	case c.SlotMinConsensusPercent < 1 || c.SlotMinConsensusPercent > 100:
		return errors.Mark(errors.Newf("SLOT_MIN_CONSENSUS_PERCENT must be in [1, 100], got %d", c.SlotMinConsensusPercent), ErrConfiguration)
	case c.MaxPlausibleDiscount < 0 || c.MaxPlausibleDiscount >= 100:
		// 100 would collapse the discovery floor to zero
		return errors.Mark(errors.Newf("MAX_PLAUSIBLE_DISCOUNT must be in [0, 100), got %d", c.MaxPlausibleDiscount), ErrConfiguration)
	case c.CatalogPagesPerProbe < 1:
		return errors.Mark(errors.Newf("CATALOG_PAGES_PER_PROBE must be >= 1, got %d", c.CatalogPagesPerProbe), ErrConfiguration)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func durEnvMs(key string, defaultMs int) time.Duration {
	return time.Duration(intEnv(key, defaultMs)) * time.Millisecond
}

func durEnvS(key string, defaultS int) time.Duration {
	return time.Duration(intEnv(key, defaultS)) * time.Second
}
