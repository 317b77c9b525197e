package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	MinYear = 2020
	MaxYear = 2030
)

type Config struct {
	// HTTP Server
	Port string

	// Vendor credentials and query
	UnionID       string
	Authorization string
	Year          int
	BaseURL       string
	Timeout       time.Duration
	TraceID       string

	// Household identifiers
	CourtUUID        string
	UserErpID        string
	ResidenceHouseID string
	ParkingHouseID   string
	PendingID        string
	HouseUUID        string

	// Refresh
	ScanInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Latest snapshot store; empty disables it
	SQLiteDBPath string

	// AMQP; empty URL disables notifications
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
	AMQPQueue      string

	// Google Sheets mirror; empty spreadsheet ID disables it
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		UnionID:       getEnv("HENGDA_UNION_ID", ""),
		Authorization: getEnv("HENGDA_AUTHORIZATION", ""),
		Year:          getEnvInt("HENGDA_YEAR", time.Now().Year()),
		BaseURL:       getEnv("HENGDA_BASE_URL", "https://h5.hengdayun.com"),
		Timeout:       getEnvDuration("HENGDA_TIMEOUT", 30*time.Second),
		TraceID:       getEnv("HENGDA_TRACE_ID", ""),

		CourtUUID:        getEnv("HENGDA_COURT_UUID", "fjpthdyjbd20191025750269b2bunscp"),
		UserErpID:        getEnv("HENGDA_USER_ERP_ID", "1156528"),
		ResidenceHouseID: getEnv("HENGDA_RESIDENCE_HOUSE_ID", "1217951"),
		ParkingHouseID:   getEnv("HENGDA_PARKING_HOUSE_ID", "1569520"),
		PendingID:        getEnv("HENGDA_PENDING_ID", "1456921"),
		HouseUUID:        getEnv("HENGDA_HOUSE_UUID", "fa7db2f5f48d4f7c91463bc2e9837408"),

		ScanInterval: getEnvDuration("SCAN_INTERVAL", 24*time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/propertyfees.db"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "propertyfees"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "snapshot.updated"),
		AMQPQueue:      getEnv("AMQP_QUEUE", "propertyfees.watch"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "物业费"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.UnionID) == "" {
		errors = append(errors, "HENGDA_UNION_ID is required")
	}
	if strings.TrimSpace(c.Authorization) == "" {
		errors = append(errors, "HENGDA_AUTHORIZATION is required")
	}
	if c.Year < MinYear || c.Year > MaxYear {
		errors = append(errors, fmt.Sprintf("invalid year %d: must be between %d and %d", c.Year, MinYear, MaxYear))
	}

	if parsedURL, err := url.Parse(c.BaseURL); err != nil || parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid vendor base URL '%s'", c.BaseURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid vendor base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.Timeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid vendor timeout %v: must be positive", c.Timeout))
	}

	if c.ScanInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid scan interval %v: must be at least 1 minute", c.ScanInterval))
	}

	for name, v := range map[string]string{
		"HENGDA_COURT_UUID":         c.CourtUUID,
		"HENGDA_USER_ERP_ID":        c.UserErpID,
		"HENGDA_RESIDENCE_HOUSE_ID": c.ResidenceHouseID,
		"HENGDA_PARKING_HOUSE_ID":   c.ParkingHouseID,
		"HENGDA_PENDING_ID":         c.PendingID,
		"HENGDA_HOUSE_UUID":         c.HouseUUID,
	} {
		if strings.TrimSpace(v) == "" {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", name))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the sheet mirror")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
