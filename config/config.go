package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"outreachd/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
	location  *time.Location
)

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`
	SentryDSN   string `json:"-"`

	EncryptionKey string `json:"-" validate:"required,len=32"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-" validate:"required"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	// Worker loop
	WorkerID              string `json:"worker_id" validate:"required"`
	WorkerIntervalSeconds int    `json:"worker_interval_seconds" validate:"min=1"`
	WorkerLockTTLMinutes  int    `json:"worker_lock_ttl_minutes" validate:"min=1"`
	WorkerTimezone        string `json:"worker_timezone"`
	DryRun                bool   `json:"dry_run"`

	// Outreach scheduling
	DefaultDailyLimit  int `json:"default_daily_limit" validate:"min=1"`
	BaseDelayHours     int `json:"base_delay_hours" validate:"min=1"`
	FollowUpCutoffDays int `json:"follow_up_cutoff_days" validate:"min=1"`

	// External I/O bounds
	SendTimeoutSeconds int `json:"send_timeout_seconds" validate:"min=1"`
	PollTimeoutSeconds int `json:"poll_timeout_seconds" validate:"min=1"`

	// Human alerting
	AlertsEnabled     bool     `json:"alerts_enabled"`
	AlertRecipients   []string `json:"alert_recipients"`
	AlertSMTPHost     string   `json:"alert_smtp_host"`
	AlertSMTPPort     int      `json:"alert_smtp_port"`
	AlertSMTPUsername string   `json:"alert_smtp_username"`
	AlertSMTPPassword string   `json:"-"`
	AlertFromEmail    string   `json:"alert_from_email"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "outreachd"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		WorkerID:              getEnv("WORKER_ID", defaultWorkerID()),
		WorkerIntervalSeconds: getEnvAsInt("WORKER_INTERVAL_SECONDS", 60),
		WorkerLockTTLMinutes:  getEnvAsInt("WORKER_LOCK_TTL_MINUTES", 5),
		WorkerTimezone:        getEnv("WORKER_TIMEZONE", "Local"),
		DryRun:                getEnvAsBool("WORKER_DRY_RUN", false),

		DefaultDailyLimit:  getEnvAsInt("DEFAULT_DAILY_LIMIT", 20),
		BaseDelayHours:     getEnvAsInt("BASE_DELAY_HOURS", 24),
		FollowUpCutoffDays: getEnvAsInt("FOLLOW_UP_CUTOFF_DAYS", 30),

		SendTimeoutSeconds: getEnvAsInt("SEND_TIMEOUT_SECONDS", 30),
		PollTimeoutSeconds: getEnvAsInt("POLL_TIMEOUT_SECONDS", 30),

		AlertsEnabled:     getEnvAsBool("ALERTS_ENABLED", true),
		AlertRecipients:   splitList(getEnv("ALERT_RECIPIENTS", "")),
		AlertSMTPHost:     getEnv("SMTP_HOST", ""),
		AlertSMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		AlertSMTPUsername: getEnv("SMTP_USERNAME", ""),
		AlertSMTPPassword: getEnv("SMTP_PASSWORD", ""),
		AlertFromEmail:    getEnv("FROM_EMAIL", ""),
	}

	if err := validator.New().Struct(&AppConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if AppConfig.AlertsEnabled && len(AppConfig.AlertRecipients) == 0 {
		return fmt.Errorf("ALERT_RECIPIENTS is required when alerts are enabled")
	}

	loc, err := time.LoadLocation(AppConfig.WorkerTimezone)
	if err != nil {
		return fmt.Errorf("invalid WORKER_TIMEZONE %q: %w", AppConfig.WorkerTimezone, err)
	}
	location = loc

	logConfig()
	return nil
}

// Location returns the timezone the quota day boundary is computed in.
func Location() *time.Location {
	if location == nil {
		return time.Local
	}
	return location
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Successfully connected to the database")
	log.Println("Starting database migration...")
	if err := models.MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker-" + uuid.NewString()[:8]
	}
	return host
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Worker: id=%s interval=%ds lock_ttl=%dm tz=%s dry_run=%t",
		AppConfig.WorkerID,
		AppConfig.WorkerIntervalSeconds,
		AppConfig.WorkerLockTTLMinutes,
		AppConfig.WorkerTimezone,
		AppConfig.DryRun)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Alerts: enabled=%t recipients=%d", AppConfig.AlertsEnabled, len(AppConfig.AlertRecipients))
}
