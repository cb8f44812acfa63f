package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultSessionSecret = "secret_key_change_me"
	defaultCSRFKey       = "csrf-key-change-me-32-bytes-long"
)

// Config holds every process-wide setting. It is loaded once at startup and
// handed to the components that need it.
type Config struct {
	Port string
	// Env is "development" (default), "production" or "local".
	Env string
	// SiteURL is the absolute base used for links in emails and PDFs.
	SiteURL string

	DBDriver    string
	DatabaseURL string

	SessionSecret string
	CSRFKey       string
	CSRFEnabled   bool
	// PasswordResetTTL is how long an emailed reset link stays valid.
	PasswordResetTTL time.Duration

	// MailBackend is "smtp", "sendgrid" or "log". Empty picks smtp when SMTP_HOST is set, log otherwise.
	MailBackend    string
	MailFrom       string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPass       string
	SendGridAPIKey string

	// StorageBackend is "local" (default) or "s3".
	StorageBackend string
	MediaRoot      string
	S3             S3Config

	Location       *time.Location
	PDFCacheSize   int
	MaxUploadBytes int64
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicURL, when set, is used instead of presigned URLs.
	PublicURL string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() *Config {
	port := getEnv("PORT", "8000")
	cfg := &Config{
		Port:    port,
		Env:     getEnv("ENV", "development"),
		SiteURL: strings.TrimRight(getEnv("SITE_URL", "http://localhost:"+port), "/"),

		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=crimewatch port=5432 sslmode=disable"),

		SessionSecret: getEnv("SESSION_SECRET", defaultSessionSecret),
		CSRFKey:       getEnv("CSRF_KEY", defaultCSRFKey),
		CSRFEnabled:   getEnvBool("CSRF_ENABLED", true),

		PasswordResetTTL: getEnvDuration("PASSWORD_RESET_TTL", 72*time.Hour),

		MailBackend:    getEnv("MAIL_BACKEND", ""),
		MailFrom:       getEnv("MAIL_FROM", "webmaster@localhost"),
		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       getEnvInt("SMTP_PORT", 587),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPass:       getEnv("SMTP_PASS", ""),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		MediaRoot:      getEnv("MEDIA_ROOT", "./media"),
		S3: S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "auto"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			PublicURL:       strings.TrimRight(getEnv("S3_PUBLIC_URL", ""), "/"),
		},

		Location:       loadLocation(getEnv("TIME_ZONE", "")),
		PDFCacheSize:   getEnvInt("PDF_CACHE_SIZE", 128),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 128<<20)),
	}
	if cfg.MailBackend == "" {
		cfg.MailBackend = "log"
		if cfg.SMTPHost != "" {
			cfg.MailBackend = "smtp"
		}
	}
	return cfg
}

// IsProduction reports whether the process runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate rejects settings that are only acceptable for local development.
func (c *Config) Validate() error {
	var errs []error
	if c.IsProduction() {
		if c.SessionSecret == defaultSessionSecret {
			errs = append(errs, errors.New("SESSION_SECRET must be set in production"))
		}
		if c.CSRFEnabled && c.CSRFKey == defaultCSRFKey {
			errs = append(errs, errors.New("CSRF_KEY must be set in production"))
		}
	}
	switch c.MailBackend {
	case "smtp":
		if c.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for MAIL_BACKEND=smtp"))
		}
	case "sendgrid":
		if c.SendGridAPIKey == "" {
			errs = append(errs, errors.New("SENDGRID_API_KEY is required for MAIL_BACKEND=sendgrid"))
		}
	case "log":
	default:
		errs = append(errs, errors.New("unknown MAIL_BACKEND "+c.MailBackend))
	}
	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for STORAGE_BACKEND=s3"))
		}
	default:
		errs = append(errs, errors.New("unknown STORAGE_BACKEND "+c.StorageBackend))
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		errs = append(errs, errors.New("unknown DB_DRIVER "+c.DBDriver))
	}
	return errors.Join(errs...)
}

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
