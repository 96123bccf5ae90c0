package config

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/webnest/webnest-api/models"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Env          string
	FrontendURL  string
	Services     []string
	RunScheduler bool

	JWTSecret      string
	AccessTokenTTL time.Duration

	OwnerEmail    string
	OwnerPassword string

	Mail MailConfig

	StripeSecretKey     string
	StripeWebhookSecret string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	RedisURL       string
	AllowedOrigins []string
}

// MailConfig selects and configures the outbound mail transport
type MailConfig struct {
	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	From           string
	FromName       string
}

// New sets up all config related services
func New() *Config {
	env := getEnv("ENV", "production")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	ttl, err := time.ParseDuration(getEnv("JWT_EXPIRE", "15m"))
	if err != nil {
		zap.S().Warnw("invalid JWT_EXPIRE, using default", "value", os.Getenv("JWT_EXPIRE"), "error", err)
		ttl = 15 * time.Minute
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		smtpPort = 587
	}

	smtpUser := firstNonEmpty(os.Getenv("SMTP_EMAIL"), os.Getenv("EMAIL_USER"))

	return &Config{
		URL:          os.Getenv("DB_URI"),
		DatabaseName: getEnv("DB_NAME", "webnest"),
		BaseURL:      os.Getenv("BASE_URL"),
		Port:         getEnv("PORT", "8080"),
		Env:          env,
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:3000"),
		Services:     splitList(getEnv("SERVICES", "admin,client,developer")),
		RunScheduler: getEnv("RUN_SCHEDULER", "true") == "true",

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: ttl,

		OwnerEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_OWNER_EMAIL"))),
		OwnerPassword: os.Getenv("ADMIN_OWNER_PASSWORD"),

		Mail: MailConfig{
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:       smtpPort,
			SMTPUser:       smtpUser,
			SMTPPassword:   firstNonEmpty(os.Getenv("SMTP_PASSWORD"), os.Getenv("EMAIL_PASS")),
			From:           getEnv("MAIL_FROM", smtpUser),
			FromName:       getEnv("MAIL_FROM_NAME", "WebNest"),
		},

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),

		RedisURL:       os.Getenv("REDIS_URL"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
	}
}

// HasService reports whether the named service's routes should be mounted
func (c *Config) HasService(name string) bool {
	for _, s := range c.Services {
		if s == name {
			return true
		}
	}
	return false
}

func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With("error", err).Error(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(models.Response{Success: false, Message: message})
}

// WriteJSON writes a success envelope with the given status code
func WriteJSON(w http.ResponseWriter, httpStatusCode int, resp models.Response) {
	resp.Success = true
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
