package cfg

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OAuth2Config carries the credential pair for each supported provider.
// A provider whose pair is empty is simply not registered at startup.
type OAuth2Config struct {
	RedirectBaseURL string

	GoogleClientID     string
	GoogleClientSecret string

	GithubClientID     string
	GithubClientSecret string

	MicrosoftClientID     string
	MicrosoftClientSecret string
}

type SessionConfig struct {
	// Store selects the session backend: "memory" or "redis".
	Store string
	// TTLHours is the sliding window extended on each authenticated request.
	TTLHours int
	// MaxLifetimeHours caps a session regardless of activity.
	MaxLifetimeHours int
	// StateTTLMinutes bounds the lifetime of anti-CSRF state tokens.
	StateTTLMinutes int
}

// SMTPConfig carries the outbound mail settings used for password reset
// tokens. When Host is empty no mail can be sent and reset requests are
// accepted but dropped.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type Config struct {
	AppEnv         string
	AppPort        string
	RedisConfig    RedisConfig
	PostgresConfig PostgresConfig
	OAuth2         OAuth2Config
	Session        SessionConfig
	SMTP           SMTPConfig
}

func Load() (*Config, error) {
	var errs []error

	err := godotenv.Load()
	if err != nil {
		return nil, errors.New("failed load cfg: " + err.Error())
	}

	appEnv := mustEnv("APP_ENV", &errs)
	appPort := mustEnv("APP_PORT", &errs)

	redisHost := mustEnv("REDIS_HOST", &errs)
	redisPort := mustEnv("REDIS_PORT", &errs)
	redisPassword := os.Getenv("REDIS_PASSWORD")

	pgHost := mustEnv("POSTGRES_HOST", &errs)
	pgPort := mustEnv("POSTGRES_PORT", &errs)
	pgUser := mustEnv("POSTGRES_USER", &errs)
	pgPassword := mustEnv("POSTGRES_PASSWORD", &errs)
	pgDBName := mustEnv("POSTGRES_DB", &errs)
	pgSSLMode := mustEnv("POSTGRES_SSLMODE", &errs)

	redirectBaseURL := mustEnv("OAUTH_REDIRECT_BASE_URL", &errs)

	sessionStore := mustEnv("SESSION_STORE", &errs)
	sessionTTL := mustEnvInt("SESSION_TTL_HOURS", &errs)
	sessionMaxLifetime := mustEnvInt("SESSION_MAX_LIFETIME_HOURS", &errs)
	stateTTL := mustEnvInt("STATE_TTL_MINUTES", &errs)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Config{
		AppEnv:  appEnv,
		AppPort: appPort,
		RedisConfig: RedisConfig{
			Host:     redisHost,
			Port:     redisPort,
			Password: redisPassword,
		},
		PostgresConfig: PostgresConfig{
			Host:     pgHost,
			Port:     pgPort,
			User:     pgUser,
			Password: pgPassword,
			DBName:   pgDBName,
			SSLMode:  pgSSLMode,
		},
		OAuth2: OAuth2Config{
			RedirectBaseURL:       redirectBaseURL,
			GoogleClientID:        os.Getenv("GOOGLE_CLIENT_ID"),
			GoogleClientSecret:    os.Getenv("GOOGLE_CLIENT_SECRET"),
			GithubClientID:        os.Getenv("GITHUB_CLIENT_ID"),
			GithubClientSecret:    os.Getenv("GITHUB_CLIENT_SECRET"),
			MicrosoftClientID:     os.Getenv("MICROSOFT_CLIENT_ID"),
			MicrosoftClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET"),
		},
		Session: SessionConfig{
			Store:            sessionStore,
			TTLHours:         sessionTTL,
			MaxLifetimeHours: sessionMaxLifetime,
			StateTTLMinutes:  stateTTL,
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     os.Getenv("SMTP_PORT"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
	}, nil
}

func mustEnv(key string, errs *[]error) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		*errs = append(*errs, errors.New("missing env: "+key))
	}
	return value
}

func mustEnvInt(key string, errs *[]error) int {
	value := mustEnv(key, errs)
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, errors.New("conversion failed env: "+key))
	}
	return n
}
