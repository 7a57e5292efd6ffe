package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; see Load for the names.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	DBMigrate         bool          // apply the embedded schema at start-up
	AllowAdminSignup  bool          // expose POST /v1/auth/admin/register (development only)
	ConsumerEnabled   bool          // run the booking log consumer in-process
	AMQPURL           string        // RabbitMQ URL; empty disables publishing
	BookingLogDir     string        // directory of the consumer's booking.log
	LedgerMaxAttempts int           // attempts per ledger transaction
	ShutdownTimeout   time.Duration // graceful shutdown budget
}

// IsProd reports whether the service runs in production mode.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.  Every
// missing or malformed required variable is reported in the returned error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var l loader
	cfg := Config{
		Env:            l.must("APP_ENV"),
		Port:           l.must("APP_PORT"),
		DBUser:         l.must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         l.must("DB_HOST"),
		DBPort:         l.must("DB_PORT"),
		DBName:         l.must("DB_NAME"),
		JWTSecret:      l.must("JWT_SECRET"),
		AccessTTLMin:   l.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: l.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     l.mustInt("BCRYPT_COST"),

		DBMigrate:         envBool("DB_MIGRATE", false),
		AllowAdminSignup:  envBool("ALLOW_ADMIN_SIGNUP", false),
		ConsumerEnabled:   envBool("BOOKING_CONSUMER_ENABLED", false),
		AMQPURL:           envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		BookingLogDir:     envStr("BOOKING_LOG_DIR", "logs"),
		LedgerMaxAttempts: envInt("LEDGER_MAX_ATTEMPTS", 2),
		ShutdownTimeout:   envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if cfg.AllowAdminSignup && cfg.IsProd() {
		l.errs = append(l.errs, errors.New("ALLOW_ADMIN_SIGNUP must not be enabled in production"))
	}
	if err := errors.Join(l.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loader collects missing variables instead of exiting on the first one.
type loader struct{ errs []error }

// must retrieves the value of a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.errs = append(l.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func (l *loader) mustInt(key string) int {
	s := l.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid int for %s: %q", key, s))
	}
	return n
}
