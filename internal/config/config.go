package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/hamed0406/alertwatcher/internal/failover"
)

var ErrMissingWebhook = errors.New("SLACK_WEBHOOK_URL is not set")

type Config struct {
	WebhookURLs []string // SLACK_WEBHOOK_URL, comma separated
	BotName     string
	BotIcon     string

	LogFile       string        // access log to follow
	TailFromStart bool          // read existing content instead of seeking to the end
	PollMax       time.Duration // longest idle wait between reads

	LogDir   string // where watcher.log is written
	LogLevel string

	Cooldown           time.Duration
	ErrorRateThreshold float64
	WindowSize         time.Duration
	Maintenance        bool
	MinSampleFloor     int
	DispatchTimeout    time.Duration
	FailoverMode       string
	BreakerFailures    int

	SweepSchedule string // cron spec, empty disables

	Addr           string // operator API, empty disables
	AdminAPIKeys   []string
	PublicAPIKeys  []string
	AllowedOrigins []string // CORS; empty allows any origin
	RateLimitRPM   int
	RateLimitBurst int

	DatabaseURL string // empty means in-memory journal
}

// LoadDotEnv reads ENV_FILE (default .env) if it exists. Variables already
// present in the environment win.
func LoadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func FromEnv() Config {
	// Alerting
	webhooks := splitList(os.Getenv("SLACK_WEBHOOK_URL"))
	botName := os.Getenv("ALERT_BOT_NAME")
	if botName == "" {
		botName = "Chaos Watcher 🤖"
	}
	botIcon := os.Getenv("ALERT_BOT_ICON")
	if botIcon == "" {
		botIcon = ":robot_face:"
	}

	// Log source
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "/var/log/nginx/access.log"
	}

	// Own logs
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	// Operator API; an explicitly empty API_ADDR turns it off
	addr, set := os.LookupEnv("API_ADDR")
	if !set {
		addr = "127.0.0.1:8081"
	}

	schedule, set := os.LookupEnv("SWEEP_SCHEDULE")
	if !set {
		schedule = "@every 5s"
	}

	failoverMode := os.Getenv("FAILOVER_MATCH")
	if failoverMode == "" {
		failoverMode = string(failover.ModeTokens)
	}

	return Config{
		WebhookURLs:   webhooks,
		BotName:       botName,
		BotIcon:       botIcon,
		LogFile:       logFile,
		TailFromStart: envBool("TAIL_FROM_START", false),
		PollMax:       envMillis("POLL_MAX_MS", 2*time.Second),
		LogDir:        logDir,
		LogLevel:      logLevel,

		Cooldown:           envSeconds("ALERT_COOLDOWN_SEC", 60*time.Second),
		ErrorRateThreshold: envFloat("ERROR_RATE_THRESHOLD", 0.01),
		WindowSize:         envSeconds("WINDOW_SIZE", 60*time.Second),
		Maintenance:        envBool("MAINTENANCE_MODE", false),
		MinSampleFloor:     envInt("MIN_SAMPLE_FLOOR", 5),
		DispatchTimeout:    envSeconds("DISPATCH_TIMEOUT_SEC", 10*time.Second),
		FailoverMode:       failoverMode,
		BreakerFailures:    envInt("BREAKER_FAILURES", 5),

		SweepSchedule: schedule,

		Addr:           addr,
		AdminAPIKeys:   splitList(os.Getenv("ADMIN_API_KEYS")),
		PublicAPIKeys:  splitList(os.Getenv("PUBLIC_API_KEYS")),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		RateLimitRPM:   envInt("API_RPM", 120),
		RateLimitBurst: envInt("API_BURST", 30),

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
}

// Validate returns every problem at once. A missing webhook is reported as
// ErrMissingWebhook so callers can check for it with errors.Is.
func (c Config) Validate() error {
	var err error
	if len(c.WebhookURLs) == 0 {
		err = multierr.Append(err, ErrMissingWebhook)
	}
	if c.ErrorRateThreshold <= 0 || c.ErrorRateThreshold >= 1 {
		err = multierr.Append(err, fmt.Errorf("ERROR_RATE_THRESHOLD must be in (0,1), got %v", c.ErrorRateThreshold))
	}
	if c.WindowSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("WINDOW_SIZE must be positive, got %s", c.WindowSize))
	}
	if c.Cooldown < 0 {
		err = multierr.Append(err, fmt.Errorf("ALERT_COOLDOWN_SEC must not be negative, got %s", c.Cooldown))
	}
	if c.DispatchTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("DISPATCH_TIMEOUT_SEC must be positive, got %s", c.DispatchTimeout))
	}
	if c.MinSampleFloor < 0 {
		err = multierr.Append(err, fmt.Errorf("MIN_SAMPLE_FLOOR must not be negative, got %d", c.MinSampleFloor))
	}
	if _, perr := failover.ParseMode(c.FailoverMode); perr != nil {
		err = multierr.Append(err, perr)
	}
	return err
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// envSeconds accepts whole or fractional seconds.
func envSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return def
}

func envMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
