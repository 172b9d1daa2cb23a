package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the load generator reads from the environment.
type Config struct {
	Env      string
	LogLevel string

	TargetHost     string
	RequestTimeout time.Duration

	Users     int
	SpawnRate float64
	RunTime   time.Duration
	ThinkMin  time.Duration
	ThinkMax  time.Duration

	// BehaviorWeights overrides the default weight of named behaviors.
	BehaviorWeights map[string]int

	FlagdHost      string
	FlagdOFREPPort string
	FlagTimeout    time.Duration

	BrowserTrafficEnabled bool
	BrowserUsers          int
	BrowserStepTimeout    time.Duration
	BrowserSettleTimeout  time.Duration
	BrowserExecPath       string

	PeopleFile string

	StatusAddr    string
	StatsInterval time.Duration

	OTLPEndpoint string
	ServiceName  string

	CloudWatchEnabled bool
}

// FlagdBaseURL is the OFREP endpoint root built from host and port.
func (c Config) FlagdBaseURL() string {
	return fmt.Sprintf("http://%s:%s", c.FlagdHost, c.FlagdOFREPPort)
}

// Load reads the optional .env file and the process environment. The result
// is not validated; callers apply their overrides and then call Validate.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := Config{
		Env:                   getEnv("APP_ENV", "production"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		TargetHost:            strings.TrimRight(getEnv("TARGET_HOST", "http://localhost:8080"), "/"),
		FlagdHost:             getEnv("FLAGD_HOST", "localhost"),
		FlagdOFREPPort:        getEnv("FLAGD_OFREP_PORT", "8016"),
		BrowserTrafficEnabled: Truthy(os.Getenv("LOCUST_BROWSER_TRAFFIC_ENABLED")),
		BrowserExecPath:       os.Getenv("BROWSER_EXEC_PATH"),
		PeopleFile:            os.Getenv("PEOPLE_FILE"),
		StatusAddr:            getEnv("STATUS_ADDR", ":8089"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:           getEnv("OTEL_SERVICE_NAME", "load-generator"),
		CloudWatchEnabled:     os.Getenv("CLOUDWATCH_ENABLED") == "true",
	}

	var err error
	if cfg.Users, err = getInt("LOCUST_USERS", 10); err != nil {
		return Config{}, err
	}
	if cfg.BrowserUsers, err = getInt("BROWSER_USERS", 1); err != nil {
		return Config{}, err
	}
	if cfg.SpawnRate, err = getFloat("LOCUST_SPAWN_RATE", 1); err != nil {
		return Config{}, err
	}
	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"REQUEST_TIMEOUT", "10s", &cfg.RequestTimeout},
		{"LOCUST_RUN_TIME", "0s", &cfg.RunTime},
		{"THINK_TIME_MIN", "1s", &cfg.ThinkMin},
		{"THINK_TIME_MAX", "10s", &cfg.ThinkMax},
		{"FLAG_TIMEOUT", "2s", &cfg.FlagTimeout},
		{"BROWSER_STEP_TIMEOUT", "15s", &cfg.BrowserStepTimeout},
		{"BROWSER_SETTLE_TIMEOUT", "2s", &cfg.BrowserSettleTimeout},
		{"STATS_INTERVAL", "30s", &cfg.StatsInterval},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.def); err != nil {
			return Config{}, err
		}
	}
	if cfg.BehaviorWeights, err = ParseWeights(os.Getenv("BEHAVIOR_WEIGHTS")); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the values that would make the run meaningless.
func (c Config) Validate() error {
	switch {
	case c.TargetHost == "":
		return fmt.Errorf("config: TARGET_HOST is empty")
	case c.Users <= 0:
		return fmt.Errorf("config: users must be > 0, got %d", c.Users)
	case c.SpawnRate <= 0:
		return fmt.Errorf("config: spawn rate must be > 0, got %v", c.SpawnRate)
	case c.ThinkMin < 0 || c.ThinkMax < 0:
		return fmt.Errorf("config: think time must be non-negative")
	case c.ThinkMin > c.ThinkMax:
		return fmt.Errorf("config: think time min %s is greater than max %s", c.ThinkMin, c.ThinkMax)
	case c.RunTime < 0:
		return fmt.Errorf("config: run time must be non-negative")
	case c.BrowserTrafficEnabled && c.BrowserUsers < 0:
		return fmt.Errorf("config: browser users must be >= 0, got %d", c.BrowserUsers)
	}
	return nil
}

// Truthy reports whether an environment toggle is switched on.
func Truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on":
		return true
	}
	return false
}

// ParseWeights parses "name=weight,name=weight" overrides.
func ParseWeights(raw string) (map[string]int, error) {
	weights := map[string]int{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("config: behavior weight %q is not name=weight", pair)
		}
		w, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || w < 0 {
			return nil, fmt.Errorf("config: behavior weight %q must be a non-negative integer", pair)
		}
		weights[strings.TrimSpace(name)] = w
	}
	return weights, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key, defaultVal string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultVal))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
