package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/KebabObama/school-reservation/internal/logging"
)

const prefix = "RESERVATIONS_"

// DefaultSQLiteDSN enables foreign keys and a busy timeout on the pure Go driver.
const DefaultSQLiteDSN = "file:reservations.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort        int
	DBDriver        string
	DBDSN           string
	JWTSecret       string
	RedisAddr       string
	LockTTL         time.Duration
	AMQPURL         string
	AMQPQueue       string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

// Load parses configuration values from the current process environment.
//
// Each dotenv file that exists supplies values for variables the process
// environment leaves unset. Missing files are skipped. Missing required
// values and invalid values are reported together.
func Load(dotenvFiles ...string) (Config, error) {
	fileValues := make(map[string]string)
	for _, path := range dotenvFiles {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		for key, value := range values {
			if _, seen := fileValues[key]; !seen {
				fileValues[key] = value
			}
		}
	}
	return parse(func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(fileValues[key])
	})
}

func parse(lookup func(string) string) (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		DBDriver:        "sqlite",
		DBDSN:           DefaultSQLiteDSN,
		LockTTL:         10 * time.Second,
		AMQPQueue:       "reservations.events",
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)
	get := func(name string) string { return lookup(prefix + name) }

	if portValue := get("HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, prefix+"HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := strings.ToLower(get("DB_DRIVER")); driver != "" {
		switch driver {
		case "sqlite", "mysql":
			cfg.DBDriver = driver
		default:
			invalid = append(invalid, prefix+"DB_DRIVER")
		}
	}

	if dsn := get("DB_DSN"); dsn != "" {
		cfg.DBDSN = dsn
	} else if cfg.DBDriver != "sqlite" {
		missing = append(missing, prefix+"DB_DSN")
	}

	if secret := get("JWT_SECRET"); secret == "" {
		missing = append(missing, prefix+"JWT_SECRET")
	} else {
		cfg.JWTSecret = secret
	}

	cfg.RedisAddr = get("REDIS_ADDR")
	cfg.AMQPURL = get("AMQP_URL")
	if queue := get("AMQP_QUEUE"); queue != "" {
		cfg.AMQPQueue = queue
	}

	if origins := get("CORS_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{name: "LOCK_TTL", dst: &cfg.LockTTL},
		{name: "SHUTDOWN_TIMEOUT", dst: &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		value := get(d.name)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			invalid = append(invalid, prefix+d.name)
			continue
		}
		*d.dst = parsed
	}

	if levelValue := get("LOG_LEVEL"); levelValue != "" {
		level, err := logging.ParseLevel(levelValue)
		if err != nil {
			invalid = append(invalid, prefix+"LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required environment variables: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid environment variables: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}
