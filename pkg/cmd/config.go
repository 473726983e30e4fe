package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

// LoadEnv loads the first .env file found in paths. Missing files are not an error.
func LoadEnv(logger *slog.Logger, paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		err := godotenv.Load(path)
		if err == nil {
			logger.Debug("Loaded env file", "path", path)

			return
		}

		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to load env file", "path", path, "error", err)
		}
	}
}

// Config is the runtime configuration shared by the binaries.
type Config struct {
	ServiceName    string
	WorkerID       string
	DatabaseURL    string
	EventBus       string
	KafkaBrokers   string
	RedisURL       string
	PluginsPath    string
	SeedFile       string
	DefinitionsDir string
	MaxSteps       int
	WebhookTimeout time.Duration
	EmailTimeout   time.Duration
	TracingEnabled bool
	LogLevel       string
	LogFormat      string
}

// CommonFlags are accepted by every long running binary.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Persistence URL (postgres://... or a file store path)",
			Value:   "file://./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus provider (memory, kafka)",
			Value:   "memory",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for execution leases shared between processes",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "plugins-path",
			Usage:   "Path to the directory containing action plugins",
			Value:   "./plugins",
			Sources: cli.EnvVars("PLUGINS_PATH"),
		},
		&cli.StringFlag{
			Name:    "seed-file",
			Usage:   "JSON file with tickets, users and departments for the in-memory helpdesk",
			Sources: cli.EnvVars("HELPDESK_SEED_FILE"),
		},
		&cli.StringFlag{
			Name:    "definitions-dir",
			Usage:   "Directory of JSON/YAML workflow definitions stored at startup",
			Sources: cli.EnvVars("DEFINITIONS_DIR"),
		},
		&cli.IntFlag{
			Name:    "max-steps",
			Usage:   "Maximum steps visited by one execution",
			Value:   1000,
			Sources: cli.EnvVars("MAX_STEPS"),
		},
		&cli.DurationFlag{
			Name:    "webhook-timeout",
			Usage:   "Timeout of outbound webhook actions",
			Value:   30 * time.Second,
			Sources: cli.EnvVars("WEBHOOK_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    "email-timeout",
			Usage:   "Timeout of send_email actions",
			Value:   30 * time.Second,
			Sources: cli.EnvVars("EMAIL_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// ConfigFromCommand reads CommonFlags from a parsed command.
func ConfigFromCommand(serviceName string, command *cli.Command) Config {
	return Config{
		ServiceName:    serviceName,
		DatabaseURL:    command.String("database-url"),
		EventBus:       command.String("event-bus"),
		KafkaBrokers:   command.String("kafka-brokers"),
		RedisURL:       command.String("redis-url"),
		PluginsPath:    command.String("plugins-path"),
		SeedFile:       command.String("seed-file"),
		DefinitionsDir: command.String("definitions-dir"),
		MaxSteps:       command.Int("max-steps"),
		WebhookTimeout: command.Duration("webhook-timeout"),
		EmailTimeout:   command.Duration("email-timeout"),
		TracingEnabled: command.Bool("tracing"),
		LogLevel:       command.String("log-level"),
		LogFormat:      command.String("log-format"),
	}
}
