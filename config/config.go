package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// Vazio roda com o repositório em memória (desenvolvimento).
	PostgresURI string `yaml:"postgresUri"`
	// Vazio troca o lock distribuído por um mutex local e desliga o check log.
	RedisURI string `yaml:"redisUri"`
	// Vazio publica feed e execuções de regra só no log.
	NatsURL string `yaml:"natsUrl"`

	JWTSecret   string   `yaml:"jwtSecret"`
	CORSOrigins []string `yaml:"corsOrigins"`

	SandboxTimeout time.Duration `yaml:"sandboxTimeout"`
	// TTL do lock Redis das timelines; renovado enquanto o lock é mantido.
	LockTTL           time.Duration `yaml:"lockTTL"`
	EscalationCron    string        `yaml:"escalationCron"`
	EscalationWorkers int           `yaml:"escalationWorkers"`
	DispatcherWorkers int           `yaml:"dispatcherWorkers"`
	RetentionDays     int           `yaml:"retentionDays"`
	RetentionCron     string        `yaml:"retentionCron"`
	EnableProbes      bool          `yaml:"enableProbes"`
}

var AppConfig *Config

func defaults() Config {
	return Config{
		Port:              "8081",
		LogLevel:          "info",
		SandboxTimeout:    time.Second,
		LockTTL:           10 * time.Second,
		EscalationCron:    "@every 1m",
		EscalationWorkers: 16,
		DispatcherWorkers: 4,
		RetentionDays:     30,
		RetentionCron:     "@daily",
		EnableProbes:      true,
	}
}

// LoadConfig monta a configuração em camadas: padrões, depois o YAML de
// CONFIG_FILE (se houver), depois as variáveis de ambiente (.env incluído).
func LoadConfig() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		log.Println("Warn loading .env file")
	}

	cfg := defaults()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	AppConfig = &cfg
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.PostgresURI = getEnv("POSTGRES_URI", cfg.PostgresURI)
	cfg.RedisURI = getEnv("REDIS_URI", cfg.RedisURI)
	cfg.NatsURL = getEnv("NATS_URL", cfg.NatsURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.EscalationCron = getEnv("ESCALATION_CRON", cfg.EscalationCron)
	cfg.RetentionCron = getEnv("RETENTION_CRON", cfg.RetentionCron)
	if v := getEnv("CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}

	var err error
	if cfg.SandboxTimeout, err = getEnvDuration("SANDBOX_TIMEOUT", cfg.SandboxTimeout); err != nil {
		return err
	}
	if cfg.LockTTL, err = getEnvDuration("LOCK_TTL", cfg.LockTTL); err != nil {
		return err
	}
	if cfg.RetentionDays, err = getEnvInt("RETENTION_DAYS", cfg.RetentionDays); err != nil {
		return err
	}
	if cfg.DispatcherWorkers, err = getEnvInt("DISPATCHER_WORKERS", cfg.DispatcherWorkers); err != nil {
		return err
	}
	if cfg.EscalationWorkers, err = getEnvInt("ESCALATION_WORKERS", cfg.EscalationWorkers); err != nil {
		return err
	}
	if cfg.EnableProbes, err = getEnvBool("ENABLE_PROBES", cfg.EnableProbes); err != nil {
		return err
	}
	return nil
}
