package config

import (
	"time"
	_ "time/tzdata"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/spf13/viper"
)

const (
	DefaultOperatorTimezone       = "America/Sao_Paulo"
	DefaultDraftDebounceMS        = 500
	DefaultDraftTTLHours          = 72
	DefaultCleaningMinutes        = 90
	developmentEnvironment        = "development"
	minimumProductionSecretLength = 32
)

type Config struct {
	GeneralVersion         string `mapstructure:"GENERAL_VERSION"`
	Environment            string `mapstructure:"ENVIRONMENT"`
	ServerPort             int    `mapstructure:"SERVER_PORT"`
	DatabaseHost           string `mapstructure:"DB_HOST"`
	DatabasePort           int    `mapstructure:"DB_PORT"`
	DatabaseName           string `mapstructure:"DB_NAME"`
	DatabaseUser           string `mapstructure:"DB_USER"`
	DatabasePassword       string `mapstructure:"DB_PASSWORD"`
	DatabaseCacheAddress   string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort      int    `mapstructure:"DB_CACHE_PORT"`
	DatabaseCacheReset     int    `mapstructure:"DB_CACHE_RESET"`
	CorsAllowOrigins       string `mapstructure:"CORS_ALLOW_ORIGINS"`
	JWTSecret              string `mapstructure:"JWT_SECRET"`
	OperatorTimezone       string `mapstructure:"OPERATOR_TIMEZONE"`
	DraftDebounceMS        int    `mapstructure:"DRAFT_DEBOUNCE_MS"`
	DraftTTLHours          int    `mapstructure:"DRAFT_TTL_HOURS"`
	DefaultCleaningMinutes int    `mapstructure:"DEFAULT_CLEANING_MINUTES"`
	AlertSweepEnabled      bool   `mapstructure:"ALERT_SWEEP_ENABLED"`
}

var ConfigInstance Config

var envVars = []string{
	"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"DB_CACHE_ADDRESS", "DB_CACHE_PORT", "DB_CACHE_RESET",
	"CORS_ALLOW_ORIGINS", "JWT_SECRET",
	"OPERATOR_TIMEZONE", "DRAFT_DEBOUNCE_MS", "DRAFT_TTL_HOURS", "DEFAULT_CLEANING_MINUTES",
	"ALERT_SWEEP_ENABLED",
}

func InitConfig() (Config, error) {
	log := logger.New("config").Function("InitConfig")
	log.Info("Initializing config")

	viper.AutomaticEnv()

	for _, env := range envVars {
		if err := viper.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	viper.SetDefault("OPERATOR_TIMEZONE", DefaultOperatorTimezone)
	viper.SetDefault("DRAFT_DEBOUNCE_MS", DefaultDraftDebounceMS)
	viper.SetDefault("DRAFT_TTL_HOURS", DefaultDraftTTLHours)
	viper.SetDefault("DEFAULT_CLEANING_MINUTES", DefaultCleaningMinutes)
	viper.SetDefault("DB_CACHE_RESET", -1)
	viper.SetDefault("ALERT_SWEEP_ENABLED", true)

	envVarsSet := viper.IsSet("SERVER_PORT") && viper.IsSet("DB_HOST")

	if envVarsSet {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		viper.SetConfigFile(".env")
		viper.SetConfigType("env")

		if err := viper.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		viper.SetConfigFile(".env.local")
		if err := viper.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info("Successfully initialized config", "environment", config.Environment, "timezone", config.OperatorTimezone)
	return ConfigInstance, nil
}

func GetConfig() Config {
	return ConfigInstance
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error(
			"Fatal error: invalid server port",
			"port", config.ServerPort,
		)
	}

	if _, err := config.Location(); err != nil {
		return log.Err("Fatal error: invalid OPERATOR_TIMEZONE", err, "timezone", config.OperatorTimezone)
	}

	if config.DraftDebounceMS < 0 {
		return log.Error("Fatal error: DRAFT_DEBOUNCE_MS must not be negative", "value", config.DraftDebounceMS)
	}

	if config.Environment != developmentEnvironment && len(config.JWTSecret) < minimumProductionSecretLength {
		return log.Error(
			"Fatal error: JWT_SECRET must be set outside development",
			"minimumLength", minimumProductionSecretLength,
		)
	}

	ConfigInstance = config
	return nil
}

// Location resolves the operator timezone used for every "today" boundary.
func (c Config) Location() (*time.Location, error) {
	name := c.OperatorTimezone
	if name == "" {
		name = DefaultOperatorTimezone
	}
	return time.LoadLocation(name)
}

func (c Config) DraftDebounce() time.Duration {
	if c.DraftDebounceMS <= 0 {
		return DefaultDraftDebounceMS * time.Millisecond
	}
	return time.Duration(c.DraftDebounceMS) * time.Millisecond
}

func (c Config) DraftTTL() time.Duration {
	if c.DraftTTLHours <= 0 {
		return DefaultDraftTTLHours * time.Hour
	}
	return time.Duration(c.DraftTTLHours) * time.Hour
}

func (c Config) CleaningMinutes() int {
	if c.DefaultCleaningMinutes <= 0 {
		return DefaultCleaningMinutes
	}
	return c.DefaultCleaningMinutes
}
