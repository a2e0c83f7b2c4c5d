package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ats"
	"github.com/spigell/atsctl/internal/cache"
	"github.com/spigell/atsctl/internal/logger"
	"github.com/spigell/atsctl/internal/secrets"
)

const (
	app       = "atsctl"
	envPrefix = "ATS"
)

type Config struct {
	APIURL        string        `mapstructure:"api-url" validate:"required,url"`
	Token         string        `mapstructure:"token"`
	TokenFile     string        `mapstructure:"token-file"`
	UserAgent     string        `mapstructure:"user-agent"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gte=0"`
	IngestTimeout time.Duration `mapstructure:"ingest-timeout" validate:"gte=0"`
	Output        string        `mapstructure:"output" validate:"oneof=table json yaml"`
	Cache         *CacheConfig  `mapstructure:"cache"`
	Stub          *StubConfig   `mapstructure:"stub"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis-url" validate:"omitempty,url"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Prefix   string        `mapstructure:"prefix"`
}

type StubConfig struct {
	Listen         string        `mapstructure:"listen" validate:"required"`
	DisabledStages []string      `mapstructure:"disabled-stages"`
	Gemini         *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model" validate:"required_if=Enabled true"`
	MaxRetries   int    `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "atsctl is a cli for the applicant tracking API: upload résumés, browse candidates and match them to job offers",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is atsctl.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json or yaml")
	rootCmd.PersistentFlags().String("api-url", "", "base url of the API")
	rootCmd.PersistentFlags().String("token-file", "", "file with the API bearer token")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("token-file", rootCmd.PersistentFlags().Lookup("token-file"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api-url", "http://localhost:8000")
	v.SetDefault("output", "table")
	v.SetDefault("token", "")
	v.SetDefault("token-file", "")
	v.SetDefault("user-agent", "")
	v.SetDefault("timeout", ats.DefaultTimeout)
	v.SetDefault("ingest-timeout", ats.IngestTimeout)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", ats.DefaultCacheTTL)
	v.SetDefault("cache.redis-url", "")
	v.SetDefault("cache.prefix", "")
	v.SetDefault("stub.listen", "127.0.0.1:8000")
	v.SetDefault("stub.disabled-stages", []string{})
	v.SetDefault("stub.gemini.enabled", false)
	v.SetDefault("stub.gemini.api-key-file", "")
	v.SetDefault("stub.gemini.model", "gemini-2.5-flash")
	v.SetDefault("stub.gemini.max-retries", 3)
	v.SetDefault("stub.gemini.max-log-length", 2000)
}

func initConfig() {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	if err := loadConfig(viper.GetViper(), cfgFile); err != nil {
		log.Fatal(err)
	}
}

// loadConfig wires env variables and reads the config file. A missing default
// config file is fine; an explicitly given one must exist and parse.
func loadConfig(v *viper.Viper, file string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		return v.ReadInConfig()
	}

	v.AddConfigPath(".")
	v.SetConfigName(app)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func getConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// session bundles what every command needs.
type session struct {
	config *Config
	logger *zap.Logger
	client *ats.Client
	out    *printer
}

func newSession(ctx context.Context, cmd *cobra.Command) *session {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig(viper.GetViper())
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	client, err := newClient(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating an api client", zap.Error(err))
	}

	return &session{
		config: config,
		logger: logger,
		client: client,
		out:    newPrinter(cmd.OutOrStdout(), config.Output),
	}
}

func newClient(ctx context.Context, config *Config, logger *zap.Logger) (*ats.Client, error) {
	token, err := secrets.Load(secrets.Source{
		Name:     "api token",
		File:     config.TokenFile,
		Env:      envPrefix + "_TOKEN",
		Value:    config.Token,
		Optional: true,
	})
	if err != nil {
		return nil, err
	}

	client := ats.New(logger, token)
	client.APIURL = config.APIURL
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}
	if config.Timeout > 0 {
		client.Timeout = config.Timeout
	}
	if config.IngestTimeout > 0 {
		client.IngestTimeout = config.IngestTimeout
	}

	if config.Cache != nil && config.Cache.Enabled {
		store, err := newCacheStore(ctx, config.Cache)
		if err != nil {
			return nil, err
		}
		client.Cache = store
		if config.Cache.TTL > 0 {
			client.CacheTTL = config.Cache.TTL
		}
		logger.Debug("query cache enabled", zap.Bool("redis", config.Cache.RedisURL != ""))
	}

	return client, nil
}

func newCacheStore(ctx context.Context, config *CacheConfig) (cache.Store, error) {
	if config.RedisURL == "" {
		return cache.NewMemory(), nil
	}
	return cache.NewRedis(ctx, config.RedisURL, config.Prefix)
}
