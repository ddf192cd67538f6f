package neomapper

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config contains connection and mapping options.
type Config struct {
	// URI is the connection URI for the Neo4j instance, e.g.
	// "neo4j://localhost:7687" or "bolt+s://host:7687".
	URI string `mapstructure:"uri" yaml:"uri"`

	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// Database name to connect to. Empty uses the server default.
	Database string `mapstructure:"database" yaml:"database"`

	// MaxConnectionPoolSize limits the number of connections in the pool.
	// Zero or negative values use the driver default.
	MaxConnectionPoolSize int `mapstructure:"max_connection_pool_size" yaml:"max_connection_pool_size"`

	// ConnectionTimeout is the maximum time to wait for a connection.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" yaml:"connection_timeout"`

	// MaxTransactionRetryTime bounds the driver's own retries of a failed
	// statement. Nothing above the driver retries.
	MaxTransactionRetryTime time.Duration `mapstructure:"max_transaction_retry_time" yaml:"max_transaction_retry_time"`

	// RelationshipTimestamps adds created_at and updated_at to saved edges.
	RelationshipTimestamps bool `mapstructure:"relationship_timestamps" yaml:"relationship_timestamps"`

	// MorphTypeProperty is the relationship property naming the concrete type
	// of a polymorphic endpoint.
	MorphTypeProperty string `mapstructure:"morph_type_property" yaml:"morph_type_property"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// LogConfig selects the logger built by the command line tool.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is json or console.
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URI:                     "neo4j://localhost:7687",
		Username:                "neo4j",
		Password:                "password",
		Database:                "",
		MaxConnectionPoolSize:   50,
		ConnectionTimeout:       30 * time.Second,
		MaxTransactionRetryTime: 30 * time.Second,
		RelationshipTimestamps:  false,
		MorphTypeProperty:       DefaultMorphTypeProperty,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if c.URI == "" {
		errs = append(errs, errors.New("uri cannot be empty"))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("username cannot be empty"))
	}
	if c.ConnectionTimeout <= 0 {
		errs = append(errs, errors.New("connection_timeout must be positive"))
	}
	if c.MaxTransactionRetryTime < 0 {
		errs = append(errs, errors.New("max_transaction_retry_time cannot be negative"))
	}
	if c.MorphTypeProperty != "" && !identifierPattern.MatchString(c.MorphTypeProperty) {
		errs = append(errs, fmt.Errorf("morph_type_property %q is not a valid property name", c.MorphTypeProperty))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
// Environment variables prefixed with NEOMAPPER_ override file values, e.g.
// NEOMAPPER_PASSWORD or NEOMAPPER_LOG_LEVEL. An empty path loads defaults and
// environment only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("uri", def.URI)
	v.SetDefault("username", def.Username)
	v.SetDefault("password", def.Password)
	v.SetDefault("database", def.Database)
	v.SetDefault("max_connection_pool_size", def.MaxConnectionPoolSize)
	v.SetDefault("connection_timeout", def.ConnectionTimeout)
	v.SetDefault("max_transaction_retry_time", def.MaxTransactionRetryTime)
	v.SetDefault("relationship_timestamps", def.RelationshipTimestamps)
	v.SetDefault("morph_type_property", def.MorphTypeProperty)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	v.SetEnvPrefix("NEOMAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteConfig writes cfg as YAML to path, refusing to overwrite an existing file.
func WriteConfig(path string, cfg Config) error {
	out, err := yaml.Marshal(configFile{
		URI:                     cfg.URI,
		Username:                cfg.Username,
		Password:                cfg.Password,
		Database:                cfg.Database,
		MaxConnectionPoolSize:   cfg.MaxConnectionPoolSize,
		ConnectionTimeout:       cfg.ConnectionTimeout.String(),
		MaxTransactionRetryTime: cfg.MaxTransactionRetryTime.String(),
		RelationshipTimestamps:  cfg.RelationshipTimestamps,
		MorphTypeProperty:       cfg.MorphTypeProperty,
		Log:                     cfg.Log,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// configFile is the on-disk form of Config; durations are written the way
// viper reads them back ("30s").
type configFile struct {
	URI                     string    `yaml:"uri"`
	Username                string    `yaml:"username"`
	Password                string    `yaml:"password"`
	Database                string    `yaml:"database"`
	MaxConnectionPoolSize   int       `yaml:"max_connection_pool_size"`
	ConnectionTimeout       string    `yaml:"connection_timeout"`
	MaxTransactionRetryTime string    `yaml:"max_transaction_retry_time"`
	RelationshipTimestamps  bool      `yaml:"relationship_timestamps"`
	MorphTypeProperty       string    `yaml:"morph_type_property"`
	Log                     LogConfig `yaml:"log"`
}
