// Package config loads the electiond configuration from command line flags,
// ELECTIOND_* environment variables and an optional YAML file, in that order
// of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/storage"
)

// EnvPrefix is prepended to every environment variable. Dots and dashes in
// keys become underscores: ledger.read-pace is ELECTIOND_LEDGER_READ_PACE.
const EnvPrefix = "ELECTIOND"

// Defaults.
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8080
	DefaultConfirmTimeout = 2 * time.Minute
	DefaultReadAttempts   = 3
	DefaultReadBaseDelay  = time.Second
	DefaultReadPace       = 200 * time.Millisecond
	DefaultLockMaxAge     = 10 * time.Minute
	DefaultSweepInterval  = time.Minute
)

type ListenConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

type DBConfig struct {
	Type string `mapstructure:"type"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type Web3Config struct {
	RPC     []string `mapstructure:"rpc"`
	PrivKey string   `mapstructure:"privkey"`
}

type LedgerConfig struct {
	ConfirmTimeout time.Duration `mapstructure:"confirm-timeout"`
	ReadAttempts   int           `mapstructure:"read-attempts"`
	ReadBaseDelay  time.Duration `mapstructure:"read-base-delay"`
	ReadPace       time.Duration `mapstructure:"read-pace"`
}

type LocksConfig struct {
	MaxAge        time.Duration `mapstructure:"max-age"`
	SweepInterval time.Duration `mapstructure:"sweep-interval"`
}

// Config is the full service configuration.
type Config struct {
	Listen  ListenConfig `mapstructure:"listen"`
	Log     LogConfig    `mapstructure:"log"`
	DataDir string       `mapstructure:"datadir"`
	DB      DBConfig     `mapstructure:"db"`
	Redis   RedisConfig  `mapstructure:"redis"`
	Web3    Web3Config   `mapstructure:"web3"`
	Ledger  LedgerConfig `mapstructure:"ledger"`
	Locks   LocksConfig  `mapstructure:"locks"`
}

// NewFlagSet returns the flags understood by Load. Flag names are the
// configuration keys.
func NewFlagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.String("config", "", "path to a YAML configuration file")
	flags.String("listen.host", DefaultHost, "API listen host")
	flags.Int("listen.port", DefaultPort, "API listen port")
	flags.String("log.level", log.LogLevelInfo, "log level (debug, info, warn, error)")
	flags.String("log.output", "stdout", "log output (stdout, stderr or a file path)")
	flags.String("datadir", "", "data directory of the embedded database (default $HOME/.electiond)")
	flags.String("db.type", storage.TypePebble, "storage backend (pebble or redis)")
	flags.String("redis.url", "", "redis server URL, e.g. redis://localhost:6379/0")
	flags.StringSlice("web3.rpc", nil, "ledger web3 RPC endpoints (comma separated)")
	flags.String("web3.privkey", "", "hex private key of the account that signs vote transactions")
	flags.Duration("ledger.confirm-timeout", DefaultConfirmTimeout, "maximum wait for a vote transaction confirmation")
	flags.Int("ledger.read-attempts", DefaultReadAttempts, "attempts per rate limited ledger read")
	flags.Duration("ledger.read-base-delay", DefaultReadBaseDelay, "first backoff delay of rate limited ledger reads")
	flags.Duration("ledger.read-pace", DefaultReadPace, "pause between consecutive ledger reads")
	flags.Duration("locks.max-age", DefaultLockMaxAge, "age after which a ballot lock is considered abandoned")
	flags.Duration("locks.sweep-interval", DefaultSweepInterval, "interval between stale ballot lock sweeps")
	return flags
}

// Load parses args with flags and merges the environment and the optional
// configuration file named by --config.
func Load(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	conf.Web3.RPC = splitList(conf.Web3.RPC)
	conf.Web3.PrivKey = strings.TrimSpace(conf.Web3.PrivKey)
	if conf.DataDir == "" {
		conf.DataDir = defaultDataDir()
	}
	return conf, nil
}

// splitList accepts both repeated values and comma separated lists, as
// environment variables only carry a single string.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("invalid listen port %d", c.Listen.Port)
	}
	switch c.Log.Level {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelWarn, log.LogLevelError:
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.DB.Type {
	case storage.TypePebble:
		if c.DataDir == "" {
			return fmt.Errorf("datadir is required for the %s backend", storage.TypePebble)
		}
	case storage.TypeRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the %s backend", storage.TypeRedis)
		}
	default:
		return fmt.Errorf("unknown db.type %q", c.DB.Type)
	}
	if len(c.Web3.RPC) == 0 {
		return fmt.Errorf("at least one web3.rpc endpoint is required")
	}
	if c.Web3.PrivKey == "" {
		return fmt.Errorf("web3.privkey is required to sign vote transactions")
	}
	if c.Ledger.ConfirmTimeout <= 0 {
		return fmt.Errorf("ledger.confirm-timeout must be positive")
	}
	if c.Ledger.ReadAttempts < 1 {
		return fmt.Errorf("ledger.read-attempts must be at least 1")
	}
	if c.Ledger.ReadBaseDelay < 0 || c.Ledger.ReadPace < 0 {
		return fmt.Errorf("ledger read delays must not be negative")
	}
	if c.Locks.MaxAge <= 0 || c.Locks.SweepInterval <= 0 {
		return fmt.Errorf("locks.max-age and locks.sweep-interval must be positive")
	}
	// a lock younger than the confirmation wait may still belong to a live request
	if c.Locks.MaxAge <= c.Ledger.ConfirmTimeout {
		return fmt.Errorf("locks.max-age (%s) must exceed ledger.confirm-timeout (%s)",
			c.Locks.MaxAge, c.Ledger.ConfirmTimeout)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".electiond"
	}
	return filepath.Join(home, ".electiond")
}
