package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "GUESSWHO"

type Config struct {
	Bind          string
	Port          int
	SweepInterval time.Duration
	IdleTimeout   time.Duration
	RosterPath    string
	Origins       []string
	OutboxSize    int
	Verbose       bool
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive: %s", c.SweepInterval)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive: %s", c.IdleTimeout)
	}
	if c.OutboxSize < 4 {
		return fmt.Errorf("outbox size must be at least 4: %d", c.OutboxSize)
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// RegisterFlags declares every setting on fs with its default.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: GUESSWHO_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: GUESSWHO_PORT)")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", 5*time.Minute, "how often to look for abandoned sessions (env: GUESSWHO_SWEEP_INTERVAL)")
	fs.DurationVar(&c.IdleTimeout, "idle-timeout", 30*time.Minute, "time before an empty session is removed (env: GUESSWHO_IDLE_TIMEOUT)")
	fs.StringVar(&c.RosterPath, "roster", "", "path to a JSON character roster, built-in roster if empty (env: GUESSWHO_ROSTER)")
	fs.StringSliceVar(&c.Origins, "origin", nil, "allowed websocket origin pattern, repeatable (env: GUESSWHO_ORIGIN)")
	fs.IntVar(&c.OutboxSize, "outbox-size", 32, "notifications buffered per participant (env: GUESSWHO_OUTBOX_SIZE)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "log debug output (env: GUESSWHO_VERBOSE)")
}

// BindEnv fills every flag the command line didn't set from its
// GUESSWHO_* environment variable.
func BindEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		name := envName(f.Name)
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		if err := v.BindEnv(f.Name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	})
	return errors.Join(errs...)
}

func envName(flag string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
