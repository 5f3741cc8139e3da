package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvConfig is the process environment. Command line flags override it.
type EnvConfig struct {
	Addr           string   `env:"LIEB_ADDR"            envDefault:":8000"`
	ConfigPath     string   `env:"LIEB_CONFIG"`
	LogLevel       string   `env:"LIEB_LOG_LEVEL"       envDefault:"info"`
	LogDir         string   `env:"LIEB_LOG_DIR"`
	Headless       *bool    `env:"LIEB_HEADLESS"`
	AllowedOrigins []string `env:"LIEB_ALLOWED_ORIGINS" envSeparator:","`
}

// loadEnv parses the LIEB_* variables.
func loadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// serveConfig is the resolved configuration of the serve command.
type serveConfig struct {
	EnvConfig
	Instances   int
	ShowVersion bool
}

// parseServeFlags resolves serve flags on top of the environment.
func parseServeFlags(args []string, base EnvConfig) (*serveConfig, error) {
	cfg := &serveConfig{EnvConfig: base}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)

	var headless optionalBool
	var origins string
	fs.StringVar(&cfg.Addr, "addr", base.Addr, "HTTP listen address (LIEB_ADDR)")
	fs.StringVar(&cfg.ConfigPath, "config", base.ConfigPath, "Configuration file, YAML or JSON (LIEB_CONFIG)")
	fs.StringVar(&cfg.LogLevel, "log-level", base.LogLevel, "debug, info, warn or error (LIEB_LOG_LEVEL)")
	fs.StringVar(&cfg.LogDir, "log-dir", base.LogDir, "Log directory (LIEB_LOG_DIR)")
	fs.Var(&headless, "headless", "Run browsers without windows (LIEB_HEADLESS)")
	fs.StringVar(&origins, "allowed-origins", strings.Join(base.AllowedOrigins, ","), "Comma separated websocket origins (LIEB_ALLOWED_ORIGINS)")
	fs.IntVar(&cfg.Instances, "instances", 0, "Instances to create at startup")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if headless.set {
		v := headless.value
		cfg.Headless = &v
	}
	cfg.AllowedOrigins = splitList(origins)
	if cfg.Instances < 0 {
		return nil, fmt.Errorf("-instances must not be negative")
	}
	return cfg, nil
}

// optionalBool is a boolean flag that remembers whether it was given.
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) String() string {
	if b == nil || !b.set {
		return ""
	}
	return fmt.Sprint(b.value)
}

func (b *optionalBool) Set(s string) error {
	switch strings.ToLower(s) {
	case "1", "t", "true", "yes":
		b.value = true
	case "0", "f", "false", "no":
		b.value = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	b.set = true
	return nil
}

// IsBoolFlag lets -headless be given without a value.
func (b *optionalBool) IsBoolFlag() bool { return true }

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
