package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nutrishaweb/src/internal/domain"
)

// Environment variables read after the config file and .env.
const (
	EnvHost       = "NUTRISHA_HOST"
	EnvPort       = "NUTRISHA_PORT"
	EnvRoot       = "NUTRISHA_ROOT"
	EnvAPIBackend = "NUTRISHA_API_BACKEND"
	EnvLiveReload = "NUTRISHA_LIVERELOAD"
	EnvOnChange   = "NUTRISHA_ON_CHANGE"
	EnvDebug      = "NUTRISHA_DEBUG"
)

type flags struct {
	set *flag.FlagSet

	configFile string
	envFile    string
	host       string
	port       int
	root       string
	apiBackend string
	liveReload bool
	onChange   string
	debounce   string
	debug      bool
}

func newFlags(output io.Writer) *flags {
	f := &flags{set: flag.NewFlagSet("nutrishaweb", flag.ContinueOnError)}
	f.set.SetOutput(output)
	f.set.StringVar(&f.configFile, "config", "", "Path to a .toml or .yaml config file (default ./"+domain.DefaultConfigFile+" if present)")
	f.set.StringVar(&f.envFile, "env-file", domain.DefaultEnvFile, "Path to a .env file")
	f.set.StringVar(&f.host, "host", "", "Host to bind to (empty for all interfaces)")
	f.set.IntVar(&f.port, "port", domain.DefaultPort, "Port to listen on")
	f.set.StringVar(&f.root, "root", ".", "Directory to serve")
	f.set.StringVar(&f.apiBackend, "api", domain.DefaultAPIBackend, "API backend URL shown in the banner")
	f.set.BoolVar(&f.liveReload, "livereload", false, "Enable the live reload websocket and script")
	f.set.StringVar(&f.onChange, "on-change", "", "Shell command to run when files under the root change")
	f.set.StringVar(&f.debounce, "debounce", domain.DefaultDebounce, "Quiet period before reporting file changes")
	f.set.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	return f
}

func Defaults() domain.Config {
	return domain.Config{
		Port:       domain.DefaultPort,
		Root:       ".",
		APIBackend: domain.DefaultAPIBackend,
		Pages:      domain.DefaultPages(),
		Debounce:   domain.DefaultDebounce,
	}
}

// Load builds the configuration from defaults, the config file, the .env
// file, the environment and finally explicitly set flags, in that order.
func Load(args []string) (*domain.Config, error) {
	f := newFlags(os.Stderr)
	if err := f.set.Parse(args); err != nil {
		return nil, err
	}

	cfg := Defaults()

	// 1. Config file
	path, explicit := f.configFile, f.configFile != ""
	if !explicit {
		path = domain.DefaultConfigFile
	}
	if err := loadFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// 2. .env, then the real environment
	dotenv, err := godotenv.Read(f.envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read env file %s: %w", f.envFile, err)
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}

	// 3. Flags the operator actually passed
	f.set.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "host":
			cfg.Host = f.host
		case "port":
			cfg.Port = f.port
		case "root":
			cfg.Root = f.root
		case "api":
			cfg.APIBackend = f.apiBackend
		case "livereload":
			cfg.LiveReload = f.liveReload
		case "on-change":
			cfg.OnChange = f.onChange
		case "debounce":
			cfg.Debounce = f.debounce
		case "debug":
			cfg.Debug = f.debug
		}
	})

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *domain.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *domain.Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvHost); ok {
		cfg.Host = v
	}
	if v, ok := lookup(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Port = port
	}
	if v, ok := lookup(EnvRoot); ok {
		cfg.Root = v
	}
	if v, ok := lookup(EnvAPIBackend); ok {
		cfg.APIBackend = v
	}
	if v, ok := lookup(EnvLiveReload); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvLiveReload, v, err)
		}
		cfg.LiveReload = b
	}
	if v, ok := lookup(EnvOnChange); ok {
		cfg.OnChange = v
	}
	if v, ok := lookup(EnvDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDebug, v, err)
		}
		cfg.Debug = b
	}
	return nil
}

// Validate checks cfg and resolves Root to an absolute path.
func Validate(cfg *domain.Config) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}

	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", cfg.Root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("root directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", abs)
	}
	cfg.Root = abs

	if _, err := DebounceDuration(*cfg); err != nil {
		return err
	}
	if len(cfg.Pages) == 0 {
		cfg.Pages = domain.DefaultPages()
	}
	return nil
}

func DebounceDuration(cfg domain.Config) (time.Duration, error) {
	if cfg.Debounce == "" {
		cfg.Debounce = domain.DefaultDebounce
	}
	d, err := time.ParseDuration(cfg.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid debounce duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("debounce must be positive, got %s", d)
	}
	return d, nil
}
