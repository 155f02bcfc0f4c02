package domain

import "github.com/sirupsen/logrus"

type Config struct {
	Version    string `toml:"-" yaml:"-"`
	Host       string `toml:"host" yaml:"host"`
	Port       int    `toml:"port" yaml:"port"`
	Root       string `toml:"root" yaml:"root"`
	APIBackend string `toml:"api_backend" yaml:"api_backend"`
	Pages      []Page `toml:"pages" yaml:"pages"`

	// Live reload and on-change hook. Both are off unless configured.
	LiveReload  bool     `toml:"livereload" yaml:"livereload"`
	OnChange    string   `toml:"on_change" yaml:"on_change"`
	WatchIgnore []string `toml:"watch_ignore" yaml:"watch_ignore"`
	Debounce    string   `toml:"debounce" yaml:"debounce"`

	Debug bool `toml:"debug" yaml:"debug"`
}

// Watching reports whether the root directory needs a file watcher.
func (c Config) Watching() bool {
	return c.LiveReload || c.OnChange != ""
}

type Context struct {
	Config Config
	Log    *logrus.Logger
}
