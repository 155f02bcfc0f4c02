package domain

// Defaults
const (
	DefaultPort       = 8080
	DefaultAPIBackend = "http://localhost:5133"
	DefaultDebounce   = "150ms"
	DefaultConfigFile = "nutrishaweb.toml"
	DefaultEnvFile    = ".env"

	IndexFile = "index.html"

	LiveReloadPath   = "/__livereload"
	LiveReloadScript = "/__livereload.js"
)

// CORS headers attached to every response.
const (
	AllowOrigin  = "*"
	AllowMethods = "GET, POST, OPTIONS"
	AllowHeaders = "Content-Type"
)

// Page is a named entry point advertised in the startup banner.
type Page struct {
	Name string `toml:"name" yaml:"name"`
	Path string `toml:"path" yaml:"path"`
}

func DefaultPages() []Page {
	return []Page{
		{Name: "Homepage", Path: "/"},
		{Name: "Sign In", Path: "/signin.html"},
		{Name: "Sign Up", Path: "/signup.html"},
	}
}

// ReloadMessage is pushed to live reload clients after files under the root change.
type ReloadMessage struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths,omitempty"`
	At    int64    `json:"at"`
}
