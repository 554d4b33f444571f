package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/folio/internal/anchors"
	"github.com/starford/folio/internal/docservice"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	Seed    SeedConfig        `yaml:"seed"`
	Auth    AuthConfig        `yaml:"auth"`
	Anchors AnchorsConfig     `yaml:"anchors"`
	Site    SiteConfig        `yaml:"site"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Seed.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Anchors.Validate(); err != nil {
		return err
	}
	return c.Site.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

// StoreConfig holds the SQLite document store configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SeedConfig holds the seed directory configuration. An empty Dir disables
// seeding.
type SeedConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the seed configuration.
func (c *SeedConfig) Validate() error {
	if c.Watch && c.Dir == "" {
		return fmt.Errorf("seed: watch is enabled but dir is empty")
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// AnchorsConfig tunes anchor id regeneration and link rewriting.
type AnchorsConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	SafetyTimeout  time.Duration `yaml:"safety_timeout"`
	DocumentTypes  []string      `yaml:"document_types"`
	StrictLinkType bool          `yaml:"strict_link_type"`
}

// Validate validates the anchors configuration.
func (c *AnchorsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.SafetyTimeout, validation.Required, validation.Min(c.Debounce)),
		validation.Field(&c.DocumentTypes, validation.Required, validation.Each(validation.Required)),
	)
}

// SiteConfig holds the data used when rendering pages.
type SiteConfig struct {
	Name           string   `yaml:"name"`
	BaseURL        string   `yaml:"base_url"`
	ProtectedTypes []string `yaml:"protected_types"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.ProtectedTypes, validation.Each(validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:            8080,
				ShutdownTimeout: 10 * time.Second,
			},
		},
		Store: StoreConfig{
			Path: "./folio.db",
		},
		Seed: SeedConfig{
			Dir: "./content",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Anchors: AnchorsConfig{
			Debounce:      anchors.DefaultDebounce,
			SafetyTimeout: anchors.DefaultSafetyTimeout,
			DocumentTypes: append([]string(nil), anchors.DefaultDocumentTypes...),
		},
		Site: SiteConfig{
			Name:           "Folio",
			ProtectedTypes: append([]string(nil), docservice.DefaultProtectedTypes...),
		},
	}
}
