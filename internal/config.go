package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/twin"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Vault       VaultConfig       `yaml:"vault"`
	Mongo       MongoConfig       `yaml:"mongo"`
	Library     LibraryConfig     `yaml:"library"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Mongo.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if c.Library.Twin().MirrorExpected() && c.Vault.Path == "" {
		return fmt.Errorf("vault: path is required when mirroring is enabled")
	}
	return c.Auth.Validate()
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
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the file-store root. The path may be empty for
// database-only deployments; mirroring, sync, and migration then degrade.
type VaultConfig struct {
	Path string `yaml:"path"`
	// Watch enables the filesystem watcher that feeds mirrored edits back
	// into the database.
	Watch bool `yaml:"watch"`
}

// MongoConfig holds the document database connection.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// Validate validates the mongo configuration.
func (c *MongoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URI, validation.Required),
		validation.Field(&c.Database, validation.Required),
	)
}

// LibraryConfig holds the per-library storage behavior.
type LibraryConfig struct {
	ID                 string `yaml:"id"`
	PrimaryStore       string `yaml:"primary_store"`
	MirrorToFilesystem bool   `yaml:"mirror_to_filesystem"`
	OwnerUserID        string `yaml:"owner_user_id"`
	OwnerEmail         string `yaml:"owner_email"`
	MigrationWorkers   int    `yaml:"migration_workers"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	if c.PrimaryStore == "" {
		c.PrimaryStore = twin.PrimaryMongo
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.PrimaryStore, validation.Required,
			validation.In(twin.PrimaryMongo, twin.PrimaryFilesystem)),
	)
}

// Twin maps the YAML configuration onto the domain-level library config.
func (c *LibraryConfig) Twin() twin.LibraryConfig {
	return twin.LibraryConfig{
		LibraryID:          c.ID,
		PrimaryStore:       c.PrimaryStore,
		MirrorToFilesystem: c.MirrorToFilesystem,
		Owner:              models.Owner{UserID: c.OwnerUserID, Email: c.OwnerEmail},
	}
}

// ObjectStoreConfig holds the object-storage service used for binary
// fragments. Leaving URL empty disables uploads; fragments then reference
// file-store ids.
type ObjectStoreConfig struct {
	URL    string `yaml:"url"`
	Key    string `yaml:"key"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether an object-storage service is configured.
func (c *ObjectStoreConfig) Enabled() bool {
	return c.URL != "" && c.Bucket != ""
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "shadowtwin",
		},
		Library: LibraryConfig{
			PrimaryStore: twin.PrimaryMongo,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
