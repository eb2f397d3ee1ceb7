package internal

import (
	"testing"

	"github.com/mweide/shadowtwin/internal/twin"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Library.ID = "lib1"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestConfigValidateRequiresLibraryID(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("missing library id accepted")
	}
}

func TestConfigValidatePort(t *testing.T) {
	cfg := validConfig()
	cfg.App.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("port 0 accepted")
	}
	cfg.App.HTTP.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("port 70000 accepted")
	}
}

func TestConfigValidatePrimaryStore(t *testing.T) {
	cfg := validConfig()
	cfg.Library.PrimaryStore = "redis"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown primary store accepted")
	}

	cfg = validConfig()
	cfg.Library.PrimaryStore = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty primary store not defaulted: %v", err)
	}
	if cfg.Library.PrimaryStore != twin.PrimaryMongo {
		t.Errorf("primary store = %q", cfg.Library.PrimaryStore)
	}
}

func TestConfigValidateMirrorNeedsVaultPath(t *testing.T) {
	cfg := validConfig()
	cfg.Library.MirrorToFilesystem = true
	cfg.Vault.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("mirroring without vault path accepted")
	}

	cfg.Vault.Path = "./vault"
	if err := cfg.Validate(); err != nil {
		t.Errorf("mirroring with vault path rejected: %v", err)
	}

	// Filesystem-primary implies mirroring too.
	cfg = validConfig()
	cfg.Library.PrimaryStore = twin.PrimaryFilesystem
	cfg.Vault.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("filesystem primary without vault path accepted")
	}
}

func TestAuthConfigValidate(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = AuthModeToken
	if err := cfg.Validate(); err == nil {
		t.Error("token mode without token accepted")
	}

	cfg.Auth.Token = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("token mode with token rejected: %v", err)
	}
	if !cfg.Auth.AuthEnabled() {
		t.Error("AuthEnabled = false for token mode")
	}

	cfg = validConfig()
	cfg.Auth.Mode = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty mode rejected: %v", err)
	}
	if cfg.Auth.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want normalised to disabled", cfg.Auth.Mode)
	}
}

func TestObjectStoreEnabled(t *testing.T) {
	var c ObjectStoreConfig
	if c.Enabled() {
		t.Error("empty object store enabled")
	}
	c.URL = "https://objects.example.com"
	if c.Enabled() {
		t.Error("object store without bucket enabled")
	}
	c.Bucket = "fragments"
	if !c.Enabled() {
		t.Error("configured object store disabled")
	}
}

func TestLibraryConfigTwin(t *testing.T) {
	c := LibraryConfig{
		ID:                 "lib1",
		PrimaryStore:       twin.PrimaryFilesystem,
		MirrorToFilesystem: false,
		OwnerUserID:        "u1",
		OwnerEmail:         "u1@example.com",
	}
	got := c.Twin()
	if got.LibraryID != "lib1" || got.PrimaryStore != twin.PrimaryFilesystem {
		t.Errorf("twin config = %+v", got)
	}
	if got.Owner.UserID != "u1" || got.Owner.Email != "u1@example.com" {
		t.Errorf("owner = %+v", got.Owner)
	}
	if !got.MirrorExpected() {
		t.Error("filesystem primary should expect a mirror")
	}
}
