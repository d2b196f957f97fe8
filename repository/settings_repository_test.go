package repository

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestSettingsDefaultsAndMerge(t *testing.T) {
	repo := NewSettingsRepository(filepath.Join(t.TempDir(), "settings.json"))

	s, err := repo.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.General.AutoPlay || s.General.DefaultVolume != 50 {
		t.Errorf("defaults = %+v", s.General)
	}

	merged, err := repo.Merge([]byte(`{"discord":{"channelId":"123456789012345678"},"general":{"defaultVolume":80}}`))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Discord.ChannelID != "123456789012345678" || merged.General.DefaultVolume != 80 {
		t.Errorf("merged = %+v", merged)
	}
	if !merged.General.AutoPlay {
		t.Error("fields absent from the patch must keep their value")
	}

	reloaded, _ := repo.Load()
	if reloaded != merged {
		t.Errorf("reloaded = %+v, want %+v", reloaded, merged)
	}

	if _, err := repo.Merge([]byte(`{bad`)); err == nil {
		t.Error("invalid json should fail")
	}
}

func TestCredentials(t *testing.T) {
	repo, err := NewCredentialsRepository(filepath.Join(t.TempDir(), "auth.json"), "admin", "admin")
	if err != nil {
		t.Fatalf("NewCredentialsRepository: %v", err)
	}
	if !repo.Verify("admin", "admin") {
		t.Fatal("default credentials should verify")
	}
	if repo.Verify("admin", "nope") {
		t.Error("wrong password verified")
	}

	if err := repo.Change("wrong", "", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v", err)
	}
	if err := repo.Change("admin", "", "123"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("err = %v", err)
	}
	if err := repo.Change("admin", "ab", "secret1"); !errors.Is(err, ErrShortUsername) {
		t.Errorf("err = %v", err)
	}
	if err := repo.Change("admin", "owner", "secret1"); err != nil {
		t.Fatalf("Change: %v", err)
	}
	if !repo.Verify("owner", "secret1") || repo.Verify("admin", "admin") {
		t.Error("credentials not updated")
	}
	if name, _ := repo.Username(); name != "owner" {
		t.Errorf("Username = %q", name)
	}
}
