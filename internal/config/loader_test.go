package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pocketcal.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults when the file is missing", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTP.Addr != "127.0.0.1:8080" {
			t.Fatalf("unexpected default addr %q", cfg.HTTP.Addr)
		}
		if cfg.Storage.Driver != StorageSQLite || cfg.Remote.Driver != RemoteNone {
			t.Fatalf("unexpected default drivers %q/%q", cfg.Storage.Driver, cfg.Remote.Driver)
		}
		if cfg.Sync.Schedule != "*/15 * * * *" {
			t.Fatalf("unexpected default schedule %q", cfg.Sync.Schedule)
		}
		if cfg.Instances.MaxPerEvent != 500 {
			t.Fatalf("expected 500 instances per event, got %d", cfg.Instances.MaxPerEvent)
		}
	})

	t.Run("reads yaml fields", func(t *testing.T) {
		path := writeFile(t, `
http:
  addr: ":9090"
  read_timeout: 5s
storage:
  driver: memory
remote:
  driver: rest
  base_url: https://cal.example.com/api
  api_key: secret
sync:
  schedule: "@every 10m"
  user_id: alice
  max_backoff: 20m
timezone: Asia/Tokyo
log:
  level: DEBUG
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTP.Addr != ":9090" || cfg.HTTP.ReadTimeout != 5*time.Second {
			t.Fatalf("unexpected http section %+v", cfg.HTTP)
		}
		if cfg.Remote.Driver != RemoteREST || cfg.Remote.APIKey != "secret" {
			t.Fatalf("unexpected remote section %+v", cfg.Remote)
		}
		if cfg.Sync.MaxBackoff != 20*time.Minute || cfg.Sync.UserID != "alice" {
			t.Fatalf("unexpected sync section %+v", cfg.Sync)
		}
		if cfg.Log.Level != "debug" {
			t.Fatalf("expected lower-cased level, got %q", cfg.Log.Level)
		}
		if cfg.Location().String() != "Asia/Tokyo" {
			t.Fatalf("unexpected location %s", cfg.Location())
		}
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := writeFile(t, "http:\n  addr: \":9090\"\n")
		t.Setenv("POCKETCAL_HTTP_ADDR", ":7070")
		t.Setenv("POCKETCAL_REMOTE_DRIVER", "postgres")
		t.Setenv("POCKETCAL_REMOTE_DSN", "postgres://localhost/cal")
		t.Setenv("POCKETCAL_SYNC_USER_ID", "bob")
		t.Setenv("POCKETCAL_SYNC_MAX_BACKOFF", "90s")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTP.Addr != ":7070" {
			t.Fatalf("expected env addr, got %q", cfg.HTTP.Addr)
		}
		if cfg.Remote.Driver != RemotePostgres || cfg.Sync.UserID != "bob" {
			t.Fatalf("unexpected overlay %+v %+v", cfg.Remote, cfg.Sync)
		}
		if cfg.Sync.MaxBackoff != 90*time.Second {
			t.Fatalf("expected 90s backoff, got %s", cfg.Sync.MaxBackoff)
		}
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		path := writeFile(t, `
storage:
  driver: bolt
remote:
  driver: rest
sync:
  schedule: "not a schedule"
timezone: Mars/Olympus
log:
  level: loud
`)
		_, err := Load(path)
		if err == nil {
			t.Fatalf("expected validation error")
		}
		for _, fragment := range []string{
			"storage.driver",
			"remote.base_url",
			"sync.schedule",
			"sync.user_id",
			"timezone",
			"log.level",
		} {
			if !strings.Contains(err.Error(), fragment) {
				t.Errorf("error %q does not mention %s", err, fragment)
			}
		}
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		path := writeFile(t, "http: [unterminated")
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse") {
			t.Fatalf("expected parse error, got %v", err)
		}
	})
}
