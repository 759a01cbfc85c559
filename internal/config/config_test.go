package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultClientConfig()
	if cfg != want {
		t.Errorf("Load() = %+v\nwant %+v", cfg, want)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("AFFLUENCE_API_BASE", "http://localhost:8000/api")
	t.Setenv("AFFLUENCE_FRONTEND_HTML", "/srv/www/index.html")
	t.Setenv("AFFLUENCE_TIMEOUT", "5s")
	t.Setenv("AFFLUENCE_MAX_RETRIES", "2")
	t.Setenv("AFFLUENCE_OUTPUT", "json")
	t.Setenv("AFFLUENCE_STORAGE_BACKEND", "redis")
	t.Setenv("AFFLUENCE_STORAGE_REDIS_ADDR", "cache:6380")
	t.Setenv("AFFLUENCE_STORAGE_REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBase != "http://localhost:8000/api" {
		t.Errorf("APIBase = %q", cfg.APIBase)
	}
	if cfg.FrontendHTML != "/srv/www/index.html" {
		t.Errorf("FrontendHTML = %q", cfg.FrontendHTML)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s", cfg.Timeout)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q", cfg.Output)
	}
	if cfg.Storage.Backend != BackendRedis || cfg.Storage.RedisAddr != "cache:6380" || cfg.Storage.RedisDB != 3 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Storage.RedisPrefix != "affluence:" {
		t.Errorf("RedisPrefix default lost: %q", cfg.Storage.RedisPrefix)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "affluence.env")
	content := "AFFLUENCE_STORAGE_BACKEND=sqlite\nAFFLUENCE_STORAGE_PATH=" + filepath.Join(dir, "s.db") + "\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	// Registered with t.Setenv so the values loaded from the file are
	// restored when the test ends.
	t.Setenv("AFFLUENCE_STORAGE_BACKEND", "")
	t.Setenv("AFFLUENCE_STORAGE_PATH", "")
	os.Unsetenv("AFFLUENCE_STORAGE_BACKEND")
	os.Unsetenv("AFFLUENCE_STORAGE_PATH")

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Path != filepath.Join(dir, "s.db") {
		t.Errorf("Path = %q", cfg.Storage.Path)
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("expected error for an explicit missing env file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ClientConfig)
		wantErr string
	}{
		{"defaults", func(*ClientConfig) {}, ""},
		{"yaml output", func(c *ClientConfig) { c.Output = "yaml" }, ""},
		{"bad output", func(c *ClientConfig) { c.Output = "xml" }, "invalid output format"},
		{"zero timeout", func(c *ClientConfig) { c.Timeout = 0 }, "timeout must be positive"},
		{"negative retries", func(c *ClientConfig) { c.MaxRetries = -1 }, "max retries"},
		{"unknown backend", func(c *ClientConfig) { c.Storage.Backend = "etcd" }, "unknown storage backend"},
		{"mysql without dsn", func(c *ClientConfig) { c.Storage.Backend = BackendMySQL }, "AFFLUENCE_STORAGE_MYSQL_DSN"},
		{"mysql with dsn", func(c *ClientConfig) {
			c.Storage.Backend = BackendMySQL
			c.Storage.MysqlDSN = "u:p@tcp(localhost:3306)/affluence"
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolvedPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	tests := []struct {
		cfg  StorageConfig
		want string
	}{
		{StorageConfig{Backend: BackendFile}, "/home/tester/.affluence/storage.json"},
		{StorageConfig{Backend: BackendSQLite}, "/home/tester/.affluence/affluence.db"},
		{StorageConfig{Backend: BackendSQLite, Path: "/tmp/x.db"}, "/tmp/x.db"},
	}
	for _, tt := range tests {
		got, err := tt.cfg.ResolvedPath()
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("ResolvedPath(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
