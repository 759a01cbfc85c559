package storage

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/me/affluence/internal/config"
	"github.com/me/affluence/pkg/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// backends returns a fresh store per backend. Redis and MySQL join only when
// a server is configured through the environment.
func backends(t *testing.T) map[string]func(t *testing.T) session.Store {
	t.Helper()
	b := map[string]func(t *testing.T) session.Store{
		"memory": func(t *testing.T) session.Store { return session.NewMemoryStore() },
		"file": func(t *testing.T) session.Store {
			st, err := NewFileStore(filepath.Join(t.TempDir(), "state", "storage.json"), testLogger())
			if err != nil {
				t.Fatalf("open file store: %v", err)
			}
			return st
		},
		"sqlite": func(t *testing.T) session.Store {
			st, err := NewSQLiteStore(":memory:", testLogger())
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			if err := st.Migrate(context.Background()); err != nil {
				t.Fatalf("migrate: %v", err)
			}
			t.Cleanup(func() { st.Close() })
			return st
		},
	}
	if addr := os.Getenv("AFFLUENCE_TEST_REDIS_ADDR"); addr != "" {
		b["redis"] = func(t *testing.T) session.Store {
			st, err := NewRedisStore(context.Background(), RedisConfig{
				Addr:   addr,
				Prefix: "affluence-test:" + uuid.NewString() + ":",
			}, testLogger())
			if err != nil {
				t.Fatalf("open redis: %v", err)
			}
			t.Cleanup(func() {
				keys, _ := st.Keys(context.Background())
				st.Delete(context.Background(), keys...)
				st.Close()
			})
			return st
		}
	}
	if dsn := os.Getenv("AFFLUENCE_TEST_MYSQL_DSN"); dsn != "" {
		b["mysql"] = func(t *testing.T) session.Store {
			st, err := NewMySQLStore(context.Background(), dsn, testLogger())
			if err != nil {
				t.Fatalf("open mysql: %v", err)
			}
			if err := st.Migrate(context.Background()); err != nil {
				t.Fatalf("migrate: %v", err)
			}
			if _, err := st.db.Exec(`DELETE FROM kv`); err != nil {
				t.Fatalf("clear kv: %v", err)
			}
			t.Cleanup(func() { st.Close() })
			return st
		}
	}
	return b
}

func TestStoreConformance(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("get missing", func(t *testing.T) {
				st := open(t)
				v, ok, err := st.Get(context.Background(), session.KeyToken)
				if err != nil || ok || v != "" {
					t.Errorf("Get(missing) = %q, %v, %v", v, ok, err)
				}
			})

			t.Run("set get overwrite", func(t *testing.T) {
				st := open(t)
				ctx := context.Background()
				if err := st.Set(ctx, session.KeyToken, "one"); err != nil {
					t.Fatal(err)
				}
				if err := st.Set(ctx, session.KeyToken, "two"); err != nil {
					t.Fatal(err)
				}
				v, ok, err := st.Get(ctx, session.KeyToken)
				if err != nil || !ok || v != "two" {
					t.Errorf("Get = %q, %v, %v; want two", v, ok, err)
				}
			})

			t.Run("empty value is present", func(t *testing.T) {
				st := open(t)
				ctx := context.Background()
				st.Set(ctx, session.KeyTheme, "")
				if _, ok, _ := st.Get(ctx, session.KeyTheme); !ok {
					t.Error("empty value reported absent")
				}
			})

			t.Run("delete", func(t *testing.T) {
				st := open(t)
				ctx := context.Background()
				st.Set(ctx, "a", "1")
				st.Set(ctx, "b", "2")
				st.Set(ctx, "c", "3")
				if err := st.Delete(ctx, "a", "b", "never-set"); err != nil {
					t.Fatal(err)
				}
				for k, want := range map[string]bool{"a": false, "b": false, "c": true} {
					if _, ok, _ := st.Get(ctx, k); ok != want {
						t.Errorf("after delete, %s present = %v, want %v", k, ok, want)
					}
				}
			})

			t.Run("apply", func(t *testing.T) {
				st := open(t)
				ctx := context.Background()
				st.Set(ctx, session.KeyAdminTokenBackup, "admin")
				st.Set(ctx, session.KeyImpersonationMeta, `{"username":"bob"}`)
				st.Set(ctx, session.KeyToken, "user")

				err := st.Apply(ctx,
					session.SetOp(session.KeyToken, "admin"),
					session.DeleteOp(session.KeyAdminTokenBackup),
					session.DeleteOp(session.KeyImpersonationMeta),
				)
				if err != nil {
					t.Fatalf("Apply: %v", err)
				}
				if v, _, _ := st.Get(ctx, session.KeyToken); v != "admin" {
					t.Errorf("token = %q, want admin", v)
				}
				for _, k := range []string{session.KeyAdminTokenBackup, session.KeyImpersonationMeta} {
					if _, ok, _ := st.Get(ctx, k); ok {
						t.Errorf("%s still present", k)
					}
				}
				if err := st.Apply(ctx); err != nil {
					t.Errorf("empty Apply: %v", err)
				}
			})

			t.Run("keys", func(t *testing.T) {
				st := open(t)
				ctx := context.Background()
				st.Set(ctx, "b", "2")
				st.Set(ctx, "a", "1")
				keys, err := ListKeys(ctx, st)
				if err != nil {
					t.Fatalf("ListKeys: %v", err)
				}
				if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
					t.Errorf("keys = %v, want [a b]", keys)
				}
			})

			t.Run("session round trip", func(t *testing.T) {
				st := open(t)
				ctx := context.Background()
				m := session.New(ctx, st, nil)
				m.SetToken(ctx, "admin123")
				if err := m.StartImpersonation(ctx, "bobtoken", session.Meta{Username: "bob"}); err != nil {
					t.Fatal(err)
				}
				restored, err := m.StopImpersonation(ctx)
				if err != nil || !restored {
					t.Fatalf("StopImpersonation = %v, %v", restored, err)
				}

				// A new manager over the same store sees the restored state.
				fresh := session.New(ctx, st, nil)
				if fresh.Token(ctx) != "admin123" || fresh.IsImpersonating(ctx) {
					t.Errorf("persisted token = %q impersonating = %v", fresh.Token(ctx), fresh.IsImpersonating(ctx))
				}
			})
		})
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	ctx := context.Background()

	a, err := NewFileStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Set(ctx, session.KeyToken, "persisted"); err != nil {
		t.Fatal(err)
	}

	b, err := NewFileStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := b.Get(ctx, session.KeyToken); !ok || v != "persisted" {
		t.Errorf("second instance Get = %q, %v", v, ok)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".storage-*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	os.WriteFile(path, []byte("{not json"), 0o600)

	st, err := NewFileStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := st.Get(context.Background(), session.KeyToken); err == nil {
		t.Error("expected parse error for corrupt file")
	}
	if err := st.Set(context.Background(), session.KeyToken, "x"); err == nil {
		t.Error("write over a corrupt file must fail rather than discard it")
	}
}

func TestFileStore_ConcurrentWriters(t *testing.T) {
	st, err := NewFileStore(filepath.Join(t.TempDir(), "storage.json"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.Set(ctx, "k"+string(rune('a'+i)), "v")
		}(i)
	}
	wg.Wait()

	keys, err := st.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 20 {
		t.Errorf("keys = %d, want 20", len(keys))
	}
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "affluence.db")
	ctx := context.Background()

	st, err := Open(ctx, config.StorageConfig{Backend: config.BackendSQLite, Path: path}, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Set(ctx, session.KeyAPIBase, "http://localhost:8000/api"); err != nil {
		t.Fatal(err)
	}
	st.Close()

	reopened, err := Open(ctx, config.StorageConfig{Backend: config.BackendSQLite, Path: path}, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if v, ok, _ := reopened.Get(ctx, session.KeyAPIBase); !ok || v != "http://localhost:8000/api" {
		t.Errorf("Get after reopen = %q, %v", v, ok)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
		check   func(t *testing.T, st session.Store)
	}{
		{"memory", config.StorageConfig{Backend: config.BackendMemory}, false, func(t *testing.T, st session.Store) {
			if _, ok := st.(*session.MemoryStore); !ok {
				t.Errorf("got %T", st)
			}
		}},
		{"file", config.StorageConfig{Backend: config.BackendFile, Path: filepath.Join(dir, "s.json")}, false, func(t *testing.T, st session.Store) {
			fs, ok := st.(*FileStore)
			if !ok || fs.Path() != filepath.Join(dir, "s.json") {
				t.Errorf("got %T %v", st, st)
			}
		}},
		{"sqlite", config.StorageConfig{Backend: config.BackendSQLite, Path: ":memory:"}, false, func(t *testing.T, st session.Store) {
			if s, ok := st.(*SQLStore); !ok || s.Dialect() != DialectSQLite {
				t.Errorf("got %T", st)
			}
		}},
		{"unknown", config.StorageConfig{Backend: "etcd"}, true, nil},
		{"mysql without dsn", config.StorageConfig{Backend: config.BackendMySQL}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Open(context.Background(), tt.cfg, testLogger())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()
			tt.check(t, st)
		})
	}
}

func TestRedisStore_Unreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: "127.0.0.1:1"}, testLogger())
	if err == nil {
		t.Fatal("expected ping failure")
	}
}

type noListStore struct{ session.Store }

func TestListKeys_Unsupported(t *testing.T) {
	_, err := ListKeys(context.Background(), noListStore{session.NewMemoryStore()})
	if err == nil {
		t.Error("expected error for a store without key listing")
	}
}
