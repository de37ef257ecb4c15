package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/shopping-assistant/internal/domain"
)

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	cases := map[string]string{
		"app.db":                 "app.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		"file:x.db?cache=shared": "file:x.db?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
	}
	for in, want := range cases {
		if got := sqliteDSN(in); got != want {
			t.Fatalf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenSQLite_PragmasPoolAndSchema(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragmas := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
	}
	for _, p := range pragmas {
		var got string
		if err := db.Raw("PRAGMA " + p.name).Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", p.name, err)
		}
		if strings.ToLower(got) != p.want {
			t.Fatalf("PRAGMA %s = %q, want %q", p.name, got, p.want)
		}
	}

	if stats := sqlDB.Stats(); stats.MaxOpenConnections != maxOpenConns {
		t.Fatalf("expected MaxOpenConnections=%d, got %d", maxOpenConns, stats.MaxOpenConnections)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, tbl := range []any{&domain.KVEntry{}, &domain.Idempotency{}} {
		if !db.Migrator().HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Both backends work on a file-backed database.
	ctx := context.Background()
	kv := NewSQLiteKV(db)
	if err := kv.Set(ctx, "u1:chat-threads", []byte(`[]`)); err != nil {
		t.Fatalf("kv set: %v", err)
	}
	if v, err := kv.Get(ctx, "u1:chat-threads"); err != nil || string(v) != "[]" {
		t.Fatalf("kv readback: v=%s err=%v", v, err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "t1", "k1", "m1", 200, time.Hour); err != nil {
		t.Fatalf("insert idempotency: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "t1", "k1", "m2", 200, time.Hour); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}
