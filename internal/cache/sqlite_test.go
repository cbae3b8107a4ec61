package cache

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(sqliteSchema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestSQLite_RoundTrip(t *testing.T) {
	db := openTestSQLite(t)
	conn := &sqliteConn{db: db, now: time.Now}
	client := New([]Conn{conn}, time.Minute)
	ctx := context.Background()

	if err := client.Put(ctx, "https://example.com/q", `[{"url":"https://a"}]`); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	val, ok, err := client.Get(ctx, "https://example.com/q")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected hit immediately after put")
	}
	if val != `[{"url":"https://a"}]` {
		t.Errorf("value mismatch: %s", val)
	}

	// Overwrite refreshes the value.
	if err := client.Put(ctx, "https://example.com/q", "v2"); err != nil {
		t.Fatalf("second put failed: %v", err)
	}
	val, ok, _ = client.Get(ctx, "https://example.com/q")
	if !ok || val != "v2" {
		t.Errorf("expected refreshed value v2, got %q (hit=%v)", val, ok)
	}
}

func TestSQLite_TTLExpiry(t *testing.T) {
	db := openTestSQLite(t)

	// Mock clock: writes and reads share it so expiry is deterministic.
	current := time.Unix(1_700_000_000, 0)
	conn := &sqliteConn{db: db, now: func() time.Time { return current }}
	client := New([]Conn{conn}, 60*time.Second)
	ctx := context.Background()

	if err := client.Put(ctx, "u", "v"); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	// Just before expiry the entry is still served.
	current = current.Add(59 * time.Second)
	if _, ok, err := client.Get(ctx, "u"); err != nil || !ok {
		t.Fatalf("expected hit before TTL, got hit=%v err=%v", ok, err)
	}

	// At the TTL boundary the entry is gone.
	current = current.Add(time.Second)
	if _, ok, err := client.Get(ctx, "u"); err != nil {
		t.Fatalf("unexpected error after TTL: %v", err)
	} else if ok {
		t.Fatal("expected miss after TTL elapsed")
	}

	// The expired row was lazily deleted.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM cache_entries WHERE key = ?`, Key("u")).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected expired row to be deleted, found %d", count)
	}
}

func TestOpenSQLite(t *testing.T) {
	client, err := OpenSQLite("file::memory:?cache=shared", 3, 0)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer client.Close()

	if client.PoolSize() != 3 {
		t.Errorf("expected pool size 3, got %d", client.PoolSize())
	}

	ctx := context.Background()
	if err := client.Put(ctx, "u", "v"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if val, ok, err := client.Get(ctx, "u"); err != nil || !ok || val != "v" {
		t.Errorf("roundtrip failed: val=%q hit=%v err=%v", val, ok, err)
	}

	if _, err := OpenSQLite("file::memory:", 0, 0); err == nil {
		t.Error("expected error for non-positive pool size")
	}
}
