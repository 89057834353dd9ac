package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"messenger/internal/codec"
	"messenger/internal/db"
	"messenger/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBackend(rdb)
	t.Cleanup(func() { _ = b.Close() })
	return b, mr
}

func newSQLBackend(t *testing.T) *SQLBackend {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "log.db") + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	gdb, err := db.Connect(dsn)
	if err != nil {
		t.Fatalf("db.Connect() error = %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("db.Migrate() error = %v", err)
	}
	b := NewSQLBackend(gdb)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// backends runs fn against every Backend implementation.
func backends(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Run("redis", func(t *testing.T) {
		b, _ := newRedisBackend(t)
		fn(t, b)
	})
	t.Run("sql", func(t *testing.T) {
		fn(t, newSQLBackend(t))
	})
}

func TestBackend_AppendReadAll(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		for _, e := range []string{"one", "two", "three"} {
			if err := b.Append(ctx, "alice", []byte(e), time.Time{}); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
		}
		_ = b.Append(ctx, "bob", []byte("other"), time.Time{})

		got, err := b.ReadAll(ctx, "alice")
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		want := []string{"one", "two", "three"}
		if len(got) != len(want) {
			t.Fatalf("ReadAll() = %d entries, want %d", len(got), len(want))
		}
		for i := range want {
			if string(got[i]) != want[i] {
				t.Errorf("ReadAll()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestBackend_ReadAll_Unknown(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		got, err := b.ReadAll(context.Background(), "nobody")
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ReadAll() for unknown user = %d entries, want 0", len(got))
		}
	})
}

func TestBackend_ConcurrentAppend(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := b.Append(ctx, "alice", []byte("x"), time.Time{}); err != nil {
					t.Errorf("Append() error = %v", err)
				}
			}()
		}
		wg.Wait()
		got, _ := b.ReadAll(ctx, "alice")
		if len(got) != 20 {
			t.Errorf("ReadAll() after concurrent appends = %d, want 20", len(got))
		}
	})
}

func TestRedisBackend_ExpireAt(t *testing.T) {
	b, mr := newRedisBackend(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	mr.SetTime(now)

	_ = b.Append(ctx, "alice", []byte("a"), time.Time{})
	if ttl := mr.TTL(logKey("alice")); ttl != 0 {
		t.Errorf("TTL without expiry = %v, want 0", ttl)
	}
	_ = b.Append(ctx, "alice", []byte("b"), now.Add(100*time.Second))
	if ttl := mr.TTL(logKey("alice")); ttl != 100*time.Second {
		t.Errorf("TTL = %v, want 100s", ttl)
	}
	// A later expiry overwrites, it does not extend per entry.
	_ = b.Append(ctx, "alice", []byte("c"), now.Add(10*time.Second))
	if ttl := mr.TTL(logKey("alice")); ttl != 10*time.Second {
		t.Errorf("TTL after overwrite = %v, want 10s", ttl)
	}

	mr.FastForward(11 * time.Second)
	got, _ := b.ReadAll(ctx, "alice")
	if len(got) != 0 {
		t.Errorf("ReadAll() after expiry = %d entries, want 0", len(got))
	}
}

func TestSQLBackend_Expiry(t *testing.T) {
	b := newSQLBackend(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	b.now = func() time.Time { return now }

	_ = b.Append(ctx, "alice", []byte("a"), time.Time{})
	if _, ok, _ := b.Expiry(ctx, "alice"); ok {
		t.Error("Expiry() set without a delete timestamp")
	}
	_ = b.Append(ctx, "alice", []byte("b"), now.Add(100*time.Second))
	_ = b.Append(ctx, "alice", []byte("c"), now.Add(10*time.Second))
	exp, ok, err := b.Expiry(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("Expiry() = %v, %v, %v", exp, ok, err)
	}
	if !exp.Equal(now.Add(10 * time.Second)) {
		t.Errorf("Expiry() = %v, want %v", exp, now.Add(10*time.Second))
	}
	if got, _ := b.ReadAll(ctx, "alice"); len(got) != 3 {
		t.Fatalf("ReadAll() before expiry = %d entries, want 3", len(got))
	}

	now = now.Add(10 * time.Second)
	if got, _ := b.ReadAll(ctx, "alice"); len(got) != 0 {
		t.Errorf("ReadAll() at expiry = %d entries, want 0", len(got))
	}
	if _, ok, _ := b.Expiry(ctx, "alice"); ok {
		t.Error("Expiry() still set after the log was purged")
	}

	// A fresh append after expiry starts a new log with no expiry.
	_ = b.Append(ctx, "alice", []byte("d"), time.Time{})
	if got, _ := b.ReadAll(ctx, "alice"); len(got) != 1 || string(got[0]) != "d" {
		t.Errorf("ReadAll() after re-append = %q, want [d]", got)
	}
}

func TestSQLBackend_Sweep(t *testing.T) {
	b := newSQLBackend(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	b.now = func() time.Time { return now }

	_ = b.Append(ctx, "alice", []byte("a"), now.Add(5*time.Second))
	_ = b.Append(ctx, "bob", []byte("b"), now.Add(time.Hour))
	_ = b.Append(ctx, "carol", []byte("c"), time.Time{})

	now = now.Add(time.Minute)
	n, err := b.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep() removed %d logs, want 1", n)
	}
	var count int64
	b.db.Model(&models.LogEntry{}).Where("user_id = ?", "alice").Count(&count)
	if count != 0 {
		t.Errorf("alice entries after sweep = %d, want 0", count)
	}
	for _, u := range []string{"bob", "carol"} {
		if got, _ := b.ReadAll(ctx, u); len(got) != 1 {
			t.Errorf("ReadAll(%s) after sweep = %d entries, want 1", u, len(got))
		}
	}
}

type failingBackend struct {
	Backend
	failFor string
}

func (f *failingBackend) Append(ctx context.Context, userID string, entry []byte, expireAt time.Time) error {
	if userID == f.failFor {
		return errors.New("boom")
	}
	return f.Backend.Append(ctx, userID, entry, expireAt)
}

func TestLog_RecordBothParties(t *testing.T) {
	b, mr := newRedisBackend(t)
	mr.SetTime(time.Unix(1_700_000_000, 0))
	l := NewLog(b)
	ctx := context.Background()

	m := models.Message{Sender: "bob", Recipient: "alice", Content: "hi", DeleteTimestamp: 1_700_000_600}
	if err := l.Record(ctx, m); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	for _, u := range []string{"alice", "bob"} {
		got, err := l.History(ctx, u)
		if err != nil {
			t.Fatalf("History(%s) error = %v", u, err)
		}
		if len(got) != 1 || got[0] != m {
			t.Errorf("History(%s) = %+v, want [%+v]", u, got, m)
		}
		if ttl := mr.TTL(logKey(u)); ttl != 600*time.Second {
			t.Errorf("TTL(%s) = %v, want 600s", u, ttl)
		}
	}
}

func TestLog_RecordSelf(t *testing.T) {
	b, _ := newRedisBackend(t)
	l := NewLog(b)
	ctx := context.Background()
	_ = l.Record(ctx, models.Message{Sender: "alice", Recipient: "alice", Content: "note"})
	if got, _ := l.History(ctx, "alice"); len(got) != 1 {
		t.Errorf("History() for self message = %d entries, want 1", len(got))
	}
}

func TestLog_RecordPartialFailure(t *testing.T) {
	inner, _ := newRedisBackend(t)
	l := NewLog(&failingBackend{Backend: inner, failFor: "bob"})
	ctx := context.Background()

	err := l.Record(ctx, models.Message{Sender: "bob", Recipient: "alice", Content: "hi"})
	if err == nil {
		t.Fatal("Record() error = nil, want failure for sender log")
	}
	if got, _ := l.History(ctx, "alice"); len(got) != 1 {
		t.Errorf("recipient log = %d entries, want 1", len(got))
	}
}

func TestLog_HistorySkipsCorrupt(t *testing.T) {
	b, _ := newRedisBackend(t)
	l := NewLog(b)
	ctx := context.Background()

	m1 := models.Message{Sender: "bob", Recipient: "alice", Content: "m1"}
	m2 := models.Message{Sender: "bob", Recipient: "alice", Content: "m2"}
	e1, _ := codec.Encode(m1)
	e2, _ := codec.Encode(m2)
	_ = b.Append(ctx, "alice", e1, time.Time{})
	_ = b.Append(ctx, "alice", []byte("garbage"), time.Time{})
	_ = b.Append(ctx, "alice", e2, time.Time{})

	got, err := l.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 || got[0] != m1 || got[1] != m2 {
		t.Errorf("History() = %+v, want [m1 m2]", got)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, "")
	if err != nil || b != nil {
		t.Errorf("Open(\"\") = %v, %v; want nil, nil", b, err)
	}

	mr := miniredis.RunT(t)
	b, err = Open(ctx, "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("Open(redis) error = %v", err)
	}
	if _, ok := b.(*RedisBackend); !ok {
		t.Errorf("Open(redis) = %T, want *RedisBackend", b)
	}
	_ = b.Close()

	b, err = Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "open.db"))
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	if _, ok := b.(Sweeper); !ok {
		t.Errorf("Open(sqlite) = %T, want a Sweeper", b)
	}
	_ = b.Close()
}
