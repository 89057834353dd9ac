// Package store is the durable per-user message log.
//
// Every user id owns one append-only log of encoded messages. The whole
// log may carry an absolute expiry; setting it again overwrites it. Logs
// are never edited entry by entry.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"messenger/internal/codec"
	"messenger/internal/db"
	"messenger/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Backend stores raw log entries. Implementations must be safe for
// concurrent use without locking by the caller.
type Backend interface {
	// Append adds entry to the end of userID's log. A non-zero expireAt
	// replaces the log's expiry.
	Append(ctx context.Context, userID string, entry []byte, expireAt time.Time) error
	// ReadAll returns userID's log in append order.
	ReadAll(ctx context.Context, userID string) ([][]byte, error)
	Close() error
}

// Sweeper is implemented by backends that have to purge expired logs
// themselves.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Open connects the backend named by url. An empty url selects the
// volatile profile and returns a nil Backend.
func Open(ctx context.Context, url string) (Backend, error) {
	switch {
	case url == "":
		return nil, nil
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("store: parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("store: redis ping: %w", err)
		}
		return NewRedisBackend(rdb), nil
	}

	gdb, err := db.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("store: db connect: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("store: db migrate: %w", err)
	}
	return NewSQLBackend(gdb), nil
}

// Log layers the message codec over a Backend.
type Log struct {
	b Backend
}

func NewLog(b Backend) *Log { return &Log{b: b} }

// Record appends m to the recipient's log and then to the sender's. The
// two writes are not atomic: if the second fails the recipient keeps
// the entry and the error is returned.
func (l *Log) Record(ctx context.Context, m models.Message) error {
	entry, err := codec.Encode(m)
	if err != nil {
		return err
	}
	exp := m.ExpireAt()
	if err := l.b.Append(ctx, m.Recipient, entry, exp); err != nil {
		return fmt.Errorf("append to %s: %w", m.Recipient, err)
	}
	if m.Sender == m.Recipient {
		return nil
	}
	if err := l.b.Append(ctx, m.Sender, entry, exp); err != nil {
		return fmt.Errorf("append to %s: %w", m.Sender, err)
	}
	return nil
}

// History decodes userID's log. Entries that do not decode are skipped.
func (l *Log) History(ctx context.Context, userID string) ([]models.Message, error) {
	entries, err := l.b.ReadAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(entries))
	for i, e := range entries {
		m, err := codec.Decode(e)
		if err != nil {
			log.Warn().Err(err).Str("user", userID).Int("index", i).Msg("skip undecodable log entry")
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// RunSweeper calls s.Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("sweep expired logs")
				continue
			}
			if n > 0 {
				log.Info().Int64("logs", n).Msg("swept expired logs")
			}
		}
	}
}
