// Package kv implements HashStore and StatusStore on top of a single redis
// connection pool, following the same Redis config struct and createPool
// wiring as the registry's redis cache provider.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gdelt-collective/ingest/ingest"
)

// Redis configures the connection pool shared by HashStore and StatusStore.
type Redis struct {
	Addr     string
	Username string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Pool struct {
		MaxIdle     int
		MaxActive   int
		IdleTimeout time.Duration
	}
}

func createPool(cfg Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			return cn.Ping(ctx).Err()
		},
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      3,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxIdleConns:    cfg.Pool.MaxIdle,
		PoolSize:        cfg.Pool.MaxActive,
		ConnMaxIdleTime: cfg.Pool.IdleTimeout,
	})
}

const (
	hashKeyPrefix   = "gdelt:archive:hash:"
	statusKeyPrefix = "gdelt:file:info:"
)

// HashStore records the last-committed MD5 of each archive name, so the
// Coordinator can skip archives whose manifest hash hasn't changed (§4.2).
type HashStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHashStore builds a HashStore over its own connection to cfg, with
// records expiring after ttl.
func NewHashStore(cfg Redis, ttl time.Duration) *HashStore {
	return &HashStore{client: createPool(cfg), ttl: ttl}
}

// Stored returns the committed hash for archiveName, and false if no record
// exists.
func (h *HashStore) Stored(ctx context.Context, archiveName string) (string, bool, error) {
	val, err := h.client.Get(ctx, hashKeyPrefix+archiveName).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ingest.StatusStoreError{Op: "stored", Key: archiveName, Cause: err}
	}

	var rec ingest.ArchiveHashRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return "", false, fmt.Errorf("kv: unmarshal archive hash record: %w", err)
	}
	return rec.HashHex, true, nil
}

// Put commits hash as the current hash for archiveName, refreshing the TTL.
// It is written only after that archive's pipeline has completed end to end.
func (h *HashStore) Put(ctx context.Context, archiveName, hash string) error {
	rec := ingest.ArchiveHashRecord{ArchiveName: archiveName, HashHex: hash}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kv: marshal archive hash record: %w", err)
	}
	if err := h.client.Set(ctx, hashKeyPrefix+archiveName, payload, h.ttl).Err(); err != nil {
		return ingest.StatusStoreError{Op: "put", Key: archiveName, Cause: err}
	}
	return nil
}

// IsNewOrChanged reports whether hash differs from the currently committed
// hash for archiveName, or no hash has been committed yet. A HashStore
// failure is treated as "new" so the pipeline doesn't silently skip an
// archive it failed to check (I3: unchanged-hash lines short-circuit, not
// unreadable ones).
func (h *HashStore) IsNewOrChanged(ctx context.Context, archiveName, hash string) (bool, error) {
	stored, ok, err := h.Stored(ctx, archiveName)
	if err != nil {
		return true, err
	}
	if !ok {
		return true, nil
	}
	return stored != hash, nil
}

// StatusStore tracks delivery status for every produced object URL, so the
// RetryScheduler can find and re-publish anything the Publisher never
// confirmed (§4.3).
type StatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusStore builds a StatusStore over its own connection to cfg, with
// records expiring after ttl.
func NewStatusStore(cfg Redis, ttl time.Duration) *StatusStore {
	return &StatusStore{client: createPool(cfg), ttl: ttl}
}

// Register upserts a FileSendRecord for fileURL with Sent=false, resetting
// the TTL, whether or not a record already existed. A record already marked
// sent is reset to unsent by re-registering (P5: the only way to clear
// Sent=true before TTL expiry is another Register call), which is exactly
// what reprocessing the same archive does.
func (s *StatusStore) Register(ctx context.Context, archiveFileName, fileURL string) (bool, error) {
	key := statusKeyPrefix + fileURL
	rec := ingest.FileSendRecord{ArchiveFileName: archiveFileName, FileURL: fileURL, Sent: false}
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("kv: marshal file send record: %w", err)
	}

	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return false, ingest.StatusStoreError{Op: "register", Key: fileURL, Cause: err}
	}
	return true, nil
}

// MarkSent flips the Sent flag for fileURL to true, preserving the record's
// remaining TTL. It is a no-op, returning false, if no record exists: a
// record is never resurrected by a late acknowledgment (I2).
func (s *StatusStore) MarkSent(ctx context.Context, fileURL string) (bool, error) {
	key := statusKeyPrefix + fileURL

	rec, ok, err := s.get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if rec.Sent {
		return true, nil
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return false, ingest.StatusStoreError{Op: "marksent", Key: fileURL, Cause: err}
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	rec.Sent = true
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("kv: marshal file send record: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return false, ingest.StatusStoreError{Op: "marksent", Key: fileURL, Cause: err}
	}
	return true, nil
}

// Get returns the FileSendRecord for fileURL, and false if none exists.
func (s *StatusStore) Get(ctx context.Context, fileURL string) (ingest.FileSendRecord, bool, error) {
	return s.get(ctx, statusKeyPrefix+fileURL)
}

func (s *StatusStore) get(ctx context.Context, key string) (ingest.FileSendRecord, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ingest.FileSendRecord{}, false, nil
	}
	if err != nil {
		return ingest.FileSendRecord{}, false, ingest.StatusStoreError{Op: "get", Key: key, Cause: err}
	}

	var rec ingest.FileSendRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return ingest.FileSendRecord{}, false, fmt.Errorf("kv: unmarshal file send record: %w", err)
	}
	return rec, true, nil
}

// Pending scans for every record with Sent=false, for the RetryScheduler to
// re-publish. It uses an incremental SCAN so a large backlog never blocks
// the Redis server the way KEYS would.
func (s *StatusStore) Pending(ctx context.Context) ([]ingest.FileSendRecord, error) {
	var pending []ingest.FileSendRecord
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, statusKeyPrefix+"*", 200).Result()
		if err != nil {
			return nil, ingest.StatusStoreError{Op: "pending", Key: statusKeyPrefix + "*", Cause: err}
		}

		for _, key := range keys {
			rec, ok, err := s.get(ctx, key)
			if err != nil {
				return nil, err
			}
			if ok && !rec.Sent {
				pending = append(pending, rec)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return pending, nil
}
