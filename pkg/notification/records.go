package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRecordNotFound is returned when no delivery record exists for a key.
var ErrRecordNotFound = errors.New("delivery record not found")

// Record is the durable trace of one delivery attempt, kept for a bounded
// retention window.
type Record struct {
	NotificationID    string    `json:"notification_id"`
	Channel           string    `json:"channel"`
	Recipient         string    `json:"recipient,omitempty"`
	Success           bool      `json:"success"`
	Attempts          int       `json:"attempts"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	ErrorCode         string    `json:"error_code,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// RecordFromResult converts a DeliveryResult into its persisted form.
func RecordFromResult(res DeliveryResult) Record {
	rec := Record{
		NotificationID:    res.NotificationID,
		Channel:           res.Channel,
		Recipient:         res.Recipient,
		Success:           res.Success,
		Attempts:          res.Attempts,
		ProviderMessageID: res.ProviderMessageID,
		Timestamp:         res.Timestamp,
	}
	if res.Error != nil {
		rec.ErrorCode = string(res.Error.Code)
	}
	return rec
}

// RecordStore persists delivery records keyed by (channel, notification id).
type RecordStore interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, channel, notificationID string) (*Record, error)
}

// RedisRecordStore keeps delivery records in Redis with a TTL so retention
// is enforced by the store itself.
type RedisRecordStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisRecordStore creates a record store with the given retention TTL.
// A non-positive TTL falls back to 30 days.
func NewRedisRecordStore(client redis.UniversalClient, ttl time.Duration) *RedisRecordStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisRecordStore{client: client, ttl: ttl}
}

func recordKey(channel, notificationID string) string {
	return "delivery:" + channel + ":" + notificationID
}

func (s *RedisRecordStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, recordKey(rec.Channel, rec.NotificationID), data, s.ttl).Err()
}

func (s *RedisRecordStore) Get(ctx context.Context, channel, notificationID string) (*Record, error) {
	data, err := s.client.Get(ctx, recordKey(channel, notificationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MemoryRecordStore is an in-memory record store for development and tests.
// Expiry is checked lazily on read.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	records map[string]memoryRecord
}

type memoryRecord struct {
	rec     Record
	savedAt time.Time
}

func NewMemoryRecordStore(ttl time.Duration) *MemoryRecordStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &MemoryRecordStore{ttl: ttl, records: make(map[string]memoryRecord)}
}

func (s *MemoryRecordStore) Save(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(rec.Channel, rec.NotificationID)] = memoryRecord{rec: rec, savedAt: time.Now()}
	return nil
}

func (s *MemoryRecordStore) Get(ctx context.Context, channel, notificationID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mr, ok := s.records[recordKey(channel, notificationID)]
	if !ok || time.Since(mr.savedAt) > s.ttl {
		return nil, ErrRecordNotFound
	}
	rec := mr.rec
	return &rec, nil
}
