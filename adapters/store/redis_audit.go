package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

const auditLogKey = "sso:audit"

// auditRecord wraps an event with a unique id so identical events stay
// distinct members of the sorted set.
type auditRecord struct {
	ID    string           `json:"id"`
	Event *core.AuditEvent `json:"event"`
}

// RedisAuditStore keeps the audit log in a sorted set scored by event time,
// which makes retention cleanup a range removal.
type RedisAuditStore struct {
	client *redis.Client
}

func NewRedisAuditStore(client *redis.Client) *RedisAuditStore {
	return &RedisAuditStore{client: client}
}

func (s *RedisAuditStore) Append(ctx context.Context, event *core.AuditEvent) error {
	raw, err := json.Marshal(auditRecord{ID: uuid.NewString(), Event: event})
	if err != nil {
		return core.Internal("failed to marshal audit event", err)
	}
	member := redis.Z{Score: float64(event.CreatedAt.UnixMilli()), Member: raw}
	if err := s.client.ZAdd(ctx, auditLogKey, member).Err(); err != nil {
		return core.Internal("failed to append audit event", err)
	}
	return nil
}

func (s *RedisAuditStore) Query(ctx context.Context, filter core.AuditFilter, limit int) ([]*core.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	raws, err := s.client.ZRevRange(ctx, auditLogKey, 0, -1).Result()
	if err != nil {
		return nil, core.Internal("failed to query audit log", err)
	}
	var out []*core.AuditEvent
	for _, raw := range raws {
		if len(out) >= limit {
			break
		}
		record := auditRecord{}
		if err := json.Unmarshal([]byte(raw), &record); err != nil || record.Event == nil {
			continue
		}
		if filter.Matches(record.Event) {
			out = append(out, record.Event)
		}
	}
	return out, nil
}

func (s *RedisAuditStore) Stats(ctx context.Context) (*core.AuditStats, error) {
	raws, err := s.client.ZRange(ctx, auditLogKey, 0, -1).Result()
	if err != nil {
		return nil, core.Internal("failed to read audit log", err)
	}
	stats := &core.AuditStats{
		ByAction: make(map[string]int),
		ByStatus: make(map[string]int),
	}
	for _, raw := range raws {
		record := auditRecord{}
		if err := json.Unmarshal([]byte(raw), &record); err != nil || record.Event == nil {
			continue
		}
		stats.Total++
		stats.ByAction[record.Event.Action]++
		stats.ByStatus[string(record.Event.Status)]++
		if stats.Oldest.IsZero() || record.Event.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = record.Event.CreatedAt
		}
		if record.Event.CreatedAt.After(stats.Newest) {
			stats.Newest = record.Event.CreatedAt
		}
	}
	return stats, nil
}

func (s *RedisAuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	upper := strconv.FormatInt(cutoff.UnixMilli()-1, 10)
	removed, err := s.client.ZRemRangeByScore(ctx, auditLogKey, "-inf", upper).Result()
	if err != nil {
		return 0, core.Internal("failed to trim audit log", err)
	}
	return int(removed), nil
}
