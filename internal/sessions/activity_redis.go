package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeCallsKey = "active_calls"

// ActivityIndex mirrors live calls into Redis so operators can see activity
// across instances. It is advisory: transcripts stay in process memory.
type ActivityIndex struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewActivityIndex(rdb *redis.Client, ttl time.Duration) *ActivityIndex {
	return &ActivityIndex{Redis: rdb, TTL: ttl}
}

func callKey(callID string) string { return "call:" + callID }

// Touch records the call as active and refreshes its expiry.
func (x *ActivityIndex) Touch(ctx context.Context, s Summary) error {
	if x == nil || x.Redis == nil {
		return nil
	}
	key := callKey(s.CallID)
	pipe := x.Redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"tenant_id":      s.TenantID,
		"turns":          s.Turns,
		"created_at":     s.CreatedAt.UTC().Format(time.RFC3339),
		"last_active_at": s.LastActiveAt.UTC().Format(time.RFC3339),
	})
	pipe.SAdd(ctx, activeCallsKey, s.CallID)
	if x.TTL > 0 {
		pipe.Expire(ctx, key, x.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("activity touch %s: %w", s.CallID, err)
	}
	return nil
}

// Remove clears expired calls from the index.
func (x *ActivityIndex) Remove(ctx context.Context, callIDs ...string) error {
	if x == nil || x.Redis == nil || len(callIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(callIDs))
	members := make([]any, 0, len(callIDs))
	for _, id := range callIDs {
		keys = append(keys, callKey(id))
		members = append(members, id)
	}
	pipe := x.Redis.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, activeCallsKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("activity remove: %w", err)
	}
	return nil
}

// Count returns the number of calls currently in the index.
func (x *ActivityIndex) Count(ctx context.Context) (int64, error) {
	if x == nil || x.Redis == nil {
		return 0, nil
	}
	return x.Redis.SCard(ctx, activeCallsKey).Result()
}
