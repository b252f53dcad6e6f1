package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NordCoder/Alertus/internal/channel"
	goredis "github.com/redis/go-redis/v9"
)

const defaultInboxSize = 200

var _ channel.Inbox = (*Inbox)(nil)

// Inbox keeps the newest in-app notifications per user in a capped list.
type Inbox struct {
	client *goredis.Client
	size   int64
}

func NewInbox(client *goredis.Client, size int) *Inbox {
	if size <= 0 {
		size = defaultInboxSize
	}
	return &Inbox{client: client, size: int64(size)}
}

func inboxKey(userID int64) string { return fmt.Sprintf("inbox:%d", userID) }

func (i *Inbox) Push(ctx context.Context, userID int64, item channel.InboxItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal inbox item: %w", err)
	}
	key := inboxKey(userID)
	pipe := i.client.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, i.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("inbox push %s: %w", key, err)
	}
	return nil
}

// Recent returns up to limit items, newest first.
func (i *Inbox) Recent(ctx context.Context, userID int64, limit int) ([]channel.InboxItem, error) {
	if limit <= 0 || int64(limit) > i.size {
		limit = int(i.size)
	}
	vals, err := i.client.LRange(ctx, inboxKey(userID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("inbox read: %w", err)
	}
	out := make([]channel.InboxItem, 0, len(vals))
	for _, v := range vals {
		var it channel.InboxItem
		if err := json.Unmarshal([]byte(v), &it); err != nil {
			return nil, fmt.Errorf("decode inbox item: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}
