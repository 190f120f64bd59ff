package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultSOSStream = "sos:alerts"

// RedisNotifier hands alerts to the delivery gateway through a Redis stream.
// All entries for one alert are written in a single MULTI/EXEC so either
// every contact is queued or none is.
type RedisNotifier struct {
	rdb    *redis.Client
	stream string
	maxLen int64
	now    func() time.Time
}

func NewRedisNotifier(rdb *redis.Client, stream string) *RedisNotifier {
	if stream == "" {
		stream = DefaultSOSStream
	}
	return &RedisNotifier{
		rdb:    rdb,
		stream: stream,
		maxLen: 100_000,
		now:    time.Now,
	}
}

func (n *RedisNotifier) SendSOSAlert(ctx context.Context, alert SOSAlert) error {
	entries, err := n.streamEntries(alert)
	if err != nil {
		return err
	}

	_, err = n.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, args := range entries {
			pipe.XAdd(ctx, args)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue sos alert: %w", err)
	}

	return nil
}

func (n *RedisNotifier) streamEntries(alert SOSAlert) ([]*redis.XAddArgs, error) {
	if len(alert.Contacts) == 0 {
		return nil, ErrNoContacts
	}

	msg := FormatSOSMessage(alert.UserName, alert.Latitude, alert.Longitude)
	sentAt := n.now().UTC().Format(time.RFC3339)

	out := make([]*redis.XAddArgs, 0, len(alert.Contacts))
	for i, c := range alert.Contacts {
		out = append(out, &redis.XAddArgs{
			Stream: n.stream,
			MaxLen: n.maxLen,
			Approx: true,
			Values: map[string]any{
				"contact_index": i,
				"contact_name":  c.Name,
				"phone":         c.Phone,
				"email":         c.Email,
				"user_email":    alert.UserEmail,
				"latitude":      formatCoord(alert.Latitude),
				"longitude":     formatCoord(alert.Longitude),
				"message":       msg,
				"requested_at":  sentAt,
			},
		})
	}
	return out, nil
}
