// Package notifications delivers live comment events over Redis pub/sub and
// WebSocket connections.
package notifications

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"newsadvance/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	articleChannelPrefix = "comments:article:"
	userChannelPrefix    = "notifications:user:"
)

// Notifier publishes events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client makes every publish a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishArticle sends an event to everyone watching an article's thread.
func (n *Notifier) PublishArticle(ctx context.Context, articleID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.publish(ctx, ArticleChannel(articleID), payload)
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.publish(ctx, UserChannel(userID), payload)
}

func (n *Notifier) publish(ctx context.Context, channel, payload string) error {
	ctx, span := observability.TraceRedisOperation(ctx, "publish")
	defer span.End()
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		return err
	}
	return nil
}

// StartPatternSubscriber subscribes to every article and user channel and
// calls onMessage for each incoming message until ctx is done.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, articleChannelPrefix+"*", userChannelPrefix+"*")
	// wait for the subscription so publishes right after start are not lost
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.Logger.Error("panic in pattern subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// ArticleChannel derives the Redis channel name for an article's thread.
func ArticleChannel(articleID uint) string {
	return articleChannelPrefix + strconv.FormatUint(uint64(articleID), 10)
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Channel kinds returned by ParseChannel.
const (
	ChannelArticle = "article"
	ChannelUser    = "user"
)

// ParseChannel splits a channel name into its kind and id.
func ParseChannel(channel string) (kind string, id uint, ok bool) {
	var raw string
	switch {
	case strings.HasPrefix(channel, articleChannelPrefix):
		kind, raw = ChannelArticle, strings.TrimPrefix(channel, articleChannelPrefix)
	case strings.HasPrefix(channel, userChannelPrefix):
		kind, raw = ChannelUser, strings.TrimPrefix(channel, userChannelPrefix)
	default:
		return "", 0, false
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return "", 0, false
	}
	return kind, uint(n), true
}
