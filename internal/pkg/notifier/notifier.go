package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel items 表的行变更广播频道。
const Channel = "lostfound:items:changed"

// 变更事件种类。负载只用于日志，订阅方收到任何事件都做整体重载。
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Notifier 基于 Redis Pub/Sub 的行变更通知通道。
//
// 投递语义是 at-least-once 的 "有东西变了"，不保证逐行增量和顺序，
// 收到事件后应整体重新拉取集合。
type Notifier struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New 创建变更通知器。
func New(rdb *redis.Client, logger *slog.Logger) *Notifier {
	return &Notifier{rdb: rdb, logger: logger}
}

// Publish 广播一次变更事件。
func (n *Notifier) Publish(ctx context.Context, event string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if err := n.rdb.Publish(ctx, Channel, event).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Listen 订阅变更频道，每收到一条事件调用一次 handler。
//
// 阻塞直到 ctx 被取消；handler 的错误只记录日志，不中断订阅。
func (n *Notifier) Listen(ctx context.Context, handler func(ctx context.Context) error) error {
	if n == nil || n.rdb == nil {
		return errors.New("redis client is not initialized")
	}

	sub := n.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	// 确认订阅建立，避免错过启动后的第一批事件
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	n.logger.Info("change listener started", slog.String("channel", Channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("change listener stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n.logger.Debug("change event received", slog.String("event", msg.Payload))

			hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := handler(hctx); err != nil {
				n.logger.Warn("refresh on change failed", slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}
