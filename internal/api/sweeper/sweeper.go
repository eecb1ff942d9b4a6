package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// ItemSweeper 物品集合上的保留期清除操作。
type ItemSweeper interface {
	SweepExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// Sweeper 周期性清除超过保留期的物品报告。
//
// 服务启动时立即执行一次，之后按固定间隔执行；
// 清除操作本身是幂等的，重复运行不会多删东西。
type Sweeper struct {
	store     ItemSweeper
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
}

// New 创建清扫器。
//
// 参数:
//
//	store: 被清扫的物品集合
//	logger: 日志记录器
//	interval: 清扫周期（非正值回退为 24h）
//	retention: 保留期（非正值回退为 30 天）
func New(store ItemSweeper, logger *slog.Logger, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Sweeper{
		store:     store,
		logger:    logger,
		interval:  interval,
		retention: retention,
	}
}

// Run 阻塞运行清扫循环，直到 ctx 被取消。
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("retention sweeper started",
		slog.Duration("interval", s.interval),
		slog.Duration("retention", s.retention))

	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	removed, err := s.store.SweepExpired(sctx, s.retention)
	if err != nil {
		s.logger.Error("retention sweep failed", slog.String("error", err.Error()))
		return
	}
	if removed > 0 {
		s.logger.Info("retention sweep completed", slog.Int64("removed", removed))
	} else {
		s.logger.Debug("retention sweep completed, nothing expired")
	}
}
