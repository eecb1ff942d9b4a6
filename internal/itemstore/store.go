package itemstore

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"lostfound/internal/model"
	"lostfound/internal/pkg/metrics"
	"lostfound/internal/pkg/queue"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChangePublisher 向其他实例广播 items 集合已变更。
type ChangePublisher interface {
	Publish(ctx context.Context, event string) error
}

// BlobRemover 按公开 URL 删除照片 blob。
type BlobRemover interface {
	RemoveByURL(ctx context.Context, url string) error
}

// JobQueue 后台任务入队接口。
type JobQueue interface {
	Enqueue(job queue.Job) bool
}

// Draft 创建物品报告时由用户提供的字段。
//
// id / userId / createdAt 以及联系方式快照由 Store 补齐。
type Draft struct {
	ProductName string
	Photo       *string
	Place       model.ItemPlace
	Date        time.Time
	Type        model.ItemType
}

// Store 物品集合的唯一事实来源。
//
// 对外暴露一份内存缓存，持久化后端（远端表或本地快照）为权威数据；
// 所有写操作先持久化成功再更新缓存（write-through），
// 持久化失败时缓存保持不变，调用方看不到被后端拒绝的状态。
type Store struct {
	mu    sync.RWMutex
	items []model.Item

	p       Persistence
	changes ChangePublisher
	blobs   BlobRemover
	jobs    JobQueue
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore 创建 Store。
//
// changes / blobs / jobs 允许为 nil：本地快照后端没有变更通知，
// 测试场景通常不接 blob 仓库。
func NewStore(p Persistence, changes ChangePublisher, blobs BlobRemover, jobs JobQueue, logger *slog.Logger) *Store {
	return &Store{
		items:   []model.Item{},
		p:       p,
		changes: changes,
		blobs:   blobs,
		jobs:    jobs,
		logger:  logger,
		now:     time.Now,
	}
}

// Load 从持久化后端整体加载缓存，服务启动时调用一次。
func (s *Store) Load(ctx context.Context) error {
	return s.Refresh(ctx)
}

// Refresh 整体重新拉取集合并替换缓存。
//
// 收到变更通知或完成批量远端操作后调用，保证与远端收敛。
func (s *Store) Refresh(ctx context.Context) error {
	items, err := s.p.LoadAll(ctx)
	if err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	metrics.CacheRefreshTotal.Inc()
	metrics.CachedItems.Set(float64(len(items)))
	return nil
}

// List 返回缓存快照，按 createdAt 降序、id 降序打破平局的稳定全序。
func (s *Store) List() []model.Item {
	s.mu.RLock()
	out := make([]model.Item, len(s.items))
	copy(out, s.items)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Get 按 ID 查找缓存中的物品。
func (s *Store) Get(id string) (*model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.items {
		if s.items[i].ID == id {
			item := s.items[i]
			return &item, true
		}
	}
	return nil, false
}

// Add 以 actor 身份创建一条物品报告。
//
// 分配 ID、写入联系方式快照、按 place 初始化 status；
// 先落库，落库失败返回 PersistenceError 且缓存不变。
func (s *Store) Add(ctx context.Context, draft Draft, actor *model.User) (*model.Item, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	item := model.Item{
		ID:          uuid.NewString(),
		CreatedAt:   s.now().UTC(),
		UserID:      actor.ID,
		UserName:    actor.Name,
		UserPhone:   actor.Phone,
		ProductName: draft.ProductName,
		Photo:       draft.Photo,
		Place:       draft.Place,
		Date:        draft.Date,
		Type:        draft.Type,
		Status:      model.InitialStatus(draft.Place),
	}

	if err := s.p.Insert(ctx, &item); err != nil {
		return nil, &PersistenceError{Op: "insert", Err: err}
	}

	s.mu.Lock()
	s.items = append(s.items, item)
	count := len(s.items)
	s.mu.Unlock()

	metrics.ItemsCreatedTotal.Inc()
	metrics.CachedItems.Set(float64(count))
	s.publish(ctx, "insert")

	s.logger.Info("item created",
		slog.String("id", item.ID),
		slog.String("user_id", item.UserID),
		slog.String("type", string(item.Type)),
		slog.String("status", string(item.Status)))
	return &item, nil
}

// UpdateStatus 更新物品状态。
//
// 校验顺序：存在性 → 授权 → 状态机；先落库再改缓存。
func (s *Store) UpdateStatus(ctx context.Context, id string, next model.ItemStatus, actor *model.User) error {
	if actor == nil {
		return ErrUnauthenticated
	}

	item, ok := s.Get(id)
	if !ok {
		return ErrNotFound
	}
	if !CanModify(actor, item) {
		return ErrForbidden
	}
	if !model.CanTransition(item.Status, next) {
		return ErrInvalidTransition
	}

	if err := s.p.UpdateStatus(ctx, id, next); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &PersistenceError{Op: "update_status", Err: err}
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Status = next
			break
		}
	}
	s.mu.Unlock()

	if next == model.ItemStatusCompleted {
		metrics.ItemsCompletedTotal.Inc()
	}
	s.publish(ctx, "update")

	s.logger.Info("item status updated",
		slog.String("id", id),
		slog.String("status", string(next)),
		slog.String("actor_id", actor.ID))
	return nil
}

// Delete 删除一条物品报告。
//
// 授权规则与 UpdateStatus 相同；行删除成功后尽力删除照片 blob，
// blob 删除失败只记录日志，不回滚行删除。
func (s *Store) Delete(ctx context.Context, id string, actor *model.User) error {
	if actor == nil {
		return ErrUnauthenticated
	}

	item, ok := s.Get(id)
	if !ok {
		return ErrNotFound
	}
	if !CanModify(actor, item) {
		return ErrForbidden
	}

	if err := s.p.Delete(ctx, id); err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}

	s.mu.Lock()
	kept := s.items[:0]
	for _, it := range s.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	s.items = kept
	count := len(s.items)
	s.mu.Unlock()

	metrics.ItemsDeletedTotal.WithLabelValues("user").Inc()
	metrics.CachedItems.Set(float64(count))
	s.publish(ctx, "delete")

	if item.Photo != nil && *item.Photo != "" {
		s.removePhoto(*item.Photo)
	}

	s.logger.Info("item deleted",
		slog.String("id", id),
		slog.String("actor_id", actor.ID))
	return nil
}

// DeleteByFilter 管理员批量删除：事发日期区间与分类的交集。
//
// 两个条件都未提供时是显式的 no-op，无约束的调用极可能是误操作，
// 绝不允许默认清空整个集合。批量远端删除完成后整体重载缓存。
func (s *Store) DeleteByFilter(ctx context.Context, dr *DateRange, typ string, actor *model.User) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	if dr == nil && (typ == "" || typ == MatchAll) {
		s.logger.Warn("bulk delete called without filters, ignoring",
			slog.String("actor_id", actor.ID))
		return nil
	}

	removed, err := s.p.DeleteByFilter(ctx, dr, typ)
	if err != nil {
		return &PersistenceError{Op: "delete_by_filter", Err: err}
	}

	if err := s.Refresh(ctx); err != nil {
		return err
	}

	metrics.ItemsDeletedTotal.WithLabelValues("bulk").Add(float64(removed))
	s.publish(ctx, "delete")

	s.logger.Info("items bulk deleted",
		slog.Int64("removed", removed),
		slog.String("actor_id", actor.ID))
	return nil
}

// SweepExpired 清除 createdAt 超过保留期的物品。
//
// 幂等：紧接着的第二次运行不会再删除任何东西。
// 缓存侧按清扫时刻的当前缓存过滤，而不是进入清扫前的快照，
// 避免覆盖清扫期间完成的并发写入。
func (s *Store) SweepExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)

	removed, err := s.p.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, &PersistenceError{Op: "sweep", Err: err}
	}

	s.mu.Lock()
	kept := s.items[:0]
	for _, it := range s.items {
		if !it.CreatedAt.Before(cutoff) {
			kept = append(kept, it)
		}
	}
	s.items = kept
	count := len(s.items)
	s.mu.Unlock()

	metrics.SweepRunsTotal.Inc()
	metrics.CachedItems.Set(float64(count))
	if removed > 0 {
		metrics.ItemsDeletedTotal.WithLabelValues("sweep").Add(float64(removed))
		s.publish(ctx, "delete")
	}
	return removed, nil
}

// publish 尽力广播变更事件，失败只记录日志。
func (s *Store) publish(ctx context.Context, event string) {
	if s.changes == nil {
		return
	}
	if err := s.changes.Publish(ctx, event); err != nil {
		s.logger.Warn("publish change failed",
			slog.String("event", event),
			slog.String("error", err.Error()))
	}
}

// removePhoto 异步尽力删除照片 blob。
func (s *Store) removePhoto(url string) {
	if s.blobs == nil {
		return
	}

	job := func(ctx context.Context) error {
		rctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := s.blobs.RemoveByURL(rctx, url); err != nil {
			metrics.BlobDeleteFailedTotal.Inc()
			s.logger.Warn("photo blob delete failed",
				slog.String("url", url),
				slog.String("error", err.Error()))
		}
		return nil
	}

	if s.jobs == nil || !s.jobs.Enqueue(job) {
		// 队列不可用时退化为同步执行，依然不影响主流程
		_ = job(context.Background())
	}
}
