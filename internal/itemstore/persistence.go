package itemstore

import (
	"context"
	"time"

	"lostfound/internal/model"
)

// DateRange 按事发日期的闭区间 [Start, End]。
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Persistence 物品集合的持久化后端。
//
// Store 的业务逻辑（校验、授权、状态机）不依赖具体后端；
// 远端 MySQL 表和本地 JSON 快照是两个可互换的实现。
type Persistence interface {
	// LoadAll 读取全部物品。
	LoadAll(ctx context.Context) ([]model.Item, error)
	// Insert 写入一条新物品。
	Insert(ctx context.Context, item *model.Item) error
	// UpdateStatus 更新指定物品的状态。
	UpdateStatus(ctx context.Context, id string, status model.ItemStatus) error
	// Delete 删除指定物品。
	Delete(ctx context.Context, id string) error
	// DeleteByFilter 按事发日期区间和分类批量删除，返回删除条数。
	// dr 为 nil 表示不限日期；typ 为空或 "all" 表示不限分类。
	DeleteByFilter(ctx context.Context, dr *DateRange, typ string) (int64, error)
	// DeleteOlderThan 删除 createdAt 早于 cutoff 的物品，返回删除条数。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
