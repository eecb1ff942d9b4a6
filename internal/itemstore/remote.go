package itemstore

import (
	"context"
	"time"

	"lostfound/internal/model"

	"gorm.io/gorm"
)

// remotePersistence 基于 MySQL 的远端持久化实现。
//
// 远端表是权威数据源，所有读改写都先落库再改缓存。
type remotePersistence struct {
	db *gorm.DB
}

// NewRemotePersistence 创建 MySQL 持久化后端。
func NewRemotePersistence(db *gorm.DB) Persistence {
	return &remotePersistence{db: db}
}

func (p *remotePersistence) LoadAll(ctx context.Context) ([]model.Item, error) {
	items := []model.Item{}
	if err := p.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (p *remotePersistence) Insert(ctx context.Context, item *model.Item) error {
	return p.db.WithContext(ctx).Create(item).Error
}

func (p *remotePersistence) UpdateStatus(ctx context.Context, id string, status model.ItemStatus) error {
	res := p.db.WithContext(ctx).
		Model(&model.Item{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (p *remotePersistence) Delete(ctx context.Context, id string) error {
	return p.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Item{}).Error
}

func (p *remotePersistence) DeleteByFilter(ctx context.Context, dr *DateRange, typ string) (int64, error) {
	query := p.db.WithContext(ctx).Model(&model.Item{})
	if dr != nil {
		query = query.Where("date BETWEEN ? AND ?", dr.Start, dr.End)
	}
	if typ != "" && typ != MatchAll {
		query = query.Where("type = ?", typ)
	}
	res := query.Delete(&model.Item{})
	return res.RowsAffected, res.Error
}

func (p *remotePersistence) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := p.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.Item{})
	return res.RowsAffected, res.Error
}
