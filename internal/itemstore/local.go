package itemstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lostfound/internal/model"
)

// localPersistence 单机 JSON 快照实现，整体读写一个文件。
//
// 对应早期的本地存储版本：没有远端表也没有变更通知，
// 适用于单实例部署和离线演示。
type localPersistence struct {
	mu   sync.Mutex
	path string
}

// NewLocalPersistence 创建文件快照持久化后端。
func NewLocalPersistence(path string) Persistence {
	return &localPersistence{path: path}
}

func (p *localPersistence) LoadAll(_ context.Context) ([]model.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

func (p *localPersistence) Insert(_ context.Context, item *model.Item) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	items, err := p.load()
	if err != nil {
		return err
	}
	items = append(items, *item)
	return p.save(items)
}

func (p *localPersistence) UpdateStatus(_ context.Context, id string, status model.ItemStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	items, err := p.load()
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			items[i].Status = status
			return p.save(items)
		}
	}
	return ErrNotFound
}

func (p *localPersistence) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	items, err := p.load()
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	return p.save(kept)
}

func (p *localPersistence) DeleteByFilter(_ context.Context, dr *DateRange, typ string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	items, err := p.load()
	if err != nil {
		return 0, err
	}

	kept := make([]model.Item, 0, len(items))
	var removed int64
	for _, item := range items {
		if matchesDeleteFilter(&item, dr, typ) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, p.save(kept)
}

func (p *localPersistence) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	items, err := p.load()
	if err != nil {
		return 0, err
	}

	kept := make([]model.Item, 0, len(items))
	var removed int64
	for _, item := range items {
		if item.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, p.save(kept)
}

// matchesDeleteFilter 判断物品是否命中批量删除条件（提供的谓词取 AND）。
func matchesDeleteFilter(item *model.Item, dr *DateRange, typ string) bool {
	if dr != nil {
		if item.Date.Before(dr.Start) || item.Date.After(dr.End) {
			return false
		}
	}
	if typ != "" && typ != MatchAll && string(item.Type) != typ {
		return false
	}
	// 两个条件都未提供时不应走到这里，Store 层有空过滤守卫
	return dr != nil || (typ != "" && typ != MatchAll)
}

func (p *localPersistence) load() ([]model.Item, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return []model.Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	items := []model.Item{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return items, nil
}

func (p *localPersistence) save(items []model.Item) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
