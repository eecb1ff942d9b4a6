package itemstore

import (
	"strings"

	"lostfound/internal/model"
)

// MatchAll 表示不对该维度做约束。
const MatchAll = "all"

// FilterSpec 列表过滤条件。
//
// 三个字段为封闭的固定集合，不是开放的字典；
// Status/Type 为空串等价于 MatchAll。
type FilterSpec struct {
	Search string // 大小写不敏感的子串匹配，命中 ProductName 或 UserName 即可
	Status string // 某个 ItemStatus 值或 "all"
	Type   string // 某个 ItemType 值或 "all"
}

// Filter 对物品集合应用过滤条件，返回匹配的子序列。
//
// 纯函数：不修改入参、保持原有顺序、幂等。
// 三个谓词以 AND 组合；Search 内部对 ProductName/UserName 取 OR。
func Filter(items []model.Item, spec FilterSpec) []model.Item {
	search := strings.ToLower(strings.TrimSpace(spec.Search))

	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		if search != "" &&
			!strings.Contains(strings.ToLower(item.ProductName), search) &&
			!strings.Contains(strings.ToLower(item.UserName), search) {
			continue
		}
		if spec.Status != "" && spec.Status != MatchAll && string(item.Status) != spec.Status {
			continue
		}
		if spec.Type != "" && spec.Type != MatchAll && string(item.Type) != spec.Type {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ByUser 按所属用户预过滤，与 Filter 组合实现 "我的物品" 视图。
func ByUser(items []model.Item, userID string) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out
}

// ByType 按分类预过滤，与 Filter 组合实现紧急/普通视图。
func ByType(items []model.Item, typ model.ItemType) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		if item.Type == typ {
			out = append(out, item)
		}
	}
	return out
}
