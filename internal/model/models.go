package model

import (
	"time"
)

// ItemStatus 物品当前的生命周期状态。
type ItemStatus string

const (
	ItemStatusLost      ItemStatus = "lost"      // 丢失中
	ItemStatusFound     ItemStatus = "found"     // 已拾获待认领
	ItemStatusCompleted ItemStatus = "completed" // 已完成（归还/认领）
)

// ItemType 物品的优先级分类。
type ItemType string

const (
	ItemTypeNormal    ItemType = "normal"    // 普通
	ItemTypeEmergency ItemType = "emergency" // 紧急
)

// ItemPlace 报告的来源：失物登记还是拾获登记。
//
// 创建时 status 由 place 初始化（lost 报告初始为 lost，found 报告初始为 found）。
type ItemPlace string

const (
	ItemPlaceLost  ItemPlace = "lost"
	ItemPlaceFound ItemPlace = "found"
)

// Item 表示一条失物/拾物报告。
//
// UserName/UserPhone 是创建时对报告人联系方式的快照，
// 之后用户资料变更不会回写到已有报告。
type Item struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"` // UUID
	CreatedAt time.Time // 服务端写入时间

	UserID    string `gorm:"type:varchar(36);index;not null"` // 所属用户 ID
	UserName  string `gorm:"type:varchar(64)"`                // 报告人姓名快照
	UserPhone string `gorm:"type:varchar(32)"`                // 报告人电话快照

	ProductName string     `gorm:"type:varchar(191);not null"` // 物品名称
	Photo       *string    `gorm:"type:varchar(512)"`          // 照片 URL（可空）
	Place       ItemPlace  `gorm:"type:varchar(8);not null"`   // 报告来源，创建后不可变
	Date        time.Time  `gorm:"not null"`                   // 用户填写的事发日期
	Type        ItemType   `gorm:"type:varchar(12);not null"`  // 优先级分类，创建后不可变
	Status      ItemStatus `gorm:"type:varchar(12);not null"`  // 当前状态
}

// ValidStatus 判断给定字符串是否为合法的物品状态。
func ValidStatus(s string) bool {
	switch ItemStatus(s) {
	case ItemStatusLost, ItemStatusFound, ItemStatusCompleted:
		return true
	}
	return false
}

// ValidType 判断给定字符串是否为合法的物品分类。
func ValidType(s string) bool {
	switch ItemType(s) {
	case ItemTypeNormal, ItemTypeEmergency:
		return true
	}
	return false
}

// ValidPlace 判断给定字符串是否为合法的报告来源。
func ValidPlace(s string) bool {
	switch ItemPlace(s) {
	case ItemPlaceLost, ItemPlaceFound:
		return true
	}
	return false
}

// CanTransition 判断状态迁移是否符合单向规则。
//
// 允许的迁移只有 lost → completed 和 found → completed；
// completed 是终态，不允许任何后续迁移（包括回退）。
func CanTransition(current, next ItemStatus) bool {
	if current == ItemStatusCompleted {
		return false
	}
	return next == ItemStatusCompleted &&
		(current == ItemStatusLost || current == ItemStatusFound)
}

// InitialStatus 返回报告创建时的初始状态（与 place 一致）。
func InitialStatus(place ItemPlace) ItemStatus {
	if place == ItemPlaceFound {
		return ItemStatusFound
	}
	return ItemStatusLost
}
