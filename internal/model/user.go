package model

import "time"

// 用户角色。
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 表示系统用户。
//
// 注册成功时创建；除 role/name 可由管理员在后台修改外，其余字段只读。
type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`            // UUID
	Email     string    `gorm:"type:varchar(191);uniqueIndex;not null"` // 邮箱（唯一）
	Name      string    `gorm:"type:varchar(64);not null"`              // 显示名
	Phone     string    `gorm:"type:varchar(32)"`                       // 联系电话
	Password  string    `gorm:"not null"`                               // bcrypt 哈希
	Role      string    `gorm:"type:varchar(16);default:user;not null"` // 角色: user / admin
	CreatedAt time.Time // 创建时间

	Items []Item `gorm:"foreignKey:UserID"`
}

// IsAdmin 判断用户是否为管理员。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
