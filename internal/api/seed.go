package api

import (
	"context"
	"log/slog"
	"time"

	"lostfound/internal/itemstore"
	"lostfound/internal/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SeedDemoData 在本地环境写入演示账号和示例物品。
//
// 仅在 env 为 local 且用户表为空时执行，方便前端联调。
func (s *Server) SeedDemoData(ctx context.Context) error {
	if s.cfg.App.Env != "local" {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := model.User{
		ID:       uuid.NewString(),
		Email:    "admin@sec.edu",
		Name:     "Campus Admin",
		Phone:    "13800000001",
		Password: string(hash),
		Role:     model.RoleAdmin,
	}
	user := model.User{
		ID:       uuid.NewString(),
		Email:    "user@sec.edu",
		Name:     "Demo Student",
		Phone:    "13800000002",
		Password: string(hash),
		Role:     model.RoleUser,
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return err
	}

	drafts := []struct {
		draft itemstore.Draft
		actor *model.User
	}{
		{
			draft: itemstore.Draft{
				ProductName: "Blue Water Bottle",
				Place:       model.ItemPlaceLost,
				Date:        time.Now().AddDate(0, 0, -2),
				Type:        model.ItemTypeNormal,
			},
			actor: &user,
		},
		{
			draft: itemstore.Draft{
				ProductName: "MacBook Pro 14",
				Place:       model.ItemPlaceLost,
				Date:        time.Now().AddDate(0, 0, -1),
				Type:        model.ItemTypeEmergency,
			},
			actor: &user,
		},
		{
			draft: itemstore.Draft{
				ProductName: "Brown Leather Wallet",
				Place:       model.ItemPlaceFound,
				Date:        time.Now(),
				Type:        model.ItemTypeNormal,
			},
			actor: &admin,
		},
	}
	for _, d := range drafts {
		if _, err := s.store.Add(ctx, d.draft, d.actor); err != nil {
			return err
		}
	}

	s.logger.Info("demo data seeded",
		slog.String("admin_email", admin.Email),
		slog.String("user_email", user.Email),
		slog.Int("items", len(drafts)))
	return nil
}
