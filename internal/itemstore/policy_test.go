package itemstore

import (
	"testing"

	"lostfound/internal/model"
)

func TestCanModify(t *testing.T) {
	owner := &model.User{ID: "u1", Role: model.RoleUser}
	admin := &model.User{ID: "u9", Role: model.RoleAdmin}
	other := &model.User{ID: "u2", Role: model.RoleUser}
	item := &model.Item{ID: "a", UserID: "u1"}

	tests := []struct {
		name  string
		actor *model.User
		item  *model.Item
		want  bool
	}{
		{"owner can modify", owner, item, true},
		{"admin can modify any item", admin, item, true},
		{"other user cannot modify", other, item, false},
		{"nil actor cannot modify", nil, item, false},
		{"nil item cannot be modified", owner, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanModify(tt.actor, tt.item); got != tt.want {
				t.Fatalf("CanModify() = %v, want %v", got, tt.want)
			}
		})
	}
}
