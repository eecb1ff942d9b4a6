package itemstore

import "lostfound/internal/model"

// CanModify 集中的授权谓词：物品归属人或管理员可以修改/删除。
//
// 状态更新与删除路径使用同一判定，无自身状态。
func CanModify(actor *model.User, item *model.Item) bool {
	if actor == nil || item == nil {
		return false
	}
	return actor.ID == item.UserID || actor.IsAdmin()
}
