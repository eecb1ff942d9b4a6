package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"lostfound/internal/itemstore"
	"lostfound/internal/model"

	"github.com/gin-gonic/gin"
)

type createItemRequest struct {
	ProductName string `json:"product_name" binding:"required"`
	Photo       string `json:"photo"`
	Place       string `json:"place" binding:"required"`
	Date        string `json:"date" binding:"required"`
	Type        string `json:"type" binding:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type bulkDeleteRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Type  string `json:"type"`
}

type itemResponse struct {
	ID          string  `json:"id"`
	CreatedAt   string  `json:"created_at"`
	UserID      string  `json:"user_id"`
	UserName    string  `json:"user_name"`
	UserPhone   string  `json:"user_phone"`
	ProductName string  `json:"product_name"`
	Photo       *string `json:"photo"`
	Place       string  `json:"place"`
	Date        string  `json:"date"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
}

func toItemResponse(item *model.Item) itemResponse {
	return itemResponse{
		ID:          item.ID,
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
		UserID:      item.UserID,
		UserName:    item.UserName,
		UserPhone:   item.UserPhone,
		ProductName: item.ProductName,
		Photo:       item.Photo,
		Place:       string(item.Place),
		Date:        item.Date.UTC().Format("2006-01-02"),
		Type:        string(item.Type),
		Status:      string(item.Status),
	}
}

func toItemResponses(items []model.Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for i := range items {
		out = append(out, toItemResponse(&items[i]))
	}
	return out
}

// parseDate 接受 "2006-01-02" 或 RFC3339 两种格式。
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// respondStoreError 将 Store 的错误映射为 HTTP 状态码。
func (s *Server) respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, itemstore.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.Is(err, itemstore.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, itemstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	case errors.Is(err, itemstore.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
	default:
		s.logger.Error("item operation failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleListItems 返回按过滤条件筛选后的全部物品。
//
// search 在物品名和发布者名上做不区分大小写的子串匹配（任一命中即可），
// status / type 为精确匹配，"all" 或缺省表示不过滤，条件间取交集。
func (s *Server) handleListItems(c *gin.Context) {
	spec := itemstore.FilterSpec{
		Search: c.Query("search"),
		Status: c.DefaultQuery("status", itemstore.MatchAll),
		Type:   c.DefaultQuery("type", itemstore.MatchAll),
	}
	items := itemstore.Filter(s.items.List(), spec)
	c.JSON(http.StatusOK, gin.H{"items": toItemResponses(items), "total": len(items)})
}

// handleMyItems 返回当前用户发布的物品。
func (s *Server) handleMyItems(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	items := itemstore.ByUser(s.items.List(), userID)
	c.JSON(http.StatusOK, gin.H{"items": toItemResponses(items), "total": len(items)})
}

// handleEmergencyItems 返回紧急分类的物品，支持叠加过滤条件。
func (s *Server) handleEmergencyItems(c *gin.Context) {
	s.listByType(c, model.ItemTypeEmergency)
}

// handleNormalItems 返回普通分类的物品，支持叠加过滤条件。
func (s *Server) handleNormalItems(c *gin.Context) {
	s.listByType(c, model.ItemTypeNormal)
}

func (s *Server) listByType(c *gin.Context, typ model.ItemType) {
	spec := itemstore.FilterSpec{
		Search: c.Query("search"),
		Status: c.DefaultQuery("status", itemstore.MatchAll),
		Type:   itemstore.MatchAll,
	}
	items := itemstore.Filter(itemstore.ByType(s.items.List(), typ), spec)
	c.JSON(http.StatusOK, gin.H{"items": toItemResponses(items), "total": len(items)})
}

func (s *Server) handleGetItem(c *gin.Context) {
	item, ok := s.items.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

// handleCreateItem 创建物品报告。
func (s *Server) handleCreateItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placeStr := strings.TrimSpace(req.Place)
	if !model.ValidPlace(placeStr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid place"})
		return
	}
	typStr := strings.TrimSpace(req.Type)
	if !model.ValidType(typStr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type"})
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}

	actor := s.resolveActor(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	draft := itemstore.Draft{
		ProductName: strings.TrimSpace(req.ProductName),
		Place:       model.ItemPlace(placeStr),
		Date:        date,
		Type:        model.ItemType(typStr),
	}
	if photo := strings.TrimSpace(req.Photo); photo != "" {
		draft.Photo = &photo
	}

	item, err := s.items.Add(c.Request.Context(), draft, actor)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toItemResponse(item))
}

// handleUpdateStatus 更新物品状态（只允许向前流转）。
func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nextStr := strings.TrimSpace(req.Status)
	if !model.ValidStatus(nextStr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	actor := s.resolveActor(c)
	if err := s.items.UpdateStatus(c.Request.Context(), c.Param("id"), model.ItemStatus(nextStr), actor); err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

// handleDeleteItem 删除一条物品报告。
func (s *Server) handleDeleteItem(c *gin.Context) {
	actor := s.resolveActor(c)
	if err := s.items.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "item deleted"})
}

// handleBulkDelete 管理员按日期区间和分类批量删除。
//
// 未提供任何条件的请求是 no-op，避免误清空整个集合。
func (s *Server) handleBulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var dr *itemstore.DateRange
	if req.Start != "" || req.End != "" {
		if req.Start == "" || req.End == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start and end must be provided together"})
			return
		}
		start, err := parseDate(req.Start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date"})
			return
		}
		end, err := parseDate(req.End)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date"})
			return
		}
		if end.Before(start) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end before start"})
			return
		}
		dr = &itemstore.DateRange{Start: start, End: end}
	}

	typ := strings.TrimSpace(req.Type)
	if typ != "" && typ != itemstore.MatchAll && !model.ValidType(typ) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type"})
		return
	}

	actor := s.resolveActor(c)
	if err := s.items.DeleteByFilter(c.Request.Context(), dr, typ, actor); err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "items deleted"})
}
