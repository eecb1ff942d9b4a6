package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"lostfound/internal/model"
	"lostfound/internal/pkg/blobstore"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Phone: u.Phone,
		Role:  u.Role,
	}
}

type updateUserRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type contactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// 允许上传的照片扩展名。
var allowedPhotoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// handleMe 返回当前登录用户的资料。
func (s *Server) handleMe(c *gin.Context) {
	actor := s.resolveActor(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(actor))
}

// handleUpload 接收照片并存入对象存储，返回公开 URL。
func (s *Server) handleUpload(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()

	if header.Size > s.cfg.App.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedPhotoExts[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.App.MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
		return
	}
	if int64(len(data)) > s.cfg.App.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectPath := blobstore.ObjectPath(userID, header.Filename)
	url, err := s.uploads.Upload(c.Request.Context(), objectPath, data, contentType)
	if err != nil {
		s.logger.Error("photo upload failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// handleContact 将联系表单转发给失物招领管理处邮箱。
//
// 邮件在后台队列里发送，请求路径不等待 SMTP。
func (s *Server) handleContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	subject := strings.TrimSpace(req.Subject)
	message := strings.TrimSpace(req.Message)

	job := func(ctx context.Context) error {
		return s.mailer.SendContactMessage(name, email, subject, message)
	}
	if s.jobs == nil || !s.jobs.Enqueue(job) {
		// 队列不可用时退化为同步发送
		if err := s.mailer.SendContactMessage(name, email, subject, message); err != nil {
			s.logger.Warn("contact mail send failed", slog.String("error", err.Error()))
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "message received"})
}

// handleAdminStats 返回按状态和分类统计的物品数量。
func (s *Server) handleAdminStats(c *gin.Context) {
	items := s.items.List()

	byStatus := map[string]int{
		string(model.ItemStatusLost):      0,
		string(model.ItemStatusFound):     0,
		string(model.ItemStatusCompleted): 0,
	}
	byType := map[string]int{
		string(model.ItemTypeNormal):    0,
		string(model.ItemTypeEmergency): 0,
	}
	for i := range items {
		byStatus[string(items[i].Status)]++
		byType[string(items[i].Type)]++
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     len(items),
		"by_status": byStatus,
		"by_type":   byType,
	})
}

// handleAdminListUsers 返回全部用户。
func (s *Server) handleAdminListUsers(c *gin.Context) {
	users, err := s.users.ListUsers(c.Request.Context())
	if err != nil {
		s.logger.Error("list users failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": len(out)})
}

// handleAdminUpdateUser 修改用户姓名或角色。
func (s *Server) handleAdminUpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if role := strings.TrimSpace(strings.ToLower(req.Role)); role != "" {
		if role != model.RoleUser && role != model.RoleAdmin {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		updates["role"] = role
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if err := s.users.UpdateUser(c.Request.Context(), c.Param("id"), updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		s.logger.Error("update user failed",
			slog.String("user_id", c.Param("id")),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user updated"})
}
