package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lostfound/internal/config"
	"lostfound/internal/itemstore"
	"lostfound/internal/model"

	"github.com/gin-gonic/gin"
)

type mockItemService struct {
	items []model.Item

	addErr     error
	updateErr  error
	deleteErr  error
	bulkErr    error
	lastDraft  itemstore.Draft
	lastStatus model.ItemStatus
	lastDR     *itemstore.DateRange
	lastType   string
	bulkCalled bool
}

func (m *mockItemService) List() []model.Item {
	out := make([]model.Item, len(m.items))
	copy(out, m.items)
	return out
}

func (m *mockItemService) Get(id string) (*model.Item, bool) {
	for i := range m.items {
		if m.items[i].ID == id {
			item := m.items[i]
			return &item, true
		}
	}
	return nil, false
}

func (m *mockItemService) Add(_ context.Context, draft itemstore.Draft, actor *model.User) (*model.Item, error) {
	if m.addErr != nil {
		return nil, m.addErr
	}
	m.lastDraft = draft
	item := model.Item{
		ID:          "generated-id",
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UserID:      actor.ID,
		UserName:    actor.Name,
		UserPhone:   actor.Phone,
		ProductName: draft.ProductName,
		Photo:       draft.Photo,
		Place:       draft.Place,
		Date:        draft.Date,
		Type:        draft.Type,
		Status:      model.InitialStatus(draft.Place),
	}
	m.items = append(m.items, item)
	return &item, nil
}

func (m *mockItemService) UpdateStatus(_ context.Context, id string, next model.ItemStatus, actor *model.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.lastStatus = next
	return nil
}

func (m *mockItemService) Delete(_ context.Context, id string, actor *model.User) error {
	return m.deleteErr
}

func (m *mockItemService) DeleteByFilter(_ context.Context, dr *itemstore.DateRange, typ string, actor *model.User) error {
	m.bulkCalled = true
	m.lastDR = dr
	m.lastType = typ
	return m.bulkErr
}

type mockUserStore struct {
	users map[string]*model.User
}

func (m *mockUserStore) FindByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("record not found")
}

func (m *mockUserStore) ListUsers(_ context.Context) ([]model.User, error) {
	out := []model.User{}
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockUserStore) UpdateUser(_ context.Context, id string, updates map[string]interface{}) error {
	return nil
}

// identityStub 代替 JWT 中间件直接注入身份。
func identityStub(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("role", role)
		c.Next()
	}
}

func newTestServer(items *mockItemService, users *mockUserStore) *Server {
	gin.SetMode(gin.TestMode)
	return &Server{
		cfg: &config.Config{
			App: config.AppConfig{MaxUploadBytes: 1 << 20},
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		items:  items,
		users:  users,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandleCreateItem(t *testing.T) {
	items := &mockItemService{}
	users := &mockUserStore{users: map[string]*model.User{
		"u1": {ID: "u1", Name: "Alice", Phone: "555-0101", Role: model.RoleUser},
	}}
	s := newTestServer(items, users)

	r := gin.New()
	r.Use(identityStub("u1", model.RoleUser))
	r.POST("/items", s.handleCreateItem)

	w := doJSON(t, r, http.MethodPost, "/items", gin.H{
		"product_name": "Blue Water Bottle",
		"place":        "found",
		"date":         "2025-06-01",
		"type":         "normal",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}

	var resp itemResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Status != "found" {
		t.Errorf("status = %s, want found (from place)", resp.Status)
	}
	if resp.UserName != "Alice" || resp.UserPhone != "555-0101" {
		t.Errorf("contact snapshot wrong: %+v", resp)
	}
	if items.lastDraft.ProductName != "Blue Water Bottle" {
		t.Errorf("draft product name = %s", items.lastDraft.ProductName)
	}
}

func TestHandleCreateItemValidation(t *testing.T) {
	s := newTestServer(&mockItemService{}, &mockUserStore{users: map[string]*model.User{
		"u1": {ID: "u1", Role: model.RoleUser},
	}})

	r := gin.New()
	r.Use(identityStub("u1", model.RoleUser))
	r.POST("/items", s.handleCreateItem)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing product name", gin.H{"place": "lost", "date": "2025-06-01", "type": "normal"}},
		{"invalid place", gin.H{"product_name": "x", "place": "somewhere", "date": "2025-06-01", "type": "normal"}},
		{"invalid type", gin.H{"product_name": "x", "place": "lost", "date": "2025-06-01", "type": "urgent"}},
		{"invalid date", gin.H{"product_name": "x", "place": "lost", "date": "not-a-date", "type": "normal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/items", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleListItemsAppliesFilter(t *testing.T) {
	items := &mockItemService{items: []model.Item{
		{ID: "a", ProductName: "Water Bottle", Status: model.ItemStatusLost, Type: model.ItemTypeNormal},
		{ID: "b", ProductName: "Laptop", Status: model.ItemStatusLost, Type: model.ItemTypeEmergency},
		{ID: "c", ProductName: "Bottle Cap", Status: model.ItemStatusCompleted, Type: model.ItemTypeNormal},
	}}
	s := newTestServer(items, &mockUserStore{})

	r := gin.New()
	r.Use(identityStub("u1", model.RoleUser))
	r.GET("/items", s.handleListItems)

	w := doJSON(t, r, http.MethodGet, "/items?search=bottle&status=lost", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Items []itemResponse `json:"items"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 || resp.Items[0].ID != "a" {
		t.Fatalf("filtered result wrong: %+v", resp)
	}
}

func TestHandleUpdateStatusErrorMapping(t *testing.T) {
	users := &mockUserStore{users: map[string]*model.User{
		"u1": {ID: "u1", Role: model.RoleUser},
	}}

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"forbidden", itemstore.ErrForbidden, http.StatusForbidden},
		{"not found", itemstore.ErrNotFound, http.StatusNotFound},
		{"invalid transition", itemstore.ErrInvalidTransition, http.StatusConflict},
		{"persistence failure", &itemstore.PersistenceError{Op: "update_status", Err: errors.New("down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&mockItemService{updateErr: tt.err}, users)
			r := gin.New()
			r.Use(identityStub("u1", model.RoleUser))
			r.PATCH("/items/:id/status", s.handleUpdateStatus)

			w := doJSON(t, r, http.MethodPatch, "/items/a/status", gin.H{"status": "completed"})
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestHandleUpdateStatusRejectsUnknownStatus(t *testing.T) {
	s := newTestServer(&mockItemService{}, &mockUserStore{})
	r := gin.New()
	r.Use(identityStub("u1", model.RoleUser))
	r.PATCH("/items/:id/status", s.handleUpdateStatus)

	w := doJSON(t, r, http.MethodPatch, "/items/a/status", gin.H{"status": "archived"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleBulkDelete(t *testing.T) {
	admin := &mockUserStore{users: map[string]*model.User{
		"u9": {ID: "u9", Role: model.RoleAdmin},
	}}

	t.Run("valid range and type", func(t *testing.T) {
		items := &mockItemService{}
		s := newTestServer(items, admin)
		r := gin.New()
		r.Use(identityStub("u9", model.RoleAdmin))
		r.DELETE("/items", s.handleBulkDelete)

		w := doJSON(t, r, http.MethodDelete, "/items", gin.H{
			"start": "2025-06-01",
			"end":   "2025-06-30",
			"type":  "normal",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
		}
		if !items.bulkCalled {
			t.Fatal("DeleteByFilter was not called")
		}
		if items.lastDR == nil || items.lastType != "normal" {
			t.Fatalf("filter not passed through: dr=%v type=%q", items.lastDR, items.lastType)
		}
	})

	t.Run("half open range rejected", func(t *testing.T) {
		items := &mockItemService{}
		s := newTestServer(items, admin)
		r := gin.New()
		r.Use(identityStub("u9", model.RoleAdmin))
		r.DELETE("/items", s.handleBulkDelete)

		w := doJSON(t, r, http.MethodDelete, "/items", gin.H{"start": "2025-06-01"})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if items.bulkCalled {
			t.Fatal("DeleteByFilter should not be called on invalid input")
		}
	})

	t.Run("end before start rejected", func(t *testing.T) {
		items := &mockItemService{}
		s := newTestServer(items, admin)
		r := gin.New()
		r.Use(identityStub("u9", model.RoleAdmin))
		r.DELETE("/items", s.handleBulkDelete)

		w := doJSON(t, r, http.MethodDelete, "/items", gin.H{
			"start": "2025-06-30",
			"end":   "2025-06-01",
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	s := newTestServer(&mockItemService{}, &mockUserStore{})

	r := gin.New()
	r.Use(identityStub("u1", model.RoleUser))
	r.Use(requireAdmin())
	r.GET("/admin/stats", s.handleAdminStats)

	w := doJSON(t, r, http.MethodGet, "/admin/stats", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestHandleAdminStats(t *testing.T) {
	items := &mockItemService{items: []model.Item{
		{ID: "a", Status: model.ItemStatusLost, Type: model.ItemTypeNormal},
		{ID: "b", Status: model.ItemStatusLost, Type: model.ItemTypeEmergency},
		{ID: "c", Status: model.ItemStatusCompleted, Type: model.ItemTypeNormal},
	}}
	s := newTestServer(items, &mockUserStore{})

	r := gin.New()
	r.Use(identityStub("u9", model.RoleAdmin))
	r.GET("/admin/stats", s.handleAdminStats)

	w := doJSON(t, r, http.MethodGet, "/admin/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
		ByType   map[string]int `json:"by_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Total != 3 || resp.ByStatus["lost"] != 2 || resp.ByType["normal"] != 2 {
		t.Fatalf("stats wrong: %+v", resp)
	}
}

func TestHandleMyItems(t *testing.T) {
	items := &mockItemService{items: []model.Item{
		{ID: "a", UserID: "u1"},
		{ID: "b", UserID: "u2"},
		{ID: "c", UserID: "u1"},
	}}
	s := newTestServer(items, &mockUserStore{})

	r := gin.New()
	r.Use(identityStub("u1", model.RoleUser))
	r.GET("/items/mine", s.handleMyItems)

	w := doJSON(t, r, http.MethodGet, "/items/mine", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}
}

func TestHandleGetItem(t *testing.T) {
	items := &mockItemService{items: []model.Item{{ID: "a", ProductName: "Umbrella"}}}
	s := newTestServer(items, &mockUserStore{})

	r := gin.New()
	r.Use(identityStub("u1", model.RoleUser))
	r.GET("/items/:id", s.handleGetItem)

	w := doJSON(t, r, http.MethodGet, "/items/a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/items/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
