package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gongzuo-server/internal/domain"
	"gongzuo-server/internal/repository"
	"gongzuo-server/internal/service"
	"gongzuo-server/internal/storage"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	entries   service.EntryService
	storage   storage.Service
	bucket    string
	keyPrefix string
	logger    *logrus.Logger
}

func NewHandler(users service.UserService, entries service.EntryService, store storage.Service, bucket, keyPrefix string, logger *logrus.Logger) *Handler {
	return &Handler{
		users:     users,
		entries:   entries,
		storage:   store,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		api.POST("/login", h.login)
		api.POST("/logout", h.logout)
		api.POST("/register", h.register)
		api.GET("/me", h.me)
		api.GET("/users", h.listUsers)

		api.GET("/entries", h.listEntries)
		api.GET("/entries/:id", h.getEntry)
		api.POST("/entries", h.createEntry)
		api.POST("/entries/:id/end", h.endEntry)
		api.PUT("/entries/:id", h.editEntry)
		api.DELETE("/entries/:id", h.deleteEntry)

		// the running-entry surface lives apart from /entries/:id so the
		// static segments never collide with the id wildcard
		api.POST("/tracker/start", h.startEntry)
		api.GET("/tracker/active", h.activeEntry)

		admin := api.Group("/admin")
		{
			admin.GET("/entries", h.listAllEntries)
			admin.POST("/export", h.exportEntries)
			admin.GET("/exports", h.listExports)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Session-Token")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// sessionToken pulls the opaque token from the X-Session-Token header, or
// from the session_token query parameter for clients that pass it that way.
func sessionToken(c *gin.Context) string {
	if token := c.GetHeader("X-Session-Token"); token != "" {
		return token
	}
	return c.Query("session_token")
}

// requireSession resolves the acting user and writes a 401 when the token is
// absent or unknown. Handlers call it first and bail out on !ok.
func (h *Handler) requireSession(c *gin.Context) (*domain.User, bool) {
	user, err := h.users.RequireSession(c.Request.Context(), sessionToken(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSession) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid session token"})
		} else {
			h.renderError(c, err)
		}
		return nil, false
	}
	return user, true
}

func (h *Handler) requireAdmin(c *gin.Context) (*domain.User, bool) {
	user, ok := h.requireSession(c)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "admin privileges required"})
		return nil, false
	}
	return user, true
}

// renderError maps typed rejections onto status codes. Everything unexpected
// is logged and surfaced as a generic internal error without detail.
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, service.ErrNotAdmin):
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	case errors.Is(err, repository.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"message": "operation not permitted"})
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, service.ErrAlreadyEnded),
		errors.Is(err, service.ErrInvalidRange),
		errors.Is(err, service.ErrInvalidPayload),
		errors.Is(err, service.ErrUserAlreadyExists):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	default:
		h.logger.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	token, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "login failed"})
			return
		}
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "login successful",
		"session_token": token,
	})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), sessionToken(c)); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logout successful"})
}

func (h *Handler) register(c *gin.Context) {
	actor, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), actor, req.Username, req.Password)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": userToResponse(user)})
}

func (h *Handler) me(c *gin.Context) {
	user, ok := h.requireSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) listUsers(c *gin.Context) {
	if _, ok := h.requireSession(c); !ok {
		return
	}

	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(&users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listEntries(c *gin.Context) {
	user, ok := h.requireSession(c)
	if !ok {
		return
	}

	entries, err := h.entries.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, entriesToResponse(entries))
}

func (h *Handler) listAllEntries(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}

	entries, err := h.entries.ListAll(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, entriesToResponse(entries))
}

func (h *Handler) activeEntry(c *gin.Context) {
	user, ok := h.requireSession(c)
	if !ok {
		return
	}

	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid at timestamp"})
			return
		}
		at = parsed
	}

	entry, err := h.entries.GetActiveAt(c.Request.Context(), user.ID, at)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, entryToResponse(*entry))
}

func (h *Handler) getEntry(c *gin.Context) {
	if _, ok := h.requireSession(c); !ok {
		return
	}

	id, ok := entryID(c)
	if !ok {
		return
	}

	entry, err := h.entries.Get(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, entryToResponse(*entry))
}

type entryRequest struct {
	Kind      string     `json:"kind" binding:"required"`
	Label     string     `json:"label" binding:"required"`
	StartedAt time.Time  `json:"started_at" binding:"required"`
	EndedAt   *time.Time `json:"ended_at"`
}

func (r entryRequest) payload() (domain.EntryPayload, error) {
	kind, err := domain.ParseContentKind(r.Kind)
	if err != nil {
		return domain.EntryPayload{}, err
	}
	return domain.EntryPayload{
		Kind:      kind,
		Label:     r.Label,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}, nil
}

func (h *Handler) createEntry(c *gin.Context) {
	user, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	payload, err := req.payload()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	id, err := h.entries.Create(c.Request.Context(), user.ID, payload)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry_id": id})
}

type startEntryRequest struct {
	Kind  string `json:"kind" binding:"required"`
	Label string `json:"label" binding:"required"`
}

func (h *Handler) startEntry(c *gin.Context) {
	user, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req startEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	kind, err := domain.ParseContentKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	id, err := h.entries.Start(c.Request.Context(), user.ID, kind, req.Label)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry_id": id})
}

func (h *Handler) endEntry(c *gin.Context) {
	user, ok := h.requireSession(c)
	if !ok {
		return
	}

	id, ok := entryID(c)
	if !ok {
		return
	}

	endedAt, err := h.entries.End(c.Request.Context(), id, user.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "entry ended",
		"ended_at": endedAt.Format(time.RFC3339),
	})
}

func (h *Handler) editEntry(c *gin.Context) {
	user, ok := h.requireSession(c)
	if !ok {
		return
	}

	id, ok := entryID(c)
	if !ok {
		return
	}

	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	payload, err := req.payload()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if err := h.entries.Edit(c.Request.Context(), id, user.ID, payload); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "entry updated"})
}

func (h *Handler) deleteEntry(c *gin.Context) {
	user, ok := h.requireSession(c)
	if !ok {
		return
	}

	id, ok := entryID(c)
	if !ok {
		return
	}

	if err := h.entries.Delete(c.Request.Context(), id, user.ID); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) exportEntries(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "storage service not configured"})
		return
	}

	entries, err := h.entries.ListAll(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}

	body, err := json.Marshal(entriesToResponse(entries))
	if err != nil {
		h.renderError(c, err)
		return
	}

	key := fmt.Sprintf("%s/entries-%s.json", h.keyPrefix, time.Now().UTC().Format("20060102T150405Z"))
	location, err := h.storage.Upload(c.Request.Context(), h.bucket, key, bytes.NewReader(body))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"location": location})
}

func (h *Handler) listExports(c *gin.Context) {
	if _, ok := h.requireAdmin(c); !ok {
		return
	}
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "storage service not configured"})
		return
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, h.keyPrefix)
	if err != nil {
		h.renderError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func entryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid entry id"})
		return 0, false
	}
	return id, true
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
	IsAdmin   bool   `json:"is_admin"`
}

type EntryResponse struct {
	ID        int64   `json:"id"`
	UserID    int64   `json:"user_id"`
	ContentID int64   `json:"content_id"`
	Kind      string  `json:"kind"`
	Label     string  `json:"label"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at,omitempty"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
		IsAdmin:   user.IsAdmin,
	}
}

func entryToResponse(entry domain.Entry) EntryResponse {
	resp := EntryResponse{
		ID:        entry.ID,
		UserID:    entry.UserID,
		ContentID: entry.ContentID,
		Kind:      string(entry.Kind),
		Label:     entry.Label,
		StartedAt: entry.StartedAt.Format(time.RFC3339),
	}
	if entry.EndedAt != nil {
		v := entry.EndedAt.Format(time.RFC3339)
		resp.EndedAt = &v
	}
	return resp
}

func entriesToResponse(entries []domain.Entry) []EntryResponse {
	resp := make([]EntryResponse, len(entries))
	for i := range entries {
		resp[i] = entryToResponse(entries[i])
	}
	return resp
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
