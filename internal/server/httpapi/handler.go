// Package httpapi exposes the sync authority over HTTP: one RPC-style sync
// endpoint with an action discriminator, the login exchange, and the staff
// roster.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hyoshida/estatesync/internal/logging"
	"github.com/hyoshida/estatesync/internal/server/services"
	"github.com/hyoshida/estatesync/internal/syncapi"
)

// Handler glues the HTTP surface to the sync and staff services.
type Handler struct {
	sync   *services.SyncService
	staff  *services.StaffService
	logger logging.Logger
}

func NewHandler(sync *services.SyncService, staff *services.StaffService, logger logging.Logger) *Handler {
	return &Handler{sync: sync, staff: staff, logger: logger.With("module", "httpapi")}
}

// NewRouter builds the gin engine with all routes attached.
func NewRouter(h *Handler, jwtSecret []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.health)
	r.POST("/api/auth", h.login)

	authed := r.Group("/api", authRequired(jwtSecret))
	authed.POST("/sync", h.syncAction)
	authed.GET("/staff", h.listStaff)

	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (h *Handler) login(c *gin.Context) {
	var req syncapi.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, syncapi.ErrorResponse{
			Error: "invalid request body", Code: syncapi.CodeBadRequest,
		})
		return
	}
	if req.StoreID == "" || req.StaffID == "" {
		c.JSON(http.StatusBadRequest, syncapi.ErrorResponse{
			Error: "storeId and staffId are required", Code: syncapi.CodeBadRequest,
		})
		return
	}

	token, member, err := h.staff.Login(c.Request.Context(), req.StoreID, req.StaffID, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, syncapi.ErrorResponse{
			Error: "authentication failed", Code: syncapi.CodeUnauthorized,
		})
		return
	}

	c.JSON(http.StatusOK, syncapi.LoginResponse{
		Success: true,
		Token:   token,
		Staff: syncapi.StaffInfo{
			StaffID: member.StaffID,
			Name:    member.Name,
			Role:    member.Role,
		},
	})
}

// syncAction dispatches the single sync endpoint on the action field.
func (h *Handler) syncAction(c *gin.Context) {
	claims := claimsFrom(c)

	var req syncapi.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, syncapi.ErrorResponse{
			Error: "invalid request body", Code: syncapi.CodeBadRequest,
		})
		return
	}

	switch req.Action {
	case syncapi.ActionSave:
		h.save(c, claims.StoreID, claims.StaffID, &req)
	case syncapi.ActionLoad:
		h.load(c, claims.StoreID)
	case syncapi.ActionCheck:
		h.check(c, claims.StoreID, &req)
	default:
		c.JSON(http.StatusBadRequest, syncapi.ErrorResponse{
			Error: "unknown action", Code: syncapi.CodeBadRequest,
		})
	}
}

func (h *Handler) save(c *gin.Context, storeID, staffID string, req *syncapi.Request) {
	if req.Data == nil {
		c.JSON(http.StatusBadRequest, syncapi.ErrorResponse{
			Error: "save requires data", Code: syncapi.CodeBadRequest,
		})
		return
	}

	result, err := h.sync.Save(c.Request.Context(), storeID, staffID, req.Data)
	if err != nil {
		h.logger.Error(c.Request.Context(), "save failed", "storeId", storeID, "error", err)
		c.JSON(http.StatusInternalServerError, syncapi.ErrorResponse{
			Error: "failed to save data", Code: syncapi.CodeInternalError,
		})
		return
	}

	c.JSON(http.StatusOK, syncapi.SaveResponse{Success: true, Version: result.Version})
}

func (h *Handler) load(c *gin.Context, storeID string) {
	snap, updatedAt, err := h.sync.Load(c.Request.Context(), storeID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "load failed", "storeId", storeID, "error", err)
		c.JSON(http.StatusInternalServerError, syncapi.ErrorResponse{
			Error: "failed to load data", Code: syncapi.CodeInternalError,
		})
		return
	}

	resp := syncapi.LoadResponse{Success: true, Data: snap}
	if !updatedAt.IsZero() {
		resp.LastUpdated = &updatedAt
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) check(c *gin.Context, storeID string, req *syncapi.Request) {
	var lastSync time.Time
	if req.LastSync != nil {
		lastSync = *req.LastSync
	}

	result, err := h.sync.Check(c.Request.Context(), storeID, lastSync)
	if err != nil {
		h.logger.Error(c.Request.Context(), "check failed", "storeId", storeID, "error", err)
		c.JSON(http.StatusInternalServerError, syncapi.ErrorResponse{
			Error: "failed to check for updates", Code: syncapi.CodeInternalError,
		})
		return
	}

	c.JSON(http.StatusOK, syncapi.CheckResponse{
		HasUpdate: result.HasUpdate,
		UpdatedBy: result.UpdatedBy,
	})
}

func (h *Handler) listStaff(c *gin.Context) {
	claims := claimsFrom(c)

	members, err := h.staff.ListActive(c.Request.Context(), claims.StoreID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "staff list failed", "storeId", claims.StoreID, "error", err)
		c.JSON(http.StatusInternalServerError, syncapi.ErrorResponse{
			Error: "failed to list staff", Code: syncapi.CodeInternalError,
		})
		return
	}

	infos := make([]syncapi.StaffInfo, 0, len(members))
	for _, m := range members {
		infos = append(infos, syncapi.StaffInfo{StaffID: m.StaffID, Name: m.Name, Role: m.Role})
	}
	c.JSON(http.StatusOK, syncapi.StaffListResponse{Success: true, Staff: infos})
}
