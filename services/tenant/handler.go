package tenant

import (
	"net/http"
	"slices"

	"practice-controlplane/pkg/auth"
	"practice-controlplane/pkg/db/pagination"
	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/httpapi"
	"practice-controlplane/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	g := r.Platform.Group("/tenants")
	g.POST("", h.CreateTenant)
	g.GET("", h.ListTenants)
	g.GET("/:id", h.GetTenant)
	g.PUT("/:id/seats", h.UpdateSeats)
	g.POST("/:id/suspend", h.Suspend)
}

func (h *Handler) CreateTenant(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := h.service.CreateTenant(c.Request.Context(), req)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenant":  result.Tenant,
		"api_key": gin.H{"key_id": result.APIKey.APIKey.KeyID, "token": result.APIKey.Token()},
	})
}

func (h *Handler) ListTenants(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid pagination", err))
		return
	}

	result, err := h.service.ListTenants(c.Request.Context(), page)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTenant lets practice staff read their own tenant; platform admins read any.
func (h *Handler) GetTenant(c *gin.Context) {
	id := c.Param("id")
	if p, ok := auth.FromContext(c.Request.Context()); ok && !slices.Contains(p.Roles, middleware.PlatformAdmin) && p.TenantID != id {
		middleware.Abort(c, errutil.Forbidden("token is not valid for this tenant", nil))
		return
	}

	tenant, err := h.service.GetTenant(c.Request.Context(), id)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, tenant)
}

func (h *Handler) UpdateSeats(c *gin.Context) {
	var body struct {
		Seats *int `json:"seats" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := h.service.UpdateSeats(c.Request.Context(), c.Param("id"), *body.Seats)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Suspend(c *gin.Context) {
	tenant, err := h.service.Suspend(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, tenant)
}
