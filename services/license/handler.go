package license

import (
	"net/http"

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
	g := r.API.Group("/licenses")
	g.GET("", h.List)
	g.GET("/summary", h.Summary)
	g.POST("/reconcile", h.Reconcile)
	g.POST("/assign-next", h.AssignNext)
	g.POST("/:id/assign", h.Assign)
	g.POST("/:id/unassign", h.Unassign)
}

type reconcileBody struct {
	SubscriptionItemID *string `json:"subscription_item_id"`
	Seats              *int    `json:"seats" binding:"required"`
}

type assignBody struct {
	PractitionerID string `json:"practitioner_id" binding:"required"`
}

func (h *Handler) List(c *gin.Context) {
	licenses, err := h.service.List(c.Request.Context(), middleware.TenantID(c), ListFilter{
		Status:             Status(c.Query("status")),
		SubscriptionItemID: c.Query("subscription_item_id"),
		PractitionerID:     c.Query("practitioner_id"),
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"licenses": licenses})
}

func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) Reconcile(c *gin.Context) {
	var body reconcileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := h.service.Reconcile(c.Request.Context(), ReconcileRequest{
		TenantID:           middleware.TenantID(c),
		SubscriptionItemID: body.SubscriptionItemID,
		Seats:              *body.Seats,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Assign(c *gin.Context) {
	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid request body", err))
		return
	}

	l, err := h.service.Assign(c.Request.Context(), middleware.TenantID(c), c.Param("id"), body.PractitionerID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

func (h *Handler) AssignNext(c *gin.Context) {
	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid request body", err))
		return
	}

	l, err := h.service.AssignNext(c.Request.Context(), middleware.TenantID(c), body.PractitionerID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

func (h *Handler) Unassign(c *gin.Context) {
	l, err := h.service.Unassign(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}
