package practitioner

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
	r.API.POST("/practitioners", h.Create)
	r.API.GET("/practitioners", h.List)
	r.API.GET("/practitioners/:id", h.Get)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid request body", err))
		return
	}
	req.TenantID = middleware.TenantID(c)

	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) List(c *gin.Context) {
	rows, err := h.service.List(c.Request.Context(), middleware.TenantID(c), Status(c.Query("status")))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"practitioners": rows})
}

func (h *Handler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}
