package rating

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
	r.API.POST("/appointments/:id/feedback", h.SubmitFeedback)
	r.API.GET("/appointments/:id/ratings", h.ListAppointmentRatings)
	r.API.GET("/practitioners/:id/rating-summary", h.PractitionerSummary)
}

func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, errutil.BadRequest("invalid request body", err))
		return
	}
	req.TenantID = middleware.TenantID(c)
	req.AppointmentID = c.Param("id")

	result, err := h.service.SubmitFeedback(c.Request.Context(), req)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) ListAppointmentRatings(c *gin.Context) {
	rows, err := h.service.ListAppointmentRatings(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ratings": rows})
}

func (h *Handler) PractitionerSummary(c *gin.Context) {
	summary, err := h.service.PractitionerSummary(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
