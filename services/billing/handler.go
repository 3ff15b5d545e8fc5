package billing

import (
	"net/http"

	"practice-controlplane/pkg/errutil"
	"practice-controlplane/pkg/httpapi"
	"practice-controlplane/pkg/middleware"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	r.Webhooks.POST("/billing", h.Receive)
}

func (h *Handler) Receive(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		middleware.Abort(c, errutil.BadRequest("failed to read webhook body", err))
		return
	}

	outcome, err := h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}
