package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/servease/marketplace-api/internal/model"
	"github.com/servease/marketplace-api/internal/service/payment"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
	"github.com/servease/marketplace-api/pkg/httputil"
)

type Handler struct {
	service *payment.Service
}

func NewHandler(service *payment.Service) *Handler {
	return &Handler{service: service}
}

// RegisterCustomerRoutes mounts the payment callback endpoints hit by the
// client after the gateway checkout flow.
func (h *Handler) RegisterCustomerRoutes(r *gin.RouterGroup) {
	r.POST("/payments/verify", h.VerifyPayment)
	r.POST("/payments/failure", h.FailPayment)
}

// RegisterAdminRoutes mounts the refund endpoint.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/bookings/:id/refund", h.RefundBooking)
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	var req model.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	captured, err := h.service.ConfirmPayment(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, captured)
}

func (h *Handler) FailPayment(c *gin.Context) {
	var req model.FailPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	failed, err := h.service.FailPayment(c.Request.Context(), req.PaymentID, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, failed)
}

func (h *Handler) RefundBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid booking ID", err))
		return
	}

	var req model.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	refunded, err := h.service.ProcessRefund(c.Request.Context(), bookingID, req.Amount, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, refunded)
}
