package booking

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/servease/marketplace-api/internal/middleware"
	"github.com/servease/marketplace-api/internal/model"
	"github.com/servease/marketplace-api/internal/service/booking"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
	"github.com/servease/marketplace-api/pkg/httputil"
)

type Handler struct {
	service *booking.Service
}

func NewHandler(service *booking.Service) *Handler {
	return &Handler{service: service}
}

// RegisterCustomerRoutes mounts the customer-facing booking endpoints.
func (h *Handler) RegisterCustomerRoutes(r *gin.RouterGroup) {
	r.POST("/bookings", h.CreateBooking)
	r.GET("/bookings", h.ListCustomerBookings)
	r.GET("/bookings/:id", h.GetBooking)
	r.POST("/bookings/:id/cancel", h.CancelBooking)
}

// RegisterProviderRoutes mounts the provider-facing booking endpoints.
func (h *Handler) RegisterProviderRoutes(r *gin.RouterGroup) {
	r.GET("/bookings", h.ListProviderBookings)
	r.PATCH("/bookings/:id/status", h.UpdateBookingStatus)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	customerID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("missing caller identity", nil))
		return
	}

	var req model.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), customerID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, result)
}

// GetBooking returns the booking only to its customer, its provider, or an
// admin. Anyone else gets a 404 rather than a 403 so booking IDs are not
// probeable.
func (h *Handler) GetBooking(c *gin.Context) {
	callerID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("missing caller identity", nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid booking ID", err))
		return
	}

	detail, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	role := model.UserRole(c.GetString(middleware.ContextRole))
	if role != model.UserRoleAdmin && detail.CustomerID != callerID && detail.ProviderID != callerID {
		httputil.RespondWithError(c, apperrors.NotFound("booking", nil))
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, detail)
}

func (h *Handler) ListCustomerBookings(c *gin.Context) {
	customerID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("missing caller identity", nil))
		return
	}

	filters, err := parseBookingFilters(c)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}
	filters.CustomerID = customerID

	h.list(c, filters)
}

func (h *Handler) ListProviderBookings(c *gin.Context) {
	providerID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("missing caller identity", nil))
		return
	}

	filters, err := parseBookingFilters(c)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}
	filters.ProviderID = providerID

	h.list(c, filters)
}

func (h *Handler) list(c *gin.Context, filters *model.BookingFilters) {
	bookings, total, err := h.service.ListBookings(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, bookings, filters.Page, filters.PageSize, total)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	customerID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("missing caller identity", nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid booking ID", err))
		return
	}

	// The cancel reason body is optional.
	var req model.CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
			return
		}
	}

	cancelled, err := h.service.CancelBooking(c.Request.Context(), customerID, id, req.CancelReason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, cancelled)
}

func (h *Handler) UpdateBookingStatus(c *gin.Context) {
	providerID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("missing caller identity", nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid booking ID", err))
		return
	}

	var req model.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	detail, err := h.service.UpdateBookingStatus(c.Request.Context(), providerID, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, detail)
}

func parseBookingFilters(c *gin.Context) (*model.BookingFilters, error) {
	filters := &model.BookingFilters{
		SortBy:   c.DefaultQuery("sort_by", "created_at"),
		SortDesc: c.DefaultQuery("order", "desc") == "desc",
	}

	if v := c.Query("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filters.Statuses = append(filters.Statuses, model.BookingStatus(strings.TrimSpace(s)))
		}
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		filters.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		filters.EndDate = &t
	}

	if err := c.ShouldBindQuery(&filters.Pagination); err != nil {
		return nil, err
	}
	filters.Normalize()
	return filters, nil
}
