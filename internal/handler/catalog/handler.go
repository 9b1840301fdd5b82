package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/servease/marketplace-api/internal/middleware"
	"github.com/servease/marketplace-api/internal/model"
	"github.com/servease/marketplace-api/internal/service/catalog"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
	"github.com/servease/marketplace-api/pkg/httputil"
)

type Handler struct {
	service *catalog.Service
}

func NewHandler(service *catalog.Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes mounts the unauthenticated browse endpoints.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/categories", h.ListCategories)
	r.GET("/services", h.ListServices)
	r.GET("/services/:id", h.GetService)
}

// RegisterProviderRoutes mounts the endpoints restricted to providers.
func (h *Handler) RegisterProviderRoutes(r *gin.RouterGroup) {
	r.POST("/services", h.CreateService)
	r.PATCH("/services/:id", h.UpdateService)
}

// RegisterAdminRoutes mounts the endpoints restricted to admins.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/categories", h.CreateCategory)
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, categories)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req model.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	category, err := h.service.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, category)
}

func (h *Handler) GetService(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid service ID", err))
		return
	}

	service, err := h.service.GetService(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, service)
}

func (h *Handler) ListServices(c *gin.Context) {
	filters, err := parseServiceFilters(c)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	services, total, err := h.service.ListServices(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, services, filters.Page, filters.PageSize, total)
}

func (h *Handler) CreateService(c *gin.Context) {
	providerID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("missing caller identity", nil))
		return
	}

	var req model.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	service, err := h.service.CreateService(c.Request.Context(), providerID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, service)
}

func (h *Handler) UpdateService(c *gin.Context) {
	providerID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("missing caller identity", nil))
		return
	}

	serviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid service ID", err))
		return
	}

	var req model.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	service, err := h.service.UpdateService(c.Request.Context(), providerID, serviceID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, service)
}

func parseServiceFilters(c *gin.Context) (*model.ServiceFilters, error) {
	filters := &model.ServiceFilters{
		Search:     c.Query("search"),
		ActiveOnly: c.Query("include_inactive") != "true",
	}

	if v := c.Query("category_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		filters.CategoryID = id
	}
	if v := c.Query("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		filters.ProviderID = id
	}
	if v := c.Query("min_price"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		filters.MinPrice = &p
	}
	if v := c.Query("max_price"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		filters.MaxPrice = &p
	}

	if err := c.ShouldBindQuery(&filters.Pagination); err != nil {
		return nil, err
	}
	filters.Normalize()
	return filters, nil
}
