package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/servease/marketplace-api/internal/model"
	"github.com/servease/marketplace-api/internal/repository"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
)

const (
	serviceCacheTTL     = 5 * time.Minute
	serviceCacheCleanup = 15 * time.Minute
	categoryCacheKey    = "categories:active"
	serviceCacheKeyBase = "service:"
)

// Service owns the catalog read/write path. Active-service reads are cached:
// the booking workflow hits them on every creation.
type Service struct {
	categories repository.CategoryRepository
	services   repository.ServiceRepository
	cache      *gocache.Cache
}

func NewService(categories repository.CategoryRepository, services repository.ServiceRepository) *Service {
	return &Service{
		categories: categories,
		services:   services,
		cache:      gocache.New(serviceCacheTTL, serviceCacheCleanup),
	}
}

func (s *Service) CreateCategory(ctx context.Context, req *model.CreateCategoryRequest) (*model.ServiceCategory, error) {
	category := &model.ServiceCategory{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Active:      true,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, apperrors.Internal(err)
	}
	s.cache.Delete(categoryCacheKey)
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]*model.ServiceCategory, error) {
	if cached, ok := s.cache.Get(categoryCacheKey); ok {
		return cached.([]*model.ServiceCategory), nil
	}

	categories, err := s.categories.List(ctx, true)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.cache.Set(categoryCacheKey, categories, gocache.DefaultExpiration)
	return categories, nil
}

func (s *Service) CreateService(ctx context.Context, providerID uuid.UUID, req *model.CreateServiceRequest) (*model.Service, error) {
	if _, err := s.categories.Get(ctx, req.CategoryID); err != nil {
		return nil, asNotFound("category", err)
	}

	service := &model.Service{
		ProviderID:  providerID,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Duration:    req.Duration,
		Active:      true,
	}
	if err := s.services.Create(ctx, service); err != nil {
		return nil, apperrors.Internal(err)
	}
	return service, nil
}

func (s *Service) UpdateService(ctx context.Context, providerID, serviceID uuid.UUID, req *model.UpdateServiceRequest) (*model.Service, error) {
	service, err := s.services.Get(ctx, serviceID)
	if err != nil {
		return nil, asNotFound("service", err)
	}
	if service.ProviderID != providerID {
		return nil, apperrors.NotFound("service", nil)
	}

	if req.Name != nil {
		service.Name = *req.Name
	}
	if req.Description != nil {
		service.Description = *req.Description
	}
	if req.Price != nil {
		service.Price = *req.Price
	}
	if req.Duration != nil {
		service.Duration = *req.Duration
	}
	if req.Active != nil {
		service.Active = *req.Active
	}

	if err := s.services.Update(ctx, service); err != nil {
		return nil, apperrors.Internal(err)
	}
	s.cache.Delete(serviceCacheKeyBase + serviceID.String())
	return service, nil
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	service, err := s.services.Get(ctx, id)
	if err != nil {
		return nil, asNotFound("service", err)
	}
	return service, nil
}

// GetActiveService is the directory read used by the booking workflow.
func (s *Service) GetActiveService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	key := serviceCacheKeyBase + id.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.Service), nil
	}

	service, err := s.services.GetActive(ctx, id)
	if err != nil {
		return nil, asNotFound("service", err)
	}
	s.cache.Set(key, service, gocache.DefaultExpiration)
	return service, nil
}

func (s *Service) ListServices(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, int, error) {
	services, total, err := s.services.List(ctx, filters)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return services, total, nil
}

func asNotFound(resource string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(err)
}
