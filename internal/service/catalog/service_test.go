package catalog

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servease/marketplace-api/internal/model"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
)

type fakeCategoryRepo struct {
	categories map[uuid.UUID]*model.ServiceCategory
	listCalls  int
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: make(map[uuid.UUID]*model.ServiceCategory)}
}

func (r *fakeCategoryRepo) Create(_ context.Context, c *model.ServiceCategory) error {
	c.ID = uuid.New()
	r.categories[c.ID] = c
	return nil
}

func (r *fakeCategoryRepo) Get(_ context.Context, id uuid.UUID) (*model.ServiceCategory, error) {
	c, ok := r.categories[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (r *fakeCategoryRepo) List(_ context.Context, _ bool) ([]*model.ServiceCategory, error) {
	r.listCalls++
	out := make([]*model.ServiceCategory, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	return out, nil
}

type fakeServiceRepo struct {
	services    map[uuid.UUID]*model.Service
	activeReads int
}

func newFakeServiceRepo() *fakeServiceRepo {
	return &fakeServiceRepo{services: make(map[uuid.UUID]*model.Service)}
}

func (r *fakeServiceRepo) Create(_ context.Context, s *model.Service) error {
	s.ID = uuid.New()
	r.services[s.ID] = s
	return nil
}

func (r *fakeServiceRepo) Get(_ context.Context, id uuid.UUID) (*model.Service, error) {
	s, ok := r.services[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (r *fakeServiceRepo) GetActive(_ context.Context, id uuid.UUID) (*model.Service, error) {
	r.activeReads++
	s, ok := r.services[id]
	if !ok || !s.Active {
		return nil, sql.ErrNoRows
	}
	copy := *s
	return &copy, nil
}

func (r *fakeServiceRepo) Update(_ context.Context, s *model.Service) error {
	r.services[s.ID] = s
	return nil
}

func (r *fakeServiceRepo) List(_ context.Context, _ *model.ServiceFilters) ([]*model.Service, int, error) {
	return nil, 0, nil
}

func (r *fakeServiceRepo) AddBookingsTx(_ context.Context, _ *sqlx.Tx, _ uuid.UUID, _ int) error {
	return nil
}

func (r *fakeServiceRepo) UpdateRating(_ context.Context, _ uuid.UUID, _ float64, _ int) error {
	return nil
}

func seedService(t *testing.T, repo *fakeServiceRepo, price int64) *model.Service {
	t.Helper()
	svc := &model.Service{ProviderID: uuid.New(), Name: "Deep Cleaning", Price: price, Active: true}
	require.NoError(t, repo.Create(context.Background(), svc))
	return svc
}

func TestGetActiveServiceCachesRead(t *testing.T) {
	categories := newFakeCategoryRepo()
	services := newFakeServiceRepo()
	svc := NewService(categories, services)
	seeded := seedService(t, services, 500)

	first, err := svc.GetActiveService(context.Background(), seeded.ID)
	require.NoError(t, err)
	second, err := svc.GetActiveService(context.Background(), seeded.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, services.activeReads)
}

func TestGetActiveServiceUnknown(t *testing.T) {
	svc := NewService(newFakeCategoryRepo(), newFakeServiceRepo())

	_, err := svc.GetActiveService(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestGetActiveServiceInactive(t *testing.T) {
	categories := newFakeCategoryRepo()
	services := newFakeServiceRepo()
	svc := NewService(categories, services)
	seeded := seedService(t, services, 500)
	seeded.Active = false

	_, err := svc.GetActiveService(context.Background(), seeded.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateServiceInvalidatesCache(t *testing.T) {
	categories := newFakeCategoryRepo()
	services := newFakeServiceRepo()
	svc := NewService(categories, services)
	seeded := seedService(t, services, 500)

	_, err := svc.GetActiveService(context.Background(), seeded.ID)
	require.NoError(t, err)

	newPrice := int64(750)
	_, err = svc.UpdateService(context.Background(), seeded.ProviderID, seeded.ID, &model.UpdateServiceRequest{Price: &newPrice})
	require.NoError(t, err)

	updated, err := svc.GetActiveService(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), updated.Price)
	assert.Equal(t, 2, services.activeReads)
}

func TestListCategoriesCached(t *testing.T) {
	categories := newFakeCategoryRepo()
	svc := NewService(categories, newFakeServiceRepo())

	_, err := svc.CreateCategory(context.Background(), &model.CreateCategoryRequest{Name: "Cleaning"})
	require.NoError(t, err)

	first, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = svc.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, categories.listCalls)

	// A new category drops the cached listing.
	_, err = svc.CreateCategory(context.Background(), &model.CreateCategoryRequest{Name: "Plumbing"})
	require.NoError(t, err)

	second, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Equal(t, 2, categories.listCalls)
}
