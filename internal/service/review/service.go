package review

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servease/marketplace-api/internal/model"
	"github.com/servease/marketplace-api/internal/repository"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
)

type Service struct {
	reviews  repository.ReviewRepository
	bookings repository.BookingRepository
	services repository.ServiceRepository
	logger   *zerolog.Logger
}

func NewService(reviews repository.ReviewRepository, bookings repository.BookingRepository, services repository.ServiceRepository, logger *zerolog.Logger) *Service {
	return &Service{
		reviews:  reviews,
		bookings: bookings,
		services: services,
		logger:   logger,
	}
}

// CreateReview accepts one review per completed booking, from the booking's
// customer only. The service rating aggregate is recomputed after the write.
func (s *Service) CreateReview(ctx context.Context, customerID, bookingID uuid.UUID, req *model.CreateReviewRequest) (*model.Review, error) {
	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("booking", err)
		}
		return nil, apperrors.Internal(err)
	}
	if booking.CustomerID != customerID {
		return nil, apperrors.NotFound("booking", nil)
	}
	if booking.Status != model.BookingStatusCompleted {
		return nil, apperrors.BadRequest("only completed bookings can be reviewed", nil)
	}

	if _, err := s.reviews.GetByBooking(ctx, bookingID); err == nil {
		return nil, apperrors.Conflict("booking already reviewed", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Internal(err)
	}

	review := &model.Review{
		BookingID:  bookingID,
		ServiceID:  booking.ServiceID,
		CustomerID: customerID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.refreshRating(ctx, booking.ServiceID); err != nil {
		s.logger.Warn().Err(err).
			Str("service_id", booking.ServiceID.String()).
			Msg("rating aggregate refresh failed")
	}

	return review, nil
}

func (s *Service) ListByService(ctx context.Context, serviceID uuid.UUID, p model.Pagination) ([]*model.Review, int, error) {
	reviews, total, err := s.reviews.ListByService(ctx, serviceID, p)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return reviews, total, nil
}

func (s *Service) refreshRating(ctx context.Context, serviceID uuid.UUID) error {
	avg, count, err := s.reviews.AggregateByService(ctx, serviceID)
	if err != nil {
		return err
	}
	return s.services.UpdateRating(ctx, serviceID, avg, count)
}
