package clinic

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateClinic provisions a new tenant. An empty timezone defaults to UTC.
func (s *Service) CreateClinic(ctx context.Context, c *Clinic) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return apperrors.NewValidationError("name", "name is required")
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return apperrors.NewValidationError("timezone", "unknown timezone "+c.Timezone)
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return apperrors.NewInternalError("create clinic", err)
	}
	s.logger.Info().Str("clinic_id", c.ID.String()).Str("name", c.Name).Msg("clinic created")
	return nil
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListClinics(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	return s.repo.List(ctx, limit, offset)
}
