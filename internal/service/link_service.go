package service

import (
	"context"
	"errors"
	"fmt"

	"linkintel/internal/models"
	"linkintel/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrLinkNotFound is returned when a decide or remove targets a link
// that does not exist.
var ErrLinkNotFound = errors.New("link not found")

// linkReviewStore is the slice of the link store the review operations
// need; implemented by repository.LinkRepository.
type linkReviewStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Link, error)
	List(ctx context.Context, filter repository.LinkFilter) ([]*models.Link, error)
	UpdateDecision(ctx context.Context, id uuid.UUID, decision models.LinkDecision) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LinkService exposes the human-review surface over persisted links.
type LinkService struct {
	links  linkReviewStore
	logger *zap.Logger
}

func NewLinkService(links linkReviewStore, logger *zap.Logger) *LinkService {
	return &LinkService{
		links:  links,
		logger: logger,
	}
}

// List returns links matching the filter, highest confidence first.
func (s *LinkService) List(ctx context.Context, filter repository.LinkFilter) ([]*models.Link, error) {
	return s.links.List(ctx, filter)
}

// Decide records an accept/reject decision. Re-deciding is allowed and
// overwrites the previous decision; nothing besides user_decision changes.
func (s *LinkService) Decide(ctx context.Context, id uuid.UUID, decision models.LinkDecision) (*models.Link, error) {
	if decision != models.DecisionAccepted && decision != models.DecisionRejected {
		return nil, fmt.Errorf("invalid decision %q", decision)
	}

	if err := s.links.UpdateDecision(ctx, id, decision); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	s.logger.Info("Link decision recorded",
		zap.String("link_id", id.String()),
		zap.String("decision", string(decision)),
	)
	return link, nil
}

// Remove permanently deletes a link.
func (s *LinkService) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.links.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLinkNotFound
		}
		return err
	}

	s.logger.Info("Link removed", zap.String("link_id", id.String()))
	return nil
}
