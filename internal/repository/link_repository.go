package repository

import (
	"context"
	"errors"

	"linkintel/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var linkColumns = []string{"id", "source_type", "source_id", "target_type", "target_id", "confidence", "evidence_text", "user_decision", "created_at"}

// LinkFilter narrows List results. Nil fields are ignored.
type LinkFilter struct {
	SourceType  *models.EntityType
	SourceID    *uuid.UUID
	TargetType  *models.EntityType
	TargetID    *uuid.UUID
	PendingOnly bool
}

type LinkRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLinkRepository(db *pgxpool.Pool, logger *zap.Logger) *LinkRepository {
	return &LinkRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a link. The links table carries a unique index on the
// (source_type, source_id, target_type, target_id) tuple, so a concurrent
// analyze run losing the insert race is reported as inserted=false rather
// than an error.
func (r *LinkRepository) Create(ctx context.Context, link *models.Link) (bool, error) {
	query := squirrel.Insert("links").
		Columns(linkColumns...).
		Values(link.ID, link.SourceType, link.SourceID, link.TargetType, link.TargetID, link.Confidence, link.EvidenceText, link.UserDecision, link.CreatedAt).
		Suffix("ON CONFLICT (source_type, source_id, target_type, target_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindByTuple looks up a link by its exact directional tuple. Returns
// (nil, nil) when no such link exists.
func (r *LinkRepository) FindByTuple(ctx context.Context, sourceType models.EntityType, sourceID uuid.UUID, targetType models.EntityType, targetID uuid.UUID) (*models.Link, error) {
	query := squirrel.Select(linkColumns...).
		From("links").
		Where(squirrel.Eq{
			"source_type": sourceType,
			"source_id":   sourceID,
			"target_type": targetType,
			"target_id":   targetID,
		}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var link models.Link
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&link.ID, &link.SourceType, &link.SourceID, &link.TargetType, &link.TargetID, &link.Confidence, &link.EvidenceText, &link.UserDecision, &link.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &link, nil
}

func (r *LinkRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	query := squirrel.Select(linkColumns...).
		From("links").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var link models.Link
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&link.ID, &link.SourceType, &link.SourceID, &link.TargetType, &link.TargetID, &link.Confidence, &link.EvidenceText, &link.UserDecision, &link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &link, nil
}

func (r *LinkRepository) List(ctx context.Context, filter LinkFilter) ([]*models.Link, error) {
	query := squirrel.Select(linkColumns...).
		From("links").
		OrderBy("confidence DESC").
		PlaceholderFormat(squirrel.Dollar)

	if filter.SourceType != nil {
		query = query.Where(squirrel.Eq{"source_type": *filter.SourceType})
	}
	if filter.SourceID != nil {
		query = query.Where(squirrel.Eq{"source_id": *filter.SourceID})
	}
	if filter.TargetType != nil {
		query = query.Where(squirrel.Eq{"target_type": *filter.TargetType})
	}
	if filter.TargetID != nil {
		query = query.Where(squirrel.Eq{"target_id": *filter.TargetID})
	}
	if filter.PendingOnly {
		query = query.Where(squirrel.Eq{"user_decision": models.DecisionPending})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*models.Link
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(
			&link.ID, &link.SourceType, &link.SourceID, &link.TargetType, &link.TargetID, &link.Confidence, &link.EvidenceText, &link.UserDecision, &link.CreatedAt,
		); err != nil {
			return nil, err
		}
		links = append(links, &link)
	}

	return links, rows.Err()
}

// UpdateDecision overwrites the review decision. Re-deciding an already
// decided link is allowed. Returns pgx.ErrNoRows when the link is gone.
func (r *LinkRepository) UpdateDecision(ctx context.Context, id uuid.UUID, decision models.LinkDecision) error {
	query := squirrel.Update("links").
		Set("user_decision", decision).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *LinkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := squirrel.Delete("links").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
