package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/edushare/internal/models"
	"github.com/jackc/pgx/v5"
)

var (
	ErrShareLinkNotFound = errors.New("share link not found")
	ErrLocatorExists     = errors.New("locator already exists")
)

type ShareLinkRepository interface {
	Create(ctx context.Context, link *models.ShareLink) error
	GetByLocator(ctx context.Context, locator string) (*models.ShareLink, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.ShareLink, error)
	Revoke(ctx context.Context, locator, ownerID string, at time.Time) error
}

type shareLinkRepository struct {
	db *PostgresDB
}

func NewShareLinkRepository(db *PostgresDB) ShareLinkRepository {
	return &shareLinkRepository{db: db}
}

const shareLinkColumns = `id, locator, owner_id, resource_type, resource_id,
	view_only, allow_copy, password_hash, expires_at, revoked_at, created_at`

func (r *shareLinkRepository) Create(ctx context.Context, link *models.ShareLink) error {
	query := `
		INSERT INTO share_links (locator, owner_id, resource_type, resource_id,
			view_only, allow_copy, password_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.Locator,
		link.OwnerID,
		string(link.Resource.Kind),
		link.Resource.ID,
		link.Policy.ViewOnly,
		link.Policy.AllowCopy,
		link.Policy.PasswordHash,
		link.ExpiresAt,
		link.CreatedAt,
	).Scan(&link.ID, &link.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrLocatorExists
		}
		return fmt.Errorf("failed to create share link: %w", err)
	}

	return nil
}

// GetByLocator возвращает строку как есть, включая истёкшие и отозванные
// ссылки: решение о доступе принимает сервис.
func (r *shareLinkRepository) GetByLocator(ctx context.Context, locator string) (*models.ShareLink, error) {
	query := `SELECT ` + shareLinkColumns + ` FROM share_links WHERE locator = $1`

	link, err := scanShareLink(r.db.Pool.QueryRow(ctx, query, locator))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShareLinkNotFound
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}

	return link, nil
}

func (r *shareLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.ShareLink, error) {
	query := `SELECT ` + shareLinkColumns + `
		FROM share_links
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	defer rows.Close()

	links := []*models.ShareLink{}
	for rows.Next() {
		link, err := scanShareLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating share links: %w", err)
	}

	return links, nil
}

func (r *shareLinkRepository) Revoke(ctx context.Context, locator, ownerID string, at time.Time) error {
	query := `
		UPDATE share_links SET revoked_at = $3
		WHERE locator = $1 AND owner_id = $2 AND revoked_at IS NULL
	`

	result, err := r.db.Pool.Exec(ctx, query, locator, ownerID, at)
	if err != nil {
		return fmt.Errorf("failed to revoke share link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrShareLinkNotFound
	}

	return nil
}

func scanShareLink(row pgx.Row) (*models.ShareLink, error) {
	link := &models.ShareLink{}
	var kind string
	err := row.Scan(
		&link.ID,
		&link.Locator,
		&link.OwnerID,
		&kind,
		&link.Resource.ID,
		&link.Policy.ViewOnly,
		&link.Policy.AllowCopy,
		&link.Policy.PasswordHash,
		&link.ExpiresAt,
		&link.RevokedAt,
		&link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	link.Resource.Kind = models.ResourceKind(kind)
	return link, nil
}
