package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

var favoriteConstraints = map[string]string{
	"favorites_user_id_sneaker_id_key": "sneaker",
}

// FavoriteRepository persists saved sneakers.
type FavoriteRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewFavoriteRepository constructs a favorite repository.
func NewFavoriteRepository(exec pgExecutor) *FavoriteRepository {
	return &FavoriteRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Add inserts a favorite. Saving the same sneaker twice surfaces as a
// DuplicateFieldError on "sneaker".
func (r *FavoriteRepository) Add(ctx context.Context, favorite domain.Favorite) error {
	stmt, args, err := r.builder.Insert("driplytics.favorites").
		Columns("id", "user_id", "sneaker_id", "name", "brand", "image_url", "saved_price", "created_at").
		Values(
			favorite.ID,
			favorite.UserID,
			favorite.SneakerID,
			favorite.Name,
			favorite.Brand,
			favorite.ImageURL,
			favorite.SavedPrice,
			favorite.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert favorite sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if translated := translateUniqueViolation(err, favoriteConstraints); translated != err {
			return translated
		}
		return fmt.Errorf("insert favorite: %w", err)
	}

	return nil
}

// ListByUser returns a user's favorites, newest first.
func (r *FavoriteRepository) ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error) {
	stmt, args, err := r.builder.Select("id", "user_id", "sneaker_id", "name", "brand", "image_url", "saved_price", "created_at").
		From("driplytics.favorites").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list favorites sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favorites := make([]domain.Favorite, 0)
	for rows.Next() {
		var fav domain.Favorite
		if err := rows.Scan(
			&fav.ID,
			&fav.UserID,
			&fav.SneakerID,
			&fav.Name,
			&fav.Brand,
			&fav.ImageURL,
			&fav.SavedPrice,
			&fav.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}

	return favorites, nil
}

// CountByUser returns the number of favorites a user has saved.
func (r *FavoriteRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("driplytics.favorites").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count favorites sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count favorites: %w", err)
	}

	return count, nil
}

// Remove deletes one favorite by its sneaker id. Missing rows surface as
// ErrNotFound.
func (r *FavoriteRepository) Remove(ctx context.Context, userID, sneakerID string) error {
	stmt, args, err := r.builder.Delete("driplytics.favorites").
		Where(squirrel.Eq{"user_id": userID, "sneaker_id": sneakerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete favorite sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.FavoriteRepository = (*FavoriteRepository)(nil)
