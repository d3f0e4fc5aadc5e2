package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
)

// HistoryRepository persists the per-user search and prediction histories.
type HistoryRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewHistoryRepository constructs a history repository.
func NewHistoryRepository(exec pgExecutor) *HistoryRepository {
	return &HistoryRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// AddSearch appends a search entry. Trimming is the caller's job.
func (r *HistoryRepository) AddSearch(ctx context.Context, entry domain.SearchHistoryEntry) error {
	stmt, args, err := r.builder.Insert("driplytics.search_history").
		Columns("id", "user_id", "query", "results", "searched_at").
		Values(entry.ID, entry.UserID, entry.Query, entry.Results, entry.SearchedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert search sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert search entry: %w", err)
	}

	return nil
}

// ListSearches returns the newest entries first, up to limit.
func (r *HistoryRepository) ListSearches(ctx context.Context, userID string, limit int) ([]domain.SearchHistoryEntry, error) {
	if limit <= 0 || limit > domain.HistoryLimit {
		limit = domain.HistoryLimit
	}

	stmt, args, err := r.builder.Select("id", "user_id", "query", "results", "searched_at").
		From("driplytics.search_history").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("searched_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list searches sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.SearchHistoryEntry, 0, limit)
	for rows.Next() {
		var entry domain.SearchHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Query, &entry.Results, &entry.SearchedAt); err != nil {
			return nil, fmt.Errorf("scan search entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate searches: %w", err)
	}

	return entries, nil
}

// CountSearches returns the total number of stored search entries for a user.
func (r *HistoryRepository) CountSearches(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("driplytics.search_history").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count searches sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count searches: %w", err)
	}

	return count, nil
}

// TrimSearches deletes all but the newest maxEntries rows for the user.
func (r *HistoryRepository) TrimSearches(ctx context.Context, userID string, maxEntries int) error {
	if maxEntries <= 0 {
		maxEntries = domain.HistoryLimit
	}

	query := `DELETE FROM driplytics.search_history
		WHERE user_id = $1
		AND id NOT IN (
			SELECT id FROM driplytics.search_history
			WHERE user_id = $1
			ORDER BY searched_at DESC
			LIMIT $2
		)`

	if _, err := r.exec.Exec(ctx, query, userID, maxEntries); err != nil {
		return fmt.Errorf("trim searches: %w", err)
	}

	return nil
}

// AddPrediction appends a prediction entry. Trimming is the caller's job.
func (r *HistoryRepository) AddPrediction(ctx context.Context, entry domain.PredictionHistoryEntry) error {
	stmt, args, err := r.builder.Insert("driplytics.prediction_history").
		Columns("id", "user_id", "sneaker_id", "sneaker_name", "predicted_price", "confidence", "predicted_at").
		Values(entry.ID, entry.UserID, entry.SneakerID, entry.SneakerName, entry.PredictedPrice, entry.Confidence, entry.PredictedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert prediction sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert prediction entry: %w", err)
	}

	return nil
}

// ListPredictions returns the newest entries first, up to limit.
func (r *HistoryRepository) ListPredictions(ctx context.Context, userID string, limit int) ([]domain.PredictionHistoryEntry, error) {
	if limit <= 0 || limit > domain.HistoryLimit {
		limit = domain.HistoryLimit
	}

	stmt, args, err := r.builder.Select("id", "user_id", "sneaker_id", "sneaker_name", "predicted_price", "confidence", "predicted_at").
		From("driplytics.prediction_history").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("predicted_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list predictions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.PredictionHistoryEntry, 0, limit)
	for rows.Next() {
		var entry domain.PredictionHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.SneakerID,
			&entry.SneakerName,
			&entry.PredictedPrice,
			&entry.Confidence,
			&entry.PredictedAt,
		); err != nil {
			return nil, fmt.Errorf("scan prediction entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}

	return entries, nil
}

// CountPredictions returns the total number of stored prediction entries.
func (r *HistoryRepository) CountPredictions(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("driplytics.prediction_history").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count predictions sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}

	return count, nil
}

// TrimPredictions deletes all but the newest maxEntries rows for the user.
func (r *HistoryRepository) TrimPredictions(ctx context.Context, userID string, maxEntries int) error {
	if maxEntries <= 0 {
		maxEntries = domain.HistoryLimit
	}

	query := `DELETE FROM driplytics.prediction_history
		WHERE user_id = $1
		AND id NOT IN (
			SELECT id FROM driplytics.prediction_history
			WHERE user_id = $1
			ORDER BY predicted_at DESC
			LIMIT $2
		)`

	if _, err := r.exec.Exec(ctx, query, userID, maxEntries); err != nil {
		return fmt.Errorf("trim predictions: %w", err)
	}

	return nil
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
