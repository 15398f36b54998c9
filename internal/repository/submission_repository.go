package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/edushare/internal/models"
)

type SubmissionRepository interface {
	RecordSubmission(ctx context.Context, result *models.StudentResult) error
	GetStats(ctx context.Context, locator string) (*models.SubmissionStats, error)
	GetDailyStats(ctx context.Context, locator string, days int) ([]models.DailySubmissionStats, error)
}

type submissionRepository struct {
	db *PostgresDB
}

func NewSubmissionRepository(db *PostgresDB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) RecordSubmission(ctx context.Context, result *models.StudentResult) error {
	query := `
		INSERT INTO student_results (id, user_id, student_identifier, quiz_id, share_locator, score, submission_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query,
		result.ID,
		result.OwnerID,
		result.StudentIdentifier,
		result.QuizID,
		result.Locator,
		result.Score,
		result.SubmittedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}

	return nil
}

func (r *submissionRepository) GetStats(ctx context.Context, locator string) (*models.SubmissionStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_submissions,
			COUNT(DISTINCT student_identifier) AS unique_students,
			COALESCE(AVG(score), 0)::float8 AS average_score
		FROM student_results
		WHERE share_locator = $1
	`

	stats := &models.SubmissionStats{
		Locator: locator,
	}

	err := r.db.Pool.QueryRow(ctx, query, locator).Scan(
		&stats.TotalSubmissions,
		&stats.UniqueStudents,
		&stats.AverageScore,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get submission stats: %w", err)
	}

	return stats, nil
}

func (r *submissionRepository) GetDailyStats(ctx context.Context, locator string, days int) ([]models.DailySubmissionStats, error) {
	query := `
		SELECT
			TO_CHAR(DATE(submission_date), 'YYYY-MM-DD') AS date,
			COUNT(*) AS submissions
		FROM student_results
		WHERE share_locator = $1
			AND submission_date >= NOW() - INTERVAL '1 day' * $2
		GROUP BY DATE(submission_date)
		ORDER BY date DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, locator, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	defer rows.Close()

	stats := []models.DailySubmissionStats{}
	for rows.Next() {
		var dailyStat models.DailySubmissionStats
		if err := rows.Scan(&dailyStat.Date, &dailyStat.Submissions); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, dailyStat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return stats, nil
}
