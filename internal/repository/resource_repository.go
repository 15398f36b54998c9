package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SergeiKhy/edushare/internal/models"
	"github.com/jackc/pgx/v5"
)

var ErrResourceNotFound = errors.New("resource not found")

// ResourceRepository чтение ресурсов, которые можно публиковать.
// Сами ресурсы создаёт и меняет другой сервис.
type ResourceRepository interface {
	GetQuiz(ctx context.Context, id string) (*models.Quiz, error)
	GetMaterial(ctx context.Context, id string) (*models.Material, error)
	GetOCRResult(ctx context.Context, id string) (*models.OCRResult, error)
}

type resourceRepository struct {
	db *PostgresDB
}

func NewResourceRepository(db *PostgresDB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	// Владелец теста определяется через его материал
	query := `
		SELECT q.id, m.user_id, COALESCE(q.title, m.title, 'Quiz'), q.questions, q.created_at
		FROM quizzes q
		JOIN materials m ON q.material_id = m.id
		WHERE q.id = $1
	`

	quiz := &models.Quiz{}
	var questions []byte
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&quiz.ID,
		&quiz.OwnerID,
		&quiz.Title,
		&questions,
		&quiz.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := unmarshalJSONB(questions, &quiz.Questions); err != nil {
		return nil, fmt.Errorf("failed to decode quiz questions: %w", err)
	}

	return quiz, nil
}

func (r *resourceRepository) GetMaterial(ctx context.Context, id string) (*models.Material, error) {
	query := `
		SELECT id, user_id, title, raw_text, summary, glossary, file_url, created_at
		FROM materials
		WHERE id = $1
	`

	material := &models.Material{}
	var glossary []byte
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&material.ID,
		&material.OwnerID,
		&material.Title,
		&material.RawText,
		&material.Summary,
		&glossary,
		&material.FileURL,
		&material.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get material: %w", err)
	}

	if err := unmarshalJSONB(glossary, &material.Glossary); err != nil {
		return nil, fmt.Errorf("failed to decode glossary: %w", err)
	}

	return material, nil
}

func (r *resourceRepository) GetOCRResult(ctx context.Context, id string) (*models.OCRResult, error) {
	query := `
		SELECT id, user_id, student_name, COALESCE(student_accuracy, 0), image_url, questions, created_at
		FROM ocr_results
		WHERE id = $1
	`

	result := &models.OCRResult{}
	var regions []byte
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&result.ID,
		&result.OwnerID,
		&result.StudentName,
		&result.StudentAccuracy,
		&result.ImageURL,
		&regions,
		&result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get OCR result: %w", err)
	}

	if err := unmarshalJSONB(regions, &result.Regions); err != nil {
		return nil, fmt.Errorf("failed to decode OCR regions: %w", err)
	}

	return result, nil
}

func unmarshalJSONB(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
