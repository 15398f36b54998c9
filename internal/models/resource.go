package models

import (
	"time"
)

type Question struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Text          string   `json:"text"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

type Quiz struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"created_at"`
}

type Material struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"owner_id"`
	Title     string            `json:"title"`
	RawText   *string           `json:"raw_text,omitempty"`
	Summary   *string           `json:"summary,omitempty"`
	Glossary  map[string]string `json:"glossary,omitempty"`
	FileURL   *string           `json:"file_url,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// OCRRegion распознанный фрагмент работы; confidence выставляет OCR-движок
type OCRRegion struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Original   *string `json:"original,omitempty"`
	OCRText    string  `json:"ocrText"`
	Confidence string  `json:"confidence"`
	Match      *int    `json:"match,omitempty"`
}

type OCRResult struct {
	ID              string      `json:"id"`
	OwnerID         string      `json:"owner_id"`
	StudentName     string      `json:"student_name"`
	StudentAccuracy int         `json:"student_accuracy"`
	ImageURL        string      `json:"image_url"`
	Regions         []OCRRegion `json:"questions"`
	CreatedAt       time.Time   `json:"created_at"`
}

// StudentResult результат прохождения опубликованного теста
type StudentResult struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	StudentIdentifier string    `json:"student_identifier"`
	QuizID            string    `json:"quiz_id"`
	Locator           string    `json:"locator"`
	Score             int       `json:"score"`
	SubmittedAt       time.Time `json:"submitted_at"`
}
