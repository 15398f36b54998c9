package models

import (
	"time"
)

type SubmitInput struct {
	Locator         string
	PasswordAttempt *string
	StudentName     string
	Answers         map[string]string
}

// AnswerDetail разбор одного ответа; правильный ответ не раскрывается для view-only ссылок
type AnswerDetail struct {
	QuestionID    string  `json:"questionId"`
	UserAnswer    string  `json:"userAnswer"`
	CorrectAnswer *string `json:"correctAnswer,omitempty"`
	IsCorrect     bool    `json:"isCorrect"`
}

type SubmissionResult struct {
	QuizID      string         `json:"quizId"`
	StudentName string         `json:"studentName"`
	Score       int            `json:"score"`
	Correct     int            `json:"correct"`
	Total       int            `json:"total"`
	Details     []AnswerDetail `json:"details"`
}

// SubmissionEvent уходит в пул воркеров на сохранение
type SubmissionEvent struct {
	Locator     string
	OwnerID     string
	QuizID      string
	StudentName string
	Score       int
	SubmittedAt time.Time
}

type SubmissionStats struct {
	Locator          string  `json:"locator"`
	TotalSubmissions int64   `json:"totalSubmissions"`
	UniqueStudents   int64   `json:"uniqueStudents"`
	AverageScore     float64 `json:"averageScore"`
}

type DailySubmissionStats struct {
	Date        string `json:"date"`
	Submissions int64  `json:"submissions"`
}
