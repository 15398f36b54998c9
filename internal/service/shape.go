package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/SergeiKhy/edushare/internal/models"
)

const (
	defaultStudentName = "Student"
	maxStudentName     = 255
)

// questionID id вопроса; для вопросов без id используется позиция,
// чтобы выдача и проверка ответов совпадали между запросами
func questionID(q models.Question, i int) string {
	if q.ID != "" {
		return q.ID
	}
	return fmt.Sprintf("q%d", i+1)
}

// shapeQuiz в режиме view-only ключ ответов не отдаётся
func shapeQuiz(quiz *models.Quiz, policy models.SharePolicy) (string, *models.SharedQuiz) {
	shared := &models.SharedQuiz{
		QuizID:    quiz.ID,
		Questions: make([]models.SharedQuestion, 0, len(quiz.Questions)),
	}

	for i, q := range quiz.Questions {
		sq := models.SharedQuestion{
			ID:      questionID(q, i),
			Type:    q.Type,
			Text:    q.Text,
			Options: q.Options,
		}
		if sq.Type == "" {
			sq.Type = "mcq"
		}
		if sq.Options == nil {
			sq.Options = []string{}
		}
		if !policy.ViewOnly {
			answer := q.CorrectAnswer
			sq.CorrectAnswer = &answer
			if q.Explanation != "" {
				explanation := q.Explanation
				sq.Explanation = &explanation
			}
		}
		shared.Questions = append(shared.Questions, sq)
	}

	return quiz.Title, shared
}

// shapeMaterial без allow_copy не отдаём исходный текст и ссылку на файл
func shapeMaterial(material *models.Material, policy models.SharePolicy) (string, *models.SharedMaterial) {
	shared := &models.SharedMaterial{
		MaterialID: material.ID,
		Summary:    material.Summary,
		Glossary:   material.Glossary,
	}

	if policy.AllowCopy {
		shared.RawText = material.RawText
		shared.FileURL = material.FileURL
	}

	return material.Title, shared
}

// shapeOCRResult view-only скрывает эталонный текст, без allow_copy
// скрывается ссылка на скан
func shapeOCRResult(result *models.OCRResult, policy models.SharePolicy) (string, *models.SharedOCRResult) {
	shared := &models.SharedOCRResult{
		OCRResultID: result.ID,
		Student: models.SharedStudent{
			Name:     result.StudentName,
			Accuracy: result.StudentAccuracy,
		},
		Regions: make([]models.OCRRegion, 0, len(result.Regions)),
	}

	for _, region := range result.Regions {
		if policy.ViewOnly {
			region.Original = nil
		}
		shared.Regions = append(shared.Regions, region)
	}

	if policy.AllowCopy && result.ImageURL != "" {
		image := result.ImageURL
		shared.Image = &image
	}

	return result.StudentName, shared
}

// scoreQuiz сравнивает ответы без учёта регистра и пробелов по краям.
// Правильные ответы попадают в разбор только если политика их не скрывает.
func scoreQuiz(quiz *models.Quiz, policy models.SharePolicy, studentName string, answers map[string]string) *models.SubmissionResult {
	result := &models.SubmissionResult{
		QuizID:      quiz.ID,
		StudentName: studentName,
		Total:       len(quiz.Questions),
		Details:     make([]models.AnswerDetail, 0, len(quiz.Questions)),
	}

	for i, q := range quiz.Questions {
		qid := questionID(q, i)
		correctAnswer := strings.TrimSpace(q.CorrectAnswer)
		userAnswer := strings.TrimSpace(answers[qid])

		isCorrect := correctAnswer != "" && strings.EqualFold(userAnswer, correctAnswer)
		if isCorrect {
			result.Correct++
		}

		detail := models.AnswerDetail{
			QuestionID: qid,
			UserAnswer: userAnswer,
			IsCorrect:  isCorrect,
		}
		if !policy.ViewOnly {
			detail.CorrectAnswer = &correctAnswer
		}
		result.Details = append(result.Details, detail)
	}

	if result.Total > 0 {
		result.Score = int(math.Round(float64(result.Correct) / float64(result.Total) * 100))
	}

	return result
}

func normalizeStudentName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultStudentName
	}
	if r := []rune(name); len(r) > maxStudentName {
		name = string(r[:maxStudentName])
	}
	return name
}
