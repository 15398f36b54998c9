package models

import (
	"bytes"
	"encoding/json"
)

// SharedResource ответ публичного эндпоинта. Ровно одна из вложенных
// структур заполнена, её поля попадают на верхний уровень JSON.
type SharedResource struct {
	ResourceType ResourceKind `json:"resourceType"`
	Locator      string       `json:"locator"`
	ViewOnly     bool         `json:"viewOnly"`
	AllowCopy    bool         `json:"allowCopy"`
	Title        string       `json:"title"`

	*SharedQuiz
	*SharedMaterial
	*SharedOCRResult
}

type SharedQuestion struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer *string  `json:"correctAnswer,omitempty"`
	Explanation   *string  `json:"explanation,omitempty"`
}

type SharedQuiz struct {
	QuizID    string           `json:"quizId"`
	Questions []SharedQuestion `json:"questions"`
}

type SharedMaterial struct {
	MaterialID string            `json:"materialId"`
	Summary    *string           `json:"summary,omitempty"`
	Glossary   map[string]string `json:"glossary,omitempty"`
	RawText    *string           `json:"rawText,omitempty"`
	FileURL    *string           `json:"fileUrl,omitempty"`
}

type SharedStudent struct {
	Name     string `json:"name"`
	Accuracy int    `json:"accuracy"`
}

type SharedOCRResult struct {
	OCRResultID string        `json:"ocrResultId"`
	Student     SharedStudent `json:"student"`
	Image       *string       `json:"image,omitempty"`
	Regions     []OCRRegion   `json:"questions"`
}

// sharedHeader общие поля ответа без вложенных структур
type sharedHeader struct {
	ResourceType ResourceKind `json:"resourceType"`
	Locator      string       `json:"locator"`
	ViewOnly     bool         `json:"viewOnly"`
	AllowCopy    bool         `json:"allowCopy"`
	Title        string       `json:"title"`
}

// MarshalJSON сливает общие поля с заполненной вложенной структурой.
// У теста и OCR-результата одинаковый ключ questions, а encoding/json
// отбрасывает конфликтующие поля встроенных структур.
func (r SharedResource) MarshalJSON() ([]byte, error) {
	head, err := json.Marshal(sharedHeader{
		ResourceType: r.ResourceType,
		Locator:      r.Locator,
		ViewOnly:     r.ViewOnly,
		AllowCopy:    r.AllowCopy,
		Title:        r.Title,
	})
	if err != nil {
		return nil, err
	}

	var payload interface{}
	switch {
	case r.SharedQuiz != nil:
		payload = r.SharedQuiz
	case r.SharedMaterial != nil:
		payload = r.SharedMaterial
	case r.SharedOCRResult != nil:
		payload = r.SharedOCRResult
	default:
		return head, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimPrefix(body, []byte("{"))
	if len(bytes.TrimSpace(body)) == 1 {
		return head, nil
	}

	out := make([]byte, 0, len(head)+len(body)+1)
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	return append(out, body...), nil
}
