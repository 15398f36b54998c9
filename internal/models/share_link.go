package models

import (
	"time"
)

// ResourceKind тип ресурса, который можно опубликовать по ссылке
type ResourceKind string

const (
	ResourceQuiz      ResourceKind = "quiz"
	ResourceMaterial  ResourceKind = "material"
	ResourceOCRResult ResourceKind = "ocr_result"
)

// ParseResourceKind возвращает false для неизвестного типа
func ParseResourceKind(s string) (ResourceKind, bool) {
	switch ResourceKind(s) {
	case ResourceQuiz, ResourceMaterial, ResourceOCRResult:
		return ResourceKind(s), true
	default:
		return "", false
	}
}

type ResourceRef struct {
	Kind ResourceKind `json:"resource_type"`
	ID   string       `json:"resource_id"`
}

type SharePolicy struct {
	ViewOnly     bool    `json:"view_only"`
	AllowCopy    bool    `json:"allow_copy"`
	PasswordHash *string `json:"password_hash,omitempty"`
}

func (p SharePolicy) HasPassword() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}

type ShareLink struct {
	ID        int64       `json:"id"`
	Locator   string      `json:"locator"`
	OwnerID   string      `json:"owner_id"`
	Resource  ResourceRef `json:"resource"`
	Policy    SharePolicy `json:"policy"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	RevokedAt *time.Time  `json:"revoked_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ExpiredAt граница включительная: в момент expires_at ссылка уже истекла
func (l *ShareLink) ExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

func (l *ShareLink) Revoked() bool {
	return l.RevokedAt != nil
}

type CreateShareInput struct {
	OwnerID      string
	ResourceType string
	ResourceID   string
	ViewOnly     bool
	AllowCopy    bool
	Password     *string
	ExpiresAt    *time.Time
}

type IssuedShare struct {
	Locator   string     `json:"locator"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// ShareLinkSummary ссылка в списке владельца, без хэша пароля
type ShareLinkSummary struct {
	Locator      string       `json:"locator"`
	URL          string       `json:"url"`
	ResourceType ResourceKind `json:"resourceType"`
	ResourceID   string       `json:"resourceId"`
	ViewOnly     bool         `json:"viewOnly"`
	AllowCopy    bool         `json:"allowCopy"`
	HasPassword  bool         `json:"hasPassword"`
	ExpiresAt    *time.Time   `json:"expiresAt,omitempty"`
	Revoked      bool         `json:"revoked"`
	CreatedAt    time.Time    `json:"createdAt"`
}
