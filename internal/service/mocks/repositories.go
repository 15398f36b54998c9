package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/edushare/internal/models"
	"github.com/SergeiKhy/edushare/internal/repository"
)

// MockShareLinkRepository implements repository.ShareLinkRepository for testing
type MockShareLinkRepository struct {
	mu     sync.RWMutex
	links  map[string]*models.ShareLink
	nextID int64

	// CreateErr if set is returned by Create instead of storing the link
	CreateErr error
}

func NewMockShareLinkRepository() *MockShareLinkRepository {
	return &MockShareLinkRepository{
		links:  make(map[string]*models.ShareLink),
		nextID: 1,
	}
}

func (m *MockShareLinkRepository) Create(ctx context.Context, link *models.ShareLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, exists := m.links[link.Locator]; exists {
		return repository.ErrLocatorExists
	}

	link.ID = m.nextID
	m.nextID++
	stored := *link
	m.links[link.Locator] = &stored
	return nil
}

func (m *MockShareLinkRepository) GetByLocator(ctx context.Context, locator string) (*models.ShareLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[locator]
	if !exists {
		return nil, repository.ErrShareLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockShareLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.ShareLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	links := []*models.ShareLink{}
	for _, link := range m.links {
		if link.OwnerID == ownerID {
			copied := *link
			links = append(links, &copied)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID > links[j].ID })
	return links, nil
}

func (m *MockShareLinkRepository) Revoke(ctx context.Context, locator, ownerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[locator]
	if !exists || link.OwnerID != ownerID || link.RevokedAt != nil {
		return repository.ErrShareLinkNotFound
	}
	link.RevokedAt = &at
	return nil
}

// Put stores a link as is, bypassing locator generation
func (m *MockShareLinkRepository) Put(link *models.ShareLink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *link
	m.links[link.Locator] = &stored
}

func (m *MockShareLinkRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

// MockResourceRepository implements repository.ResourceRepository for testing
type MockResourceRepository struct {
	mu         sync.RWMutex
	quizzes    map[string]*models.Quiz
	materials  map[string]*models.Material
	ocrResults map[string]*models.OCRResult
}

func NewMockResourceRepository() *MockResourceRepository {
	return &MockResourceRepository{
		quizzes:    make(map[string]*models.Quiz),
		materials:  make(map[string]*models.Material),
		ocrResults: make(map[string]*models.OCRResult),
	}
}

func (m *MockResourceRepository) AddQuiz(quiz *models.Quiz) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[quiz.ID] = quiz
}

func (m *MockResourceRepository) AddMaterial(material *models.Material) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.materials[material.ID] = material
}

func (m *MockResourceRepository) AddOCRResult(result *models.OCRResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ocrResults[result.ID] = result
}

// Remove deletes a resource of any kind
func (m *MockResourceRepository) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.quizzes, id)
	delete(m.materials, id)
	delete(m.ocrResults, id)
}

func (m *MockResourceRepository) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	quiz, exists := m.quizzes[id]
	if !exists {
		return nil, repository.ErrResourceNotFound
	}
	copied := *quiz
	return &copied, nil
}

func (m *MockResourceRepository) GetMaterial(ctx context.Context, id string) (*models.Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	material, exists := m.materials[id]
	if !exists {
		return nil, repository.ErrResourceNotFound
	}
	copied := *material
	return &copied, nil
}

func (m *MockResourceRepository) GetOCRResult(ctx context.Context, id string) (*models.OCRResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, exists := m.ocrResults[id]
	if !exists {
		return nil, repository.ErrResourceNotFound
	}
	copied := *result
	copied.Regions = append([]models.OCRRegion(nil), result.Regions...)
	return &copied, nil
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.ShareLink
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.ShareLink),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, locator string) (*models.ShareLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[locator]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	copied := *link
	return &copied, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, link *models.ShareLink, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *link
	m.cache[link.Locator] = &copied
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, locator)
	return nil
}

// MockAttemptRepository implements repository.AttemptRepository for testing.
// Windows never expire.
type MockAttemptRepository struct {
	mu       sync.Mutex
	failures map[string]int
}

func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{
		failures: make(map[string]int),
	}
}

func (m *MockAttemptRepository) Failures(ctx context.Context, locator string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[locator], nil
}

func (m *MockAttemptRepository) RegisterAttempt(ctx context.Context, locator string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[locator]++
	return m.failures[locator], nil
}

func (m *MockAttemptRepository) Reset(ctx context.Context, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, locator)
	return nil
}

// MockSubmissionRepository implements repository.SubmissionRepository for testing
type MockSubmissionRepository struct {
	mu      sync.RWMutex
	results []*models.StudentResult

	// FailTimes makes the first N RecordSubmission calls fail
	FailTimes int
	calls     int
}

func NewMockSubmissionRepository() *MockSubmissionRepository {
	return &MockSubmissionRepository{}
}

func (m *MockSubmissionRepository) RecordSubmission(ctx context.Context, result *models.StudentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.calls <= m.FailTimes {
		return context.DeadlineExceeded
	}
	m.results = append(m.results, result)
	return nil
}

func (m *MockSubmissionRepository) GetStats(ctx context.Context, locator string) (*models.SubmissionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.SubmissionStats{Locator: locator}
	students := make(map[string]bool)
	var sum int
	for _, r := range m.results {
		if r.Locator != locator {
			continue
		}
		stats.TotalSubmissions++
		students[r.StudentIdentifier] = true
		sum += r.Score
	}
	stats.UniqueStudents = int64(len(students))
	if stats.TotalSubmissions > 0 {
		stats.AverageScore = float64(sum) / float64(stats.TotalSubmissions)
	}
	return stats, nil
}

func (m *MockSubmissionRepository) GetDailyStats(ctx context.Context, locator string, days int) ([]models.DailySubmissionStats, error) {
	return []models.DailySubmissionStats{}, nil
}

func (m *MockSubmissionRepository) Results() []*models.StudentResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*models.StudentResult(nil), m.results...)
}
