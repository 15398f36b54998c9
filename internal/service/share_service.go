package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/edushare/internal/metrics"
	"github.com/SergeiKhy/edushare/internal/models"
	"github.com/SergeiKhy/edushare/internal/repository"
	"go.uber.org/zap"
)

// ShareService выдача и разрешение публичных ссылок
type ShareService interface {
	CreateShare(ctx context.Context, input *models.CreateShareInput) (*models.IssuedShare, error)
	Resolve(ctx context.Context, locator string, passwordAttempt *string) (*models.SharedResource, error)
	Submit(ctx context.Context, input *models.SubmitInput) (*models.SubmissionResult, error)
	Revoke(ctx context.Context, ownerID, locator string) error
	ListShares(ctx context.Context, ownerID string) ([]models.ShareLinkSummary, error)
	OwnedShare(ctx context.Context, ownerID, locator string) (*models.ShareLink, error)
}

// SubmissionRecorder принимает результаты на асинхронное сохранение
type SubmissionRecorder interface {
	RecordSubmission(ctx context.Context, event *models.SubmissionEvent) error
}

// ShareServiceConfig параметры сервиса ссылок
type ShareServiceConfig struct {
	PublicBaseURL       string
	MaxPasswordAttempts int
	AttemptWindow       time.Duration
	CacheTTL            time.Duration
}

// Option настраивает shareService
type Option func(*shareService)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *shareService) { s.now = now }
}

// WithLocatorGenerator подменяет генератор локаторов
func WithLocatorGenerator(gen LocatorGenerator) Option {
	return func(s *shareService) { s.generateLocator = gen }
}

type shareService struct {
	linkRepo     repository.ShareLinkRepository
	resourceRepo repository.ResourceRepository
	cacheRepo    repository.CacheRepository
	attemptRepo  repository.AttemptRepository
	hasher       PasswordHasher
	submissions  SubmissionRecorder
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          ShareServiceConfig

	now             func() time.Time
	generateLocator LocatorGenerator
}

// NewShareService создаёт новый экземпляр сервиса
func NewShareService(
	linkRepo repository.ShareLinkRepository,
	resourceRepo repository.ResourceRepository,
	cacheRepo repository.CacheRepository,
	attemptRepo repository.AttemptRepository,
	hasher PasswordHasher,
	submissions SubmissionRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg ShareServiceConfig,
	opts ...Option,
) ShareService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &shareService{
		linkRepo:        linkRepo,
		resourceRepo:    resourceRepo,
		cacheRepo:       cacheRepo,
		attemptRepo:     attemptRepo,
		hasher:          hasher,
		submissions:     submissions,
		metrics:         m,
		logger:          logger,
		cfg:             cfg,
		now:             time.Now,
		generateLocator: GenerateLocator,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateShare выдаёт новую публичную ссылку на ресурс владельца
func (s *shareService) CreateShare(ctx context.Context, input *models.CreateShareInput) (*models.IssuedShare, error) {
	kind, ok := models.ParseResourceKind(input.ResourceType)
	if !ok {
		return nil, newValidationError("resourceType", "must be one of quiz, material, ocr_result")
	}
	if input.ResourceID == "" {
		return nil, newValidationError("resourceId", "is required")
	}

	var password string
	if input.Password != nil {
		password = *input.Password
	}
	if len(password) > maxPasswordBytes {
		return nil, newValidationError("password", "must be at most 72 bytes")
	}

	// Проверка владения ресурсом
	ownerID, err := s.resourceOwner(ctx, kind, input.ResourceID)
	if err != nil {
		if errors.Is(err, repository.ErrResourceNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if ownerID != input.OwnerID {
		s.logger.Info("Share refused: resource belongs to another owner",
			zap.String("resource_type", string(kind)),
			zap.String("resource_id", input.ResourceID),
			zap.String("owner_id", input.OwnerID),
		)
		return nil, ErrNotFound
	}

	link := &models.ShareLink{
		OwnerID:  input.OwnerID,
		Resource: models.ResourceRef{Kind: kind, ID: input.ResourceID},
		Policy: models.SharePolicy{
			ViewOnly:  input.ViewOnly,
			AllowCopy: input.AllowCopy,
		},
		ExpiresAt: input.ExpiresAt,
		CreatedAt: s.now(),
	}

	// Пустой пароль означает ссылку без пароля
	if password != "" {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		link.Policy.PasswordHash = &hash
	}

	if err := s.insertWithUniqueLocator(ctx, link); err != nil {
		return nil, err
	}

	s.metrics.LinkIssued(string(kind))
	s.logger.Info("Share link issued",
		zap.String("locator", link.Locator),
		zap.String("resource_type", string(kind)),
		zap.String("resource_id", link.Resource.ID),
		zap.Bool("password", link.Policy.HasPassword()),
	)

	s.cacheLink(ctx, link)

	return &models.IssuedShare{
		Locator:   link.Locator,
		URL:       s.shareURL(link.Locator),
		ExpiresAt: link.ExpiresAt,
	}, nil
}

// insertWithUniqueLocator уникальность гарантирует уникальный индекс,
// при коллизии генерируем новый локатор
func (s *shareService) insertWithUniqueLocator(ctx context.Context, link *models.ShareLink) error {
	for attempt := 1; attempt <= maxLocatorAttempts; attempt++ {
		locator, err := s.generateLocator()
		if err != nil {
			return fmt.Errorf("failed to generate locator: %w", err)
		}
		link.Locator = locator

		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrLocatorExists) {
			return err
		}

		s.metrics.LocatorCollision()
		s.logger.Warn("Locator collision, regenerating", zap.Int("attempt", attempt))
	}

	s.metrics.LocatorExhausted()
	s.logger.Error("Locator attempts exhausted", zap.Int("attempts", maxLocatorAttempts))
	return ErrResourceExhausted
}

// Resolve проверяет ссылку и отдаёт ресурс в форме, заданной политикой
func (s *shareService) Resolve(ctx context.Context, locator string, passwordAttempt *string) (*models.SharedResource, error) {
	link, err := s.authorize(ctx, locator, passwordAttempt)
	if err != nil {
		return nil, err
	}

	shared := &models.SharedResource{
		ResourceType: link.Resource.Kind,
		Locator:      link.Locator,
		ViewOnly:     link.Policy.ViewOnly,
		AllowCopy:    link.Policy.AllowCopy,
	}

	switch link.Resource.Kind {
	case models.ResourceQuiz:
		quiz, err := s.resourceRepo.GetQuiz(ctx, link.Resource.ID)
		if err != nil {
			return nil, s.resourceError(link, err)
		}
		shared.Title, shared.SharedQuiz = shapeQuiz(quiz, link.Policy)
	case models.ResourceMaterial:
		material, err := s.resourceRepo.GetMaterial(ctx, link.Resource.ID)
		if err != nil {
			return nil, s.resourceError(link, err)
		}
		shared.Title, shared.SharedMaterial = shapeMaterial(material, link.Policy)
	case models.ResourceOCRResult:
		result, err := s.resourceRepo.GetOCRResult(ctx, link.Resource.ID)
		if err != nil {
			return nil, s.resourceError(link, err)
		}
		shared.Title, shared.SharedOCRResult = shapeOCRResult(result, link.Policy)
	default:
		return nil, fmt.Errorf("unknown resource type %q for locator %s", link.Resource.Kind, link.Locator)
	}

	s.metrics.Resolution(metrics.OutcomeOK)
	return shared, nil
}

// Submit проверяет ответы на опубликованный тест
func (s *shareService) Submit(ctx context.Context, input *models.SubmitInput) (*models.SubmissionResult, error) {
	link, err := s.authorize(ctx, input.Locator, input.PasswordAttempt)
	if err != nil {
		return nil, err
	}

	if link.Resource.Kind != models.ResourceQuiz {
		return nil, newValidationError("resourceType", "only shared quizzes accept submissions")
	}

	quiz, err := s.resourceRepo.GetQuiz(ctx, link.Resource.ID)
	if err != nil {
		return nil, s.resourceError(link, err)
	}
	if len(quiz.Questions) == 0 {
		return nil, newValidationError("questions", "quiz has no questions")
	}

	result := scoreQuiz(quiz, link.Policy, normalizeStudentName(input.StudentName), input.Answers)

	event := &models.SubmissionEvent{
		Locator:     link.Locator,
		OwnerID:     link.OwnerID,
		QuizID:      quiz.ID,
		StudentName: result.StudentName,
		Score:       result.Score,
		SubmittedAt: s.now(),
	}
	if s.submissions != nil {
		if err := s.submissions.RecordSubmission(ctx, event); err != nil {
			s.logger.Warn("Failed to enqueue submission", zap.String("locator", link.Locator), zap.Error(err))
		}
	}

	s.metrics.Resolution(metrics.OutcomeOK)
	return result, nil
}

// authorize шаги 1-3 разрешения: поиск, срок действия, пароль
func (s *shareService) authorize(ctx context.Context, locator string, passwordAttempt *string) (*models.ShareLink, error) {
	if !ValidLocator(locator) {
		s.metrics.Resolution(metrics.OutcomeNotFound)
		return nil, ErrNotFound
	}

	link, err := s.getLink(ctx, locator)
	if err != nil {
		if errors.Is(err, repository.ErrShareLinkNotFound) {
			s.metrics.Resolution(metrics.OutcomeNotFound)
			s.logger.Info("Unknown locator", zap.String("locator", locator))
			return nil, ErrNotFound
		}
		return nil, err
	}

	if link.Revoked() {
		s.metrics.Resolution(metrics.OutcomeRevoked)
		s.logger.Info("Revoked locator", zap.String("locator", locator))
		return nil, ErrNotFound
	}

	if link.ExpiredAt(s.now()) {
		s.metrics.Resolution(metrics.OutcomeExpired)
		s.logger.Info("Expired locator", zap.String("locator", locator))
		return nil, ErrForbidden
	}

	if link.Policy.HasPassword() {
		if err := s.checkPassword(ctx, link, passwordAttempt); err != nil {
			return nil, err
		}
	}

	return link, nil
}

// checkPassword сначала резервирует попытку в счётчике, затем сверяет пароль.
// Параллельные запросы получают разные значения INCR, поэтому bcrypt
// выполняется не больше MaxPasswordAttempts раз за окно.
func (s *shareService) checkPassword(ctx context.Context, link *models.ShareLink, passwordAttempt *string) error {
	attempt := 0
	if s.cfg.MaxPasswordAttempts > 0 {
		n, err := s.attemptRepo.RegisterAttempt(ctx, link.Locator, s.cfg.AttemptWindow)
		if err != nil {
			// Счётчик недоступен: пароль всё равно проверяется
			s.logger.Warn("Attempt counter unavailable", zap.String("locator", link.Locator), zap.Error(err))
		} else {
			attempt = n
		}
		if attempt > s.cfg.MaxPasswordAttempts {
			s.metrics.Resolution(metrics.OutcomeLocked)
			s.logger.Warn("Locator locked after failed password attempts",
				zap.String("locator", link.Locator),
				zap.Int("attempts", attempt),
			)
			return ErrForbidden
		}
	}

	// Отсутствующий и неверный пароль дают одинаковую ошибку; попытка уже учтена
	if passwordAttempt == nil || *passwordAttempt == "" ||
		!s.hasher.Matches(*link.Policy.PasswordHash, *passwordAttempt) {
		s.metrics.Resolution(metrics.OutcomeBadPassword)
		return ErrForbidden
	}

	if attempt > 0 {
		if err := s.attemptRepo.Reset(ctx, link.Locator); err != nil {
			s.logger.Warn("Failed to reset attempt counter", zap.String("locator", link.Locator), zap.Error(err))
		}
	}

	return nil
}

// Revoke отзывает ссылку владельца. Отзыв необратим.
func (s *shareService) Revoke(ctx context.Context, ownerID, locator string) error {
	if !ValidLocator(locator) {
		return ErrNotFound
	}

	if err := s.linkRepo.Revoke(ctx, locator, ownerID, s.now()); err != nil {
		if errors.Is(err, repository.ErrShareLinkNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.cacheRepo.Delete(ctx, locator); err != nil {
		s.logger.Warn("Failed to evict revoked link from cache", zap.String("locator", locator), zap.Error(err))
	}

	s.logger.Info("Share link revoked", zap.String("locator", locator))
	return nil
}

// ListShares ссылки владельца, новые первыми
func (s *shareService) ListShares(ctx context.Context, ownerID string) ([]models.ShareLinkSummary, error) {
	links, err := s.linkRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ShareLinkSummary, 0, len(links))
	for _, link := range links {
		summaries = append(summaries, models.ShareLinkSummary{
			Locator:      link.Locator,
			URL:          s.shareURL(link.Locator),
			ResourceType: link.Resource.Kind,
			ResourceID:   link.Resource.ID,
			ViewOnly:     link.Policy.ViewOnly,
			AllowCopy:    link.Policy.AllowCopy,
			HasPassword:  link.Policy.HasPassword(),
			ExpiresAt:    link.ExpiresAt,
			Revoked:      link.Revoked(),
			CreatedAt:    link.CreatedAt,
		})
	}

	return summaries, nil
}

// OwnedShare ссылка владельца; чужие ссылки неотличимы от несуществующих
func (s *shareService) OwnedShare(ctx context.Context, ownerID, locator string) (*models.ShareLink, error) {
	if !ValidLocator(locator) {
		return nil, ErrNotFound
	}

	link, err := s.linkRepo.GetByLocator(ctx, locator)
	if err != nil {
		if errors.Is(err, repository.ErrShareLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if link.OwnerID != ownerID {
		return nil, ErrNotFound
	}

	return link, nil
}

// getLink сначала из кэша, затем из БД
func (s *shareService) getLink(ctx context.Context, locator string) (*models.ShareLink, error) {
	link, err := s.cacheRepo.Get(ctx, locator)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Warn("Cache read failed", zap.String("locator", locator), zap.Error(err))
	}

	link, err = s.linkRepo.GetByLocator(ctx, locator)
	if err != nil {
		return nil, err
	}

	s.cacheLink(ctx, link)
	return link, nil
}

// cacheLink кэширует ссылку не дольше её срока действия
func (s *shareService) cacheLink(ctx context.Context, link *models.ShareLink) {
	if link.Revoked() {
		return
	}
	ttl := s.cfg.CacheTTL
	if link.ExpiresAt != nil {
		if untilExpiry := link.ExpiresAt.Sub(s.now()); untilExpiry < ttl {
			ttl = untilExpiry
		}
	}
	if ttl <= 0 {
		return
	}
	if err := s.cacheRepo.Set(ctx, link, ttl); err != nil {
		s.logger.Warn("Failed to cache share link", zap.String("locator", link.Locator), zap.Error(err))
	}
}

func (s *shareService) resourceOwner(ctx context.Context, kind models.ResourceKind, id string) (string, error) {
	switch kind {
	case models.ResourceQuiz:
		quiz, err := s.resourceRepo.GetQuiz(ctx, id)
		if err != nil {
			return "", err
		}
		return quiz.OwnerID, nil
	case models.ResourceMaterial:
		material, err := s.resourceRepo.GetMaterial(ctx, id)
		if err != nil {
			return "", err
		}
		return material.OwnerID, nil
	case models.ResourceOCRResult:
		result, err := s.resourceRepo.GetOCRResult(ctx, id)
		if err != nil {
			return "", err
		}
		return result.OwnerID, nil
	default:
		return "", fmt.Errorf("unknown resource type %q", kind)
	}
}

// resourceError ресурс удалён между чтением ссылки и ресурса
func (s *shareService) resourceError(link *models.ShareLink, err error) error {
	if errors.Is(err, repository.ErrResourceNotFound) {
		s.metrics.Resolution(metrics.OutcomeResourceMissing)
		s.logger.Warn("Shared resource no longer exists",
			zap.String("locator", link.Locator),
			zap.String("resource_type", string(link.Resource.Kind)),
			zap.String("resource_id", link.Resource.ID),
		)
		return ErrNotFound
	}
	return err
}

func (s *shareService) shareURL(locator string) string {
	return s.cfg.PublicBaseURL + "/#/shared/" + locator
}
