package service

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/edushare/internal/metrics"
	"github.com/SergeiKhy/edushare/internal/models"
	"github.com/SergeiKhy/edushare/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxRetries           = 3    // Максимальное количество попыток записи
	writeTimeout         = 5 * time.Second
	drainTimeout         = 5 * time.Second
)

// SubmissionProcessor асинхронное сохранение результатов опубликованных тестов
type SubmissionProcessor interface {
	SubmissionRecorder
	Start()
	Stop()
	GetStats(ctx context.Context, locator string) (*models.SubmissionStats, error)
	GetDailyStats(ctx context.Context, locator string, days int) ([]models.DailySubmissionStats, error)
}

// submissionProcessor реализация с использованием Worker Pool
type submissionProcessor struct {
	repo        repository.SubmissionRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
	events      chan *models.SubmissionEvent
	workerCount int
	retryDelay  time.Duration
	wg          sync.WaitGroup
	quit        chan struct{}
	stopOnce    sync.Once
}

// NewSubmissionProcessor создаёт новый экземпляр процессора
func NewSubmissionProcessor(
	repo repository.SubmissionRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) SubmissionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &submissionProcessor{
		repo:        repo,
		metrics:     m,
		logger:      logger,
		events:      make(chan *models.SubmissionEvent, defaultChannelBuffer),
		workerCount: defaultWorkerCount,
		retryDelay:  100 * time.Millisecond,
		quit:        make(chan struct{}),
	}
}

// Start запускает worker pool
func (p *submissionProcessor) Start() {
	p.logger.Info("Starting submission workers", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop останавливает воркеров после текущей записи (вместе с её повторами);
// то, что осталось в буфере, дописывается
func (p *submissionProcessor) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Stopping submission processor...")
		close(p.quit)
		p.wg.Wait()
		p.drain()
		p.logger.Info("Submission processor stopped")
	})
}

func (p *submissionProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Submission worker started", zap.Int("id", id))

	for {
		select {
		case <-p.quit:
			p.logger.Debug("Submission worker stopped", zap.Int("id", id))
			return

		case event, ok := <-p.events:
			if !ok {
				return
			}
			// Запись не привязана к остановке пула
			p.process(context.Background(), event)
		}
	}
}

func (p *submissionProcessor) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case event := <-p.events:
			p.process(ctx, event)
		default:
			return
		}
	}
}

// process сохраняет один результат с retry. parent ограничивает только дозапись
// буфера при остановке; каждая попытка получает свой таймаут.
func (p *submissionProcessor) process(parent context.Context, event *models.SubmissionEvent) {
	result := &models.StudentResult{
		ID:                uuid.NewString(),
		OwnerID:           event.OwnerID,
		StudentIdentifier: event.StudentName,
		QuizID:            event.QuizID,
		Locator:           event.Locator,
		Score:             event.Score,
		SubmittedAt:       event.SubmittedAt,
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = p.write(parent, result); err == nil {
			p.metrics.SubmissionRecorded()
			return
		}
		if i < maxRetries-1 {
			p.logger.Debug("Retrying submission write",
				zap.String("locator", event.Locator),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			select {
			case <-parent.Done():
			case <-time.After(time.Duration(i+1) * p.retryDelay):
			}
		}
	}

	p.metrics.SubmissionDropped()
	p.logger.Error("Failed to record submission after all retries",
		zap.String("locator", event.Locator),
		zap.Error(err),
	)
}

func (p *submissionProcessor) write(parent context.Context, result *models.StudentResult) error {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	return p.repo.RecordSubmission(ctx, result)
}

// RecordSubmission ставит результат в очередь, не блокируя запрос
func (p *submissionProcessor) RecordSubmission(ctx context.Context, event *models.SubmissionEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.events <- event:
		return nil
	default:
		p.metrics.SubmissionDropped()
		p.logger.Warn("Submission buffer full, result dropped",
			zap.String("locator", event.Locator),
		)
		return nil
	}
}

func (p *submissionProcessor) GetStats(ctx context.Context, locator string) (*models.SubmissionStats, error) {
	return p.repo.GetStats(ctx, locator)
}

func (p *submissionProcessor) GetDailyStats(ctx context.Context, locator string, days int) ([]models.DailySubmissionStats, error) {
	return p.repo.GetDailyStats(ctx, locator, days)
}
