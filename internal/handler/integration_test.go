package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/SergeiKhy/edushare/internal/config"
	"github.com/SergeiKhy/edushare/internal/handler"
	"github.com/SergeiKhy/edushare/internal/metrics"
	"github.com/SergeiKhy/edushare/internal/middleware"
	"github.com/SergeiKhy/edushare/internal/repository"
	"github.com/SergeiKhy/edushare/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// setupIntegrationEnv собирает приложение целиком на PostgreSQL и Redis в контейнерах
func setupIntegrationEnv(t *testing.T) *apiEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}
	gin.SetMode(gin.TestMode)
	ctx := t.Context()

	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("edushare"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { dbContainer.Terminate(context.Background()) })

	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { redisContainer.Terminate(context.Background()) })

	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "edushare",
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	redisDB, err := repository.NewRedisClient(config.RedisConfig{Host: redisHost, Port: redisPort.Port()})
	require.NoError(t, err)
	t.Cleanup(func() { redisDB.Close() })

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO materials (id, user_id, title, summary) VALUES ('m-1', 'teacher-1', 'Механика', 'Законы Ньютона');
		INSERT INTO quizzes (id, material_id, title, questions) VALUES ('q-1', 'm-1', 'Ньютон',
			'[{"id": "1", "type": "mcq", "text": "F = ?", "options": ["ma", "mv"], "correctAnswer": "ma", "explanation": "Второй закон"}]');
	`)
	require.NoError(t, err)

	m := metrics.New()
	processor := service.NewSubmissionProcessor(repository.NewSubmissionRepository(db), m, zap.NewNop())
	processor.Start()

	svc := service.NewShareService(
		repository.NewShareLinkRepository(db),
		repository.NewResourceRepository(db),
		repository.NewCacheRepository(redisDB),
		repository.NewAttemptRepository(redisDB),
		service.NewBcryptHasher(bcrypt.MinCost),
		processor,
		m,
		zap.NewNop(),
		service.ShareServiceConfig{
			PublicBaseURL:       "https://edu.example.com",
			MaxPasswordAttempts: 3,
			AttemptWindow:       time.Minute,
			CacheTTL:            time.Minute,
		},
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 100, // Высокий лимит для тестов
		BurstSize:         200,
	})
	t.Cleanup(rateLimiter.Stop)

	return &apiEnv{
		router: handler.NewRouter(handler.RouterDeps{
			ShareService: svc,
			Submissions:  processor,
			RateLimiter:  rateLimiter,
			OwnerAuth:    middleware.NewOwnerAuth(middleware.OwnerAuthConfig{Secret: jwtSecret}).Middleware(),
			Metrics:      m,
			Checks:       map[string]handler.Pinger{"postgres": db, "redis": redisDB},
			Logger:       zap.NewNop(),
		}),
		processor: processor,
	}
}

// TestIntegration_ShareFlow выдача, открытие, блокировка пароля, ответы и отзыв
func TestIntegration_ShareFlow(t *testing.T) {
	env := setupIntegrationEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	open := env.create(t, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz", "viewOnly": false})
	protected := env.create(t, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz", "password": "pw"})

	t.Run("открытие без пароля", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/shared/"+open.Locator, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "Ньютон", body["title"])
		assert.Contains(t, w.Body.String(), `"correctAnswer":"ma"`)

		// Второе чтение идёт из кэша и даёт тот же ответ
		again := env.do(t, http.MethodGet, "/api/v1/shared/"+open.Locator, "", nil)
		assert.JSONEq(t, w.Body.String(), again.Body.String())
	})

	t.Run("блокировка после неудачных попыток", func(t *testing.T) {
		path := "/api/v1/shared/" + protected.Locator
		for i := 0; i < 3; i++ {
			w := env.do(t, http.MethodGet, path+"?password=wrong", "", nil)
			assert.Equal(t, http.StatusForbidden, w.Code)
		}
		// Даже верный пароль отклоняется до конца окна
		w := env.do(t, http.MethodGet, path+"?password=pw", "", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("ответы и статистика", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/shared/"+open.Locator+"/submit", "", map[string]interface{}{
			"studentName": "Оля",
			"answers":     map[string]string{"1": "MA"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 100, decode(t, w)["score"])

		env.processor.Stop()

		w = env.do(t, http.MethodGet, "/api/v1/share/"+open.Locator+"/stats", ownerToken(t, "teacher-1"), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["totalSubmissions"])
	})

	t.Run("отзыв", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/api/v1/share/"+open.Locator, ownerToken(t, "teacher-1"), nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, "/api/v1/shared/"+open.Locator, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
