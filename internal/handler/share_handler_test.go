package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SergeiKhy/edushare/internal/handler"
	"github.com/SergeiKhy/edushare/internal/metrics"
	"github.com/SergeiKhy/edushare/internal/middleware"
	"github.com/SergeiKhy/edushare/internal/models"
	"github.com/SergeiKhy/edushare/internal/service"
	"github.com/SergeiKhy/edushare/internal/service/mocks"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var jwtSecret = []byte("handler-test-secret")

type apiEnv struct {
	router      *gin.Engine
	links       *mocks.MockShareLinkRepository
	resources   *mocks.MockResourceRepository
	submissions *mocks.MockSubmissionRepository
	processor   service.SubmissionProcessor
	now         time.Time
}

func setupRouter(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &apiEnv{
		links:       mocks.NewMockShareLinkRepository(),
		resources:   mocks.NewMockResourceRepository(),
		submissions: mocks.NewMockSubmissionRepository(),
		now:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	env.resources.AddQuiz(&models.Quiz{
		ID:      "q-1",
		OwnerID: "teacher-1",
		Title:   "Фотосинтез",
		Questions: []models.Question{
			{ID: "1", Type: "mcq", Text: "Где идёт фотосинтез?", Options: []string{"Хлоропласт", "Ядро"}, CorrectAnswer: "Хлоропласт", Explanation: "Пигменты"},
			{ID: "2", Type: "boolean", Text: "Нужен ли свет?", CorrectAnswer: "true"},
		},
	})
	env.resources.AddMaterial(&models.Material{
		ID:      "m-1",
		OwnerID: "teacher-1",
		Title:   "Конспект",
		Summary: strPtr("кратко"),
		RawText: strPtr("полностью"),
	})

	m := metrics.New()
	env.processor = service.NewSubmissionProcessor(env.submissions, m, zap.NewNop())
	env.processor.Start()

	svc := service.NewShareService(
		env.links,
		env.resources,
		mocks.NewMockCacheRepository(),
		mocks.NewMockAttemptRepository(),
		service.NewBcryptHasher(bcrypt.MinCost),
		env.processor,
		m,
		zap.NewNop(),
		service.ShareServiceConfig{
			PublicBaseURL:       "https://edu.example.com",
			MaxPasswordAttempts: 3,
			AttemptWindow:       15 * time.Minute,
			CacheTTL:            time.Hour,
		},
		service.WithClock(func() time.Time { return env.now }),
	)

	env.router = handler.NewRouter(handler.RouterDeps{
		ShareService: svc,
		Submissions:  env.processor,
		OwnerAuth:    middleware.NewOwnerAuth(middleware.OwnerAuthConfig{Secret: jwtSecret}).Middleware(),
		Metrics:      m,
		Logger:       zap.NewNop(),
	})
	return env
}

func strPtr(s string) *string { return &s }

func ownerToken(t *testing.T, ownerID string) string {
	t.Helper()
	token, err := middleware.IssueToken(jwtSecret, middleware.OwnerClaims{
		Role: middleware.RoleTeacher,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	return token
}

func (env *apiEnv) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *apiEnv) create(t *testing.T, body map[string]interface{}) models.IssuedShare {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/share/create", ownerToken(t, "teacher-1"), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var issued models.IssuedShare
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	return issued
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// TestCreateShare_Success ссылка создаётся, URL указывает на фронтенд
func TestCreateShare_Success(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	issued := env.create(t, map[string]interface{}{
		"resourceId":   "q-1",
		"resourceType": "quiz",
	})

	assert.Len(t, issued.Locator, 8)
	assert.Equal(t, "https://edu.example.com/#/shared/"+issued.Locator, issued.URL)
	assert.Nil(t, issued.ExpiresAt)
}

// TestCreateShare_Errors коды ответа для ошибок выдачи
func TestCreateShare_Errors(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()
	token := ownerToken(t, "teacher-1")

	tests := []struct {
		name   string
		token  string
		body   interface{}
		status int
		field  string
	}{
		{"no token", "", map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz"}, http.StatusUnauthorized, ""},
		{"bad kind", token, map[string]interface{}{"resourceId": "q-1", "resourceType": "video"}, http.StatusBadRequest, "resourceType"},
		{"missing id", token, map[string]interface{}{"resourceType": "quiz"}, http.StatusBadRequest, "resourceId"},
		{"not a json object", token, []int{1, 2}, http.StatusBadRequest, ""},
		{"view only not bool", token, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz", "viewOnly": "yes"}, http.StatusBadRequest, "viewOnly"},
		{"resource id not string", token, map[string]interface{}{"resourceId": 42, "resourceType": "quiz"}, http.StatusBadRequest, "resourceId"},
		{"expiry not a timestamp", token, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz", "expiresAt": "tomorrow"}, http.StatusBadRequest, "expiresAt"},
		{"unknown resource", token, map[string]interface{}{"resourceId": "q-404", "resourceType": "quiz"}, http.StatusNotFound, ""},
		{"foreign resource", ownerToken(t, "teacher-2"), map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz"}, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/share/create", tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.field != "" {
				assert.Equal(t, tt.field, decode(t, w)["field"])
			}
		})
	}
	assert.Equal(t, 0, env.links.Count())
}

// TestGetShared_ViewOnlyQuiz публичный ответ без ключа ответов
func TestGetShared_ViewOnlyQuiz(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	issued := env.create(t, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz"})

	w := env.do(t, http.MethodGet, "/api/v1/shared/"+issued.Locator, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "quiz", body["resourceType"])
	assert.Equal(t, true, body["viewOnly"])
	assert.Equal(t, false, body["allowCopy"])
	assert.Equal(t, "Фотосинтез", body["title"])
	assert.NotContains(t, w.Body.String(), "correctAnswer")
	assert.NotContains(t, w.Body.String(), "password")
}

// TestGetShared_Material allow_copy открывает полный текст
func TestGetShared_Material(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	closed := env.create(t, map[string]interface{}{"resourceId": "m-1", "resourceType": "material"})
	open := env.create(t, map[string]interface{}{"resourceId": "m-1", "resourceType": "material", "allowCopy": true})

	w := env.do(t, http.MethodGet, "/api/v1/shared/"+closed.Locator, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode(t, w), "rawText")

	w = env.do(t, http.MethodGet, "/api/v1/shared/"+open.Locator, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "полностью", decode(t, w)["rawText"])
}

// TestGetShared_Password пароль через query или заголовок; ошибки неотличимы
func TestGetShared_Password(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	issued := env.create(t, map[string]interface{}{
		"resourceId":   "q-1",
		"resourceType": "quiz",
		"password":     "s3cret",
	})
	path := "/api/v1/shared/" + issued.Locator

	missing := env.do(t, http.MethodGet, path, "", nil)
	wrong := env.do(t, http.MethodGet, path+"?password=nope", "", nil)
	assert.Equal(t, http.StatusForbidden, missing.Code)
	assert.Equal(t, http.StatusForbidden, wrong.Code)
	assert.Equal(t, missing.Body.String(), wrong.Body.String())

	w := env.do(t, http.MethodGet, path+"?password=s3cret", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, path, "", nil, handler.PasswordHeader, "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestGetShared_Expired истёкшая ссылка даёт тот же 403, что и неверный пароль
func TestGetShared_Expired(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	expiresAt := env.now.Add(time.Hour)
	issued := env.create(t, map[string]interface{}{
		"resourceId":   "q-1",
		"resourceType": "quiz",
		"expiresAt":    expiresAt,
	})
	require.NotNil(t, issued.ExpiresAt)

	protected := env.create(t, map[string]interface{}{
		"resourceId":   "q-1",
		"resourceType": "quiz",
		"password":     "pw",
	})
	badPassword := env.do(t, http.MethodGet, "/api/v1/shared/"+protected.Locator+"?password=x", "", nil)

	env.now = expiresAt
	w := env.do(t, http.MethodGet, "/api/v1/shared/"+issued.Locator, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, badPassword.Body.String(), w.Body.String())
}

// TestGetShared_NotFound неизвестный и некорректный локатор дают один ответ
func TestGetShared_NotFound(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	unknown := env.do(t, http.MethodGet, "/api/v1/shared/ZZZZZZZZ", "", nil)
	malformed := env.do(t, http.MethodGet, "/api/v1/shared/bad!", "", nil)

	assert.Equal(t, http.StatusNotFound, unknown.Code)
	assert.Equal(t, http.StatusNotFound, malformed.Code)
	assert.Equal(t, unknown.Body.String(), malformed.Body.String())
}

// TestGetShared_DeletedResource удалённый ресурс даёт 404
func TestGetShared_DeletedResource(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	issued := env.create(t, map[string]interface{}{"resourceId": "m-1", "resourceType": "material"})
	env.resources.Remove("m-1")

	w := env.do(t, http.MethodGet, "/api/v1/shared/"+issued.Locator, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestRevokeShare владелец отзывает ссылку, чужой владелец получает 404
func TestRevokeShare(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	issued := env.create(t, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz"})
	path := "/api/v1/share/" + issued.Locator

	w := env.do(t, http.MethodDelete, path, ownerToken(t, "teacher-2"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, path, ownerToken(t, "teacher-1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/shared/"+issued.Locator, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, path, ownerToken(t, "teacher-1"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestListShares список не раскрывает хэш пароля
func TestListShares(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	env.create(t, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz", "password": "pw"})
	env.create(t, map[string]interface{}{"resourceId": "m-1", "resourceType": "material"})

	w := env.do(t, http.MethodGet, "/api/v1/share", ownerToken(t, "teacher-1"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []models.ShareLinkSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, models.ResourceMaterial, list[0].ResourceType)
	assert.True(t, list[1].HasPassword)
	assert.NotContains(t, w.Body.String(), "$2a$")

	w = env.do(t, http.MethodGet, "/api/v1/share", ownerToken(t, "teacher-2"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

// TestSubmitAndStats ответы проверяются, статистика видна только владельцу
func TestSubmitAndStats(t *testing.T) {
	env := setupRouter(t)

	issued := env.create(t, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz"})
	path := "/api/v1/shared/" + issued.Locator + "/submit"

	w := env.do(t, http.MethodPost, path, "", map[string]interface{}{
		"studentName": "  Аня ",
		"answers":     map[string]string{"1": "хлоропласт", "2": "false"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result models.SubmissionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "q-1", result.QuizID)
	assert.Equal(t, "Аня", result.StudentName)
	assert.Equal(t, 50, result.Score)
	assert.Equal(t, 1, result.Correct)
	assert.Equal(t, 2, result.Total)

	// Stop дописывает буфер
	env.processor.Stop()
	require.Len(t, env.submissions.Results(), 1)

	w = env.do(t, http.MethodGet, "/api/v1/share/"+issued.Locator+"/stats", ownerToken(t, "teacher-1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.SubmissionStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalSubmissions)
	assert.Equal(t, float64(50), stats.AverageScore)

	w = env.do(t, http.MethodGet, "/api/v1/share/"+issued.Locator+"/stats", ownerToken(t, "teacher-2"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/share/"+issued.Locator+"/stats/daily?days=30", ownerToken(t, "teacher-1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/share/"+issued.Locator+"/stats/daily?days=365", ownerToken(t, "teacher-1"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "days", decode(t, w)["field"])
}

// TestSubmit_ViewOnlyHidesCorrectAnswers разбор ответов не содержит ключа для view-only ссылки
func TestSubmit_ViewOnlyHidesCorrectAnswers(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	body := map[string]interface{}{"answers": map[string]string{"1": "ядро", "2": "true"}}

	viewOnly := env.create(t, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz", "viewOnly": true})
	w := env.do(t, http.MethodPost, "/api/v1/shared/"+viewOnly.Locator+"/submit", "", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	details := decode(t, w)["details"].([]interface{})
	require.Len(t, details, 2)
	for _, d := range details {
		_, present := d.(map[string]interface{})["correctAnswer"]
		assert.False(t, present)
	}

	editable := env.create(t, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz", "viewOnly": false})
	w = env.do(t, http.MethodPost, "/api/v1/shared/"+editable.Locator+"/submit", "", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	details = decode(t, w)["details"].([]interface{})
	require.Len(t, details, 2)
	assert.Equal(t, "Хлоропласт", details[0].(map[string]interface{})["correctAnswer"])
}

// TestSubmit_InvalidBody ошибка разбора тела указывает поле
func TestSubmit_InvalidBody(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	issued := env.create(t, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz"})
	path := "/api/v1/shared/" + issued.Locator + "/submit"

	w := env.do(t, http.MethodPost, path, "", map[string]interface{}{"answers": map[string]interface{}{"1": 5}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "answers", decode(t, w)["field"])

	w = env.do(t, http.MethodPost, path, "", map[string]interface{}{"studentName": []string{"a"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "studentName", decode(t, w)["field"])

	w = env.do(t, http.MethodPost, path, "", []int{1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, decode(t, w), "field")

	assert.Empty(t, env.submissions.Results())
}

// TestSubmit_NotQuiz отправка ответов на материал отклоняется
func TestSubmit_NotQuiz(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	issued := env.create(t, map[string]interface{}{"resourceId": "m-1", "resourceType": "material"})

	w := env.do(t, http.MethodPost, "/api/v1/shared/"+issued.Locator+"/submit", "", map[string]interface{}{
		"answers": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "resourceType", decode(t, w)["field"])
}

// TestSubmit_PasswordInBody пароль принимается из тела запроса
func TestSubmit_PasswordInBody(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()

	issued := env.create(t, map[string]interface{}{"resourceId": "q-1", "resourceType": "quiz", "password": "pw"})
	path := "/api/v1/shared/" + issued.Locator + "/submit"

	w := env.do(t, http.MethodPost, path, "", map[string]interface{}{"answers": map[string]string{"1": "Ядро"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, path, "", map[string]interface{}{"answers": map[string]string{"1": "Ядро"}, "password": "pw"})
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestCreateShare_StorageFailure ошибка хранилища даёт 500 без подробностей
func TestCreateShare_StorageFailure(t *testing.T) {
	env := setupRouter(t)
	defer env.processor.Stop()
	env.links.CreateErr = errors.New("connection reset")

	w := env.do(t, http.MethodPost, "/api/v1/share/create", ownerToken(t, "teacher-1"), map[string]interface{}{
		"resourceId":   "q-1",
		"resourceType": "quiz",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// TestHealthCheck статус зависит от доступности зависимостей
func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	up := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("refused") })

	router := gin.New()
	router.GET("/ok", handler.HealthCheck(map[string]handler.Pinger{"postgres": up, "redis": up}))
	router.GET("/degraded", handler.HealthCheck(map[string]handler.Pinger{"postgres": up, "redis": down}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","components":{"postgres":"up","redis":"up"}}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/degraded", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","components":{"postgres":"up","redis":"down"}}`, w.Body.String())
}
