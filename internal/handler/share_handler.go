package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SergeiKhy/edushare/internal/middleware"
	"github.com/SergeiKhy/edushare/internal/models"
	"github.com/SergeiKhy/edushare/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PasswordHeader заголовок для пароля ссылки; query ?password= тоже принимается
const PasswordHeader = middleware.SharePasswordHeader

const (
	defaultStatsDays = 7
	maxStatsDays     = 90
)

type ShareHandler struct {
	service     service.ShareService
	submissions service.SubmissionProcessor
	logger      *zap.Logger
}

func NewShareHandler(service service.ShareService, submissions service.SubmissionProcessor, logger *zap.Logger) *ShareHandler {
	return &ShareHandler{
		service:     service,
		submissions: submissions,
		logger:      logger,
	}
}

type CreateShareRequest struct {
	ResourceID   string     `json:"resourceId"`
	ResourceType string     `json:"resourceType"`
	ViewOnly     *bool      `json:"viewOnly,omitempty"`
	AllowCopy    bool       `json:"allowCopy"`
	Password     *string    `json:"password,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

type SubmitRequest struct {
	StudentName string            `json:"studentName"`
	Answers     map[string]string `json:"answers"`
	Password    *string           `json:"password,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// bindErrorResponse указывает поле, если тело разобралось частично.
// timeField поле запроса типа time.Time: ошибка разбора даты не несёт имени поля.
func bindErrorResponse(err error, timeField string) ErrorResponse {
	resp := ErrorResponse{
		Error:   "invalid_request",
		Message: "Request body must be a JSON object",
	}

	var typeErr *json.UnmarshalTypeError
	var timeErr *time.ParseError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		// answers.1 -> answers
		field, _, _ := strings.Cut(typeErr.Field, ".")
		resp.Field = field
		resp.Message = "Field " + field + " has invalid type"
	case timeField != "" && errors.As(err, &timeErr):
		resp.Field = timeField
		resp.Message = "Field " + timeField + " must be an RFC 3339 timestamp"
	}

	return resp
}

// CreateShare godoc
// @Summary Create a public share link
// @Description Issue a share link for a quiz, material or OCR result owned by the caller
// @Tags share
// @Accept json
// @Produce json
// @Param request body CreateShareRequest true "Share link request"
// @Success 201 {object} models.IssuedShare
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/share/create [post]
func (h *ShareHandler) CreateShare(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
		return
	}

	var req CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, bindErrorResponse(err, "expiresAt"))
		return
	}

	// По умолчанию ссылка только для просмотра
	viewOnly := true
	if req.ViewOnly != nil {
		viewOnly = *req.ViewOnly
	}

	issued, err := h.service.CreateShare(c.Request.Context(), &models.CreateShareInput{
		OwnerID:      ownerID,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		ViewOnly:     viewOnly,
		AllowCopy:    req.AllowCopy,
		Password:     req.Password,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		h.writeError(c, err, "Failed to create share link")
		return
	}

	c.JSON(http.StatusCreated, issued)
}

// GetShared godoc
// @Summary Open a shared resource
// @Description Resolve a public locator and return the resource shaped by its share policy
// @Tags shared
// @Produce json
// @Param locator path string true "Share locator"
// @Param password query string false "Share password"
// @Success 200 {object} models.SharedResource
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/shared/{locator} [get]
func (h *ShareHandler) GetShared(c *gin.Context) {
	locator := c.Param("locator")

	shared, err := h.service.Resolve(c.Request.Context(), locator, passwordAttempt(c, nil))
	if err != nil {
		h.writeError(c, err, "Failed to open shared resource")
		return
	}

	c.JSON(http.StatusOK, shared)
}

// SubmitShared godoc
// @Summary Submit answers to a shared quiz
// @Tags shared
// @Accept json
// @Produce json
// @Param locator path string true "Share locator"
// @Param request body SubmitRequest true "Answers"
// @Success 200 {object} models.SubmissionResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/shared/{locator}/submit [post]
func (h *ShareHandler) SubmitShared(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindErrorResponse(err, ""))
		return
	}

	result, err := h.service.Submit(c.Request.Context(), &models.SubmitInput{
		Locator:         c.Param("locator"),
		PasswordAttempt: passwordAttempt(c, req.Password),
		StudentName:     req.StudentName,
		Answers:         req.Answers,
	})
	if err != nil {
		h.writeError(c, err, "Failed to submit answers")
		return
	}

	c.JSON(http.StatusOK, result)
}

// RevokeShare godoc
// @Summary Revoke a share link
// @Tags share
// @Produce json
// @Param locator path string true "Share locator"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/share/{locator} [delete]
func (h *ShareHandler) RevokeShare(c *gin.Context) {
	ownerID, _ := middleware.GetOwnerIDFromContext(c)
	locator := c.Param("locator")

	if err := h.service.Revoke(c.Request.Context(), ownerID, locator); err != nil {
		h.writeError(c, err, "Failed to revoke share link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Share link revoked"})
}

// ListShares godoc
// @Summary List own share links
// @Tags share
// @Produce json
// @Success 200 {array} models.ShareLinkSummary
// @Router /api/v1/share [get]
func (h *ShareHandler) ListShares(c *gin.Context) {
	ownerID, _ := middleware.GetOwnerIDFromContext(c)

	links, err := h.service.ListShares(c.Request.Context(), ownerID)
	if err != nil {
		h.writeError(c, err, "Failed to list share links")
		return
	}

	c.JSON(http.StatusOK, links)
}

// GetStats godoc
// @Summary Get submission statistics for a shared quiz
// @Tags share
// @Produce json
// @Param locator path string true "Share locator"
// @Success 200 {object} models.SubmissionStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/share/{locator}/stats [get]
func (h *ShareHandler) GetStats(c *gin.Context) {
	link, ok := h.ownedShare(c)
	if !ok {
		return
	}

	stats, err := h.submissions.GetStats(c.Request.Context(), link.Locator)
	if err != nil {
		h.writeError(c, err, "Failed to get stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetDailyStats godoc
// @Summary Get daily submission counts
// @Tags share
// @Produce json
// @Param locator path string true "Share locator"
// @Param days query int false "Number of days" default(7)
// @Success 200 {array} models.DailySubmissionStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/share/{locator}/stats/daily [get]
func (h *ShareHandler) GetDailyStats(c *gin.Context) {
	days := defaultStatsDays
	if d := c.Query("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > maxStatsDays {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "days must be between 1 and 90",
				Field:   "days",
			})
			return
		}
		days = n
	}

	link, ok := h.ownedShare(c)
	if !ok {
		return
	}

	stats, err := h.submissions.GetDailyStats(c.Request.Context(), link.Locator, days)
	if err != nil {
		h.writeError(c, err, "Failed to get daily stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *ShareHandler) ownedShare(c *gin.Context) (*models.ShareLink, bool) {
	ownerID, _ := middleware.GetOwnerIDFromContext(c)

	link, err := h.service.OwnedShare(c.Request.Context(), ownerID, c.Param("locator"))
	if err != nil {
		h.writeError(c, err, "Failed to load share link")
		return nil, false
	}
	return link, true
}

// writeError переводит ошибки сервиса в HTTP ответ. Тексты 403 и 404
// одинаковы для всех причин.
func (h *ShareHandler) writeError(c *gin.Context, err error, internalMessage string) {
	if ve, ok := service.IsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: ve.Message,
			Field:   ve.Field,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Shared resource not found",
		})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Access denied",
		})
	case errors.Is(err, service.ErrResourceExhausted):
		h.logger.Error(internalMessage, zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "Could not allocate a share link, try again",
		})
	default:
		h.logger.Error(internalMessage, zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: internalMessage,
		})
	}
}

// passwordAttempt пароль из тела, заголовка или query, в этом порядке.
// Отсутствие пароля и пустая строка различаются: nil значит "не передан".
func passwordAttempt(c *gin.Context, fromBody *string) *string {
	if fromBody != nil {
		return fromBody
	}
	if values, ok := c.Request.Header[http.CanonicalHeaderKey(PasswordHeader)]; ok && len(values) > 0 {
		return &values[0]
	}
	if p, ok := c.GetQuery("password"); ok {
		return &p
	}
	return nil
}
