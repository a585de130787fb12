package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/service"
)

// envelope общий формат ответа
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Debug   string            `json:"debug,omitempty"`
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func respondCreated(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

// respondError переводит ошибку в статус и сообщение; 5xx логируются полностью
func (s *Server) respondError(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	body := envelope{Success: false, Message: publicMessage(err, status)}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		body.Errors = verr.Fields
	}

	if status >= http.StatusInternalServerError {
		logging.Error(c.Request.Context(), s.logger, "Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		if !s.cfg.IsProduction() {
			body.Debug = err.Error()
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// respondBindError ошибка разбора тела запроса
func respondBindError(c *gin.Context, err error) {
	body := envelope{Success: false, Message: "validation failed"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		body.Errors = formatValidationError(verrs)
	} else {
		body.Message = "invalid request body"
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

func formatValidationError(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if ns := fe.Namespace(); strings.Contains(ns, ".") {
			// items[0].productId без имени корневой структуры
			field = ns[strings.Index(ns, ".")+1:]
		}

		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "gte":
			out[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
		case "gt":
			out[field] = fmt.Sprintf("%s must be greater than %s", field, fe.Param())
		case "email":
			out[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "uuid":
			out[field] = fmt.Sprintf("%s must be a valid id", field)
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of %s", field, fe.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrPaymentNotVerified),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, notify.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, notify.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error, status int) string {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return "validation failed"
	case errors.Is(err, repository.ErrDuplicate):
		return "resource already exists"
	case errors.Is(err, payment.ErrInvalidSignature):
		return "invalid signature"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, payment.ErrInitializeFailed):
		return "payment initialization failed"
	}
	switch status {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusConflict:
		return err.Error()
	default:
		return "internal server error"
	}
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
			Success: false,
			Message: "validation failed",
			Errors:  map[string]string{param: "must be a valid id"},
		})
		return uuid.Nil, false
	}
	return id, true
}
