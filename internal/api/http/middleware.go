package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Behnamfe76/auth-service/internal/observability"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindDuplicateCredential, apperrors.KindLoginMismatch:
		return http.StatusBadRequest
	case apperrors.KindMissingCredential, apperrors.KindKeyResolutionFailed, apperrors.KindInvalidCredential:
		return http.StatusUnauthorized
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				status, body := render(err)
				if metrics != nil {
					metrics.RecordError(c.Path(), c.Method(), body["code"].(string))
				}
				if status >= http.StatusInternalServerError {
					logger.Error("request failed",
						zap.String("kind", apperrors.KindOf(err).String()),
						zap.String("path", c.Path()),
						zap.Error(err),
					)
				}
				c.Status(status)
				_ = c.JSON(fiber.Map{"error": body})
				err = nil
			}
		}()
		return c.Next()
	}
}

// render builds the status and error body. Server-side detail never reaches the client.
func render(err error) (int, fiber.Map) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fiber.Map{"code": fiberCode(fe.Code), "message": fe.Message}
	}

	domainErr := apperrors.ToDomainError(err)
	status := StatusFor(domainErr.Kind)
	body := fiber.Map{"code": domainErr.Code, "message": domainErr.Message}
	switch {
	case status == http.StatusUnauthorized:
		body["message"] = http.StatusText(http.StatusUnauthorized)
	case status >= http.StatusInternalServerError:
		body["code"] = "INTERNAL_ERROR"
		body["message"] = http.StatusText(http.StatusInternalServerError)
	case len(domainErr.Details) > 0:
		body["details"] = domainErr.Details
	}
	return status, body
}

func fiberCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "BAD_REQUEST"
	default:
		if status >= http.StatusInternalServerError {
			return "INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
