package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/service"
)

// HandleServiceError 将 Service 层的业务错误映射为 HTTP 状态码。
// 未识别的错误一律按内部错误处理并记录日志，不向客户端泄露细节。
func HandleServiceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrAuthenticationFailed) || errors.Is(err, service.ErrUnauthorized) {
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	} else if errors.Is(err, service.ErrForbidden) {
		ErrorResponse(c, http.StatusForbidden, err.Error())
	} else if errors.Is(err, service.ErrCanvasNotFound) || errors.Is(err, service.ErrUserNotFound) {
		ErrorResponse(c, http.StatusNotFound, err.Error())
	} else if errors.Is(err, service.ErrRegistrationFailed) {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	} else {
		// 记录内部错误便于排查
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
