package util

import (
	"campus_edu_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Error   string      `json:"error,omitempty"` // 机器可读错误码
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    http.StatusBadRequest,
		Error:   string(CodeInvalidInput),
		Message: message,
	})
}

func InternalServerError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, Response{
		Code:    http.StatusInternalServerError,
		Error:   string(CodeInternal),
		Message: "Internal server error",
	})
}

// Fail 将领域错误翻译为 HTTP 响应：错误码 + 可读信息
func Fail(c *gin.Context, err error) {
	var de *DomainError
	if !errors.As(err, &de) {
		logger.Log.Error("unexpected service error", zap.Error(err))
		InternalServerError(c)
		return
	}

	status := statusOf(de.Code)
	if status == http.StatusInternalServerError {
		logger.Log.Error("internal domain error", zap.Error(err))
	}
	c.JSON(status, Response{
		Code:    status,
		Error:   string(de.Code),
		Message: de.Message,
	})
}

func statusOf(code ErrorCode) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeItemNotFound, CodeGradebookNotFound:
		return http.StatusNotFound
	case CodeInvalidState:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
