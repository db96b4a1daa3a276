package util

import (
	"errors"
	"fmt"
)

// ErrorCode 对外暴露的机器可读错误码
type ErrorCode string

const (
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeItemNotFound      ErrorCode = "ITEM_NOT_FOUND"
	CodeGradebookNotFound ErrorCode = "GRADEBOOK_NOT_FOUND"
	CodeInvalidState      ErrorCode = "INVALID_STATE"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// DomainError 领域规则错误。所有业务失败在组件边界转换成它，
// 控制器据 Code 映射 HTTP 状态码，绝不向调用方抛异常。
type DomainError struct {
	Code    ErrorCode
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func InvalidInput(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func ItemNotFound(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeItemNotFound, Message: fmt.Sprintf(format, args...)}
}

func GradebookNotFound(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeGradebookNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func Internal(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// CodeOf 取出错误码；非领域错误一律视为 INTERNAL_ERROR
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsCode 判断错误是否携带指定错误码
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
