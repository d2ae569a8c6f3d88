// Package errors 排班服务的错误码与应用错误
// 命令行与 HTTP 接口共用同一套错误码，HTTP 状态码由错误码决定
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeTimeout      Code = "TIMEOUT"
	CodeRateLimited  Code = "RATE_LIMITED"

	// 排班
	CodeInvariantViolation Code = "INVARIANT_VIOLATION" // 修复后排班仍不合规
	CodeInfeasibleInput    Code = "INFEASIBLE_INPUT"    // 必排活动超出区域每周容量
	CodeUnknownActivity    Code = "UNKNOWN_ACTIVITY"    // 偏好或目录引用了不存在的活动

	// 数据
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

// AppError 带错误码的应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 附加说明，如第一处冲突
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithField 附加结构化字段，随响应一起输出
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建应用错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: statusOf(code),
	}
}

// Wrap 以错误码包装底层错误
func Wrap(err error, code Code, message string) *AppError {
	e := New(code, message)
	e.Cause = err
	return e
}

func statusOf(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail, CodeUnknownActivity:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeInfeasibleInput, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Is 错误链中是否有指定错误码的应用错误
func Is(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// GetHTTPStatus 应用错误的 HTTP 状态码，其他错误为 500
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// InvalidInput 字段无效
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}

// NotFound 资源不存在
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' 不存在", resource, id))
}

// InvariantViolation 修复后仍有 count 处不变量被破坏，first 为第一处的说明
func InvariantViolation(count int, first string) *AppError {
	return New(CodeInvariantViolation, fmt.Sprintf("修复后仍有 %d 处不变量被破坏", count)).WithDetails(first)
}

// InfeasibleInput 输入在当前容量下不可行
func InfeasibleInput(reason string) *AppError {
	return New(CodeInfeasibleInput, reason)
}

// UnknownActivity 队伍偏好中的活动不在目录中
func UnknownActivity(troop, activity string) *AppError {
	return New(CodeUnknownActivity, fmt.Sprintf("队伍 %s 的偏好包含未知活动 '%s'", troop, activity))
}

// ValidationErrors 逐字段收集的校验错误
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ValidationError 单个字段的校验错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "验证失败"
	}
	return fmt.Sprintf("验证失败: %s - %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

// Add 记录一个字段错误
func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors 是否记录过错误
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError 转为 VALIDATION_FAILED，字段错误放入 Fields
func (ve *ValidationErrors) ToAppError() *AppError {
	err := New(CodeValidationFail, "验证失败")
	for _, e := range ve.Errors {
		err.WithField(e.Field, e.Message)
	}
	return err
}
