package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/logger"
)

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn().Err(err).Msg("写出响应失败")
	}
}

// respondError 返回错误响应，非应用错误按内部错误处理
func respondError(w http.ResponseWriter, err error) {
	appErr := asAppError(err)
	body := map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("code", string(appErr.Code)).Msg("请求处理失败")
	}
	respondJSON(w, appErr.HTTPStatus, body)
}

func asAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return errors.Wrap(err, errors.CodeInternal, "内部错误")
}
