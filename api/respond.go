package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/recommend"
)

// Response 统一的响应包装。
type Response struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Cached    bool      `json:"cached,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, resp *Response) {
	resp.Metadata.Timestamp = time.Now().UTC()
	resp.Metadata.RequestID = GetRequestID(r.Context())

	data, err := json.Marshal(resp)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("failed to write response")
	}
}

func respondOK(w http.ResponseWriter, r *http.Request, data any, cached bool) {
	respondJSON(w, r, http.StatusOK, &Response{
		Status:   "success",
		Data:     data,
		Metadata: Metadata{Cached: cached},
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, &Response{
		Status: "error",
		Error:  &APIError{Code: code, Message: message},
	})
}

// respondDomainError 按错误类型映射状态码：
// 画像不足 404，参数错误 400，依赖不可用 503，训练进行中 409，其余 500。
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	respondError(w, r, status, code, msg)
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, recommend.ErrTrainingInProgress):
		return http.StatusConflict, "TRAINING_IN_PROGRESS"
	case core.IsInsufficientProfile(err):
		return http.StatusNotFound, core.ErrorCodeInsufficientProfile
	case core.IsInvalidInput(err):
		return http.StatusBadRequest, core.ErrorCodeInvalidInput
	case core.IsUnavailable(err):
		return http.StatusServiceUnavailable, core.ErrorCodeUnavailable
	default:
		return http.StatusInternalServerError, core.ErrorCodeInternalError
	}
}
