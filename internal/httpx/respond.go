// Package httpx has the JSON response helpers shared by the module handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/georgemunganga/sso-users/internal/common"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// MessageBody is returned by operations that only confirm an action.
type MessageBody struct {
	Message string `json:"message"`
}

func Respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind common.Kind) int {
	switch kind {
	case common.KindConflict:
		return http.StatusConflict
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindUnauthorized:
		return http.StatusUnauthorized
	case common.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a JSON error body. Internal causes are logged, never sent.
func Error(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := common.KindOf(err)
	if kind == common.KindInternal && log != nil {
		log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	Respond(w, StatusFor(kind), ErrorBody{Error: common.PublicMessage(err)})
}

// MaxBodyBytes caps every decoded request body.
const MaxBodyBytes = 1 << 20

// DecodeJSON reads at most MaxBodyBytes of the request body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return common.InvalidInput("Request body is required")
	}
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.InvalidInput("Request body too large")
		}
		return common.InvalidInput("Malformed JSON body")
	}
	return nil
}
