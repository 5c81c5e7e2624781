package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-sod/weld/internal/logging"
	"github.com/go-sod/weld/pkg/geom"
)

func DecodeErr(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		syntaxErr      *json.SyntaxError
		unmarshalError *json.UnmarshalTypeError
		maxBytesErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &syntaxErr):
		RespBadRequest(ctx, w, `{"error": "malformed json at position %v"}`, syntaxErr.Offset)
	case errors.Is(err, io.ErrUnexpectedEOF):
		RespBadRequest(ctx, w, `{"error": "malformed json"}`)
	case errors.As(err, &unmarshalError):
		RespBadRequest(ctx, w, `{"error": "invalid value %v at position %v"}`, unmarshalError.Field, unmarshalError.Offset)
	case errors.Is(err, geom.ErrDimNotEqual):
		RespBadRequest(ctx, w, `{"error": "%v"}`, err)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		RespBadRequest(ctx, w, `{"error": "unknown field %s"}`, fieldName)
	case errors.Is(err, io.EOF):
		RespBadRequest(ctx, w, `{"error": "body must not be empty"}`)
	case errors.As(err, &maxBytesErr):
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	default:
		RespInternalError(ctx, w, `{"error": "failed to decode json %v"}`, err)
	}
}

// CheckJSONRequest writes an error response and returns false unless r is a
// request with the given method and a JSON body.
func CheckJSONRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, method string) bool {
	logger := logging.FromContext(ctx)
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		logger.Debugf(`{"error": "method %v is not allowed"}`, r.Method)
		_, _ = fmt.Fprintf(w, `{"error": "method %v is not allowed"}`, r.Method)
		return false
	}
	if t := r.Header.Get("content-type"); len(t) < 16 || t[:16] != "application/json" {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		logger.Debugf(`{"error": "%v"}`, "content-type is not application/json")
		_, _ = fmt.Fprintf(w, `{"error": "%v"}`, "content-type is not application/json")
		return false
	}
	return true
}

func RespJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	bytes, err := json.Marshal(v)
	if err != nil {
		RespInternalError(ctx, w, `{"error": "failed to encode output json %v"}`, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "%s", bytes)
}

type errResponse struct {
	Error string `json:"error"`
}

// RespErrorJSON encodes err as {"error": "..."}.
func RespErrorJSON(ctx context.Context, w http.ResponseWriter, status int, err error) {
	logging.FromContext(ctx).Debug(err)
	RespJSON(ctx, w, status, errResponse{Error: err.Error()})
}

func RespBadRequest(ctx context.Context, w http.ResponseWriter, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logging.FromContext(ctx).Debug(msg)
	http.Error(w, msg, http.StatusBadRequest)
}

func RespError(ctx context.Context, w http.ResponseWriter, status int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logging.FromContext(ctx).Debug(msg)
	http.Error(w, msg, status)
}

func RespInternalError(ctx context.Context, w http.ResponseWriter, format string, args ...interface{}) {
	logging.FromContext(ctx).Errorf(format, args...)
	http.Error(w, "Internal error", http.StatusInternalServerError)
}
