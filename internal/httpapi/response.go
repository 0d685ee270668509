package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"go.uber.org/zap"
)

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		observability.GetLogger(context.Background()).Error("failed to encode response", zap.Error(err))
	}
}

// WriteError maps err onto a status and error body. Server side failures are
// logged with the request's correlation id; client errors only at debug.
func WriteError(w http.ResponseWriter, r *http.Request, err error, development bool) {
	status, body := MapError(err, development)

	log := observability.GetLogger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("error_code", body.ErrorCode),
			zap.Error(err),
		)
	} else {
		log.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("error_code", body.ErrorCode),
			zap.Error(err),
		)
	}

	WriteJSON(w, status, body)
}
