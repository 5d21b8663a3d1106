package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Middleware rejects requests without a valid user with 401 when enabled.
// A disabled middleware passes requests through unchanged. An enabled
// middleware without a validator rejects every request.
func Middleware(enabled bool, validator Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				logger.Error("request rejected: no token validator configured", "method", r.Method, "path", r.URL.Path)
				unauthorized(w)
				return
			}
			user, err := validator.Validate(r.Context(), r)
			if err != nil || user == nil {
				logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": ErrUnauthorized.Error()})
}
