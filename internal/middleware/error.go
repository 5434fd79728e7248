package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ReplyUnexpectedFault is spoken when an unhandled fault escapes a handler.
// The voice platform always needs something to say, so even a panic ends in a
// well-formed spoken reply.
const ReplyUnexpectedFault = "I'm feeling a little tired. Let's talk again later."

// SpokenErrorResponse is the reply body for recovered faults
type SpokenErrorResponse struct {
	Speech     string `json:"speech"`
	EndSession bool   `json:"should_end_session"`
}

// Recovery creates the last-resort catch-all middleware: any panic is logged
// server-side and converted into a generic apologetic spoken reply.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic_recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)
					respondSpokenError(w, logger)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func respondSpokenError(w http.ResponseWriter, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := SpokenErrorResponse{
		Speech:     ReplyUnexpectedFault,
		EndSession: true,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed_to_encode_error_response", zap.Error(err))
	}
}
