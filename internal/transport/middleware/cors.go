package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

const corsMaxAge = 300

// CORS answers preflight requests and echoes allow-listed origins. A "*" entry
// allows every origin.
func CORS(allowed []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", TraceHeader},
		ExposedHeaders: []string{TraceHeader},
		MaxAge:         corsMaxAge,
	})
}
