package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var corsHandler = cors.Handler(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	},
	AllowedHeaders:   []string{"*"},
	AllowCredentials: false,
	MaxAge:           600,
})

// CORS allows any origin, method and header, without credentials.
func CORS(next http.Handler) http.Handler {
	return corsHandler(next)
}
