package api

import (
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
)

// CORS allows the configured frontends to call the API with credentials
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(allowedOrigins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID", "Stripe-Signature"}),
		gorillahandlers.ExposedHeaders([]string{"X-Request-ID"}),
		gorillahandlers.AllowCredentials(),
	)
}
