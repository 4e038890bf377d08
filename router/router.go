package router

import (
	"go-auth-api/handler"
	"go-auth-api/model"
	"net/http"

	_ "go-auth-api/docs"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Dependencies groups what the HTTP surface is built from. Limiter may be
// nil, which disables rate limiting.
type Dependencies struct {
	AuthHandler   *handler.AuthHandler
	UserHandler   *handler.UserHandler
	Authenticator *handler.Authenticator
	Limiter       handler.IRateLimiter
}

func NewRouter(deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	limited := handler.RateLimit(deps.Limiter)
	protected := deps.Authenticator.Authenticate
	adminOnly := func(h http.Handler) http.Handler {
		return protected(handler.RequireRoles(model.RoleAdmin)(h))
	}

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Public auth routes
	mux.Handle("POST /api/auth/register", limited(handler.ErrorHandlingMiddleware(deps.AuthHandler.Register)))
	mux.Handle("POST /api/auth/login", limited(handler.ErrorHandlingMiddleware(deps.AuthHandler.Login)))
	mux.Handle("POST /api/auth/refresh-token", handler.ErrorHandlingMiddleware(deps.AuthHandler.RefreshToken))

	// Authenticated routes
	mux.Handle("GET /api/auth/profile", protected(handler.ErrorHandlingMiddleware(deps.AuthHandler.Profile)))
	mux.Handle("PUT /api/auth/profile", protected(handler.ErrorHandlingMiddleware(deps.AuthHandler.UpdateProfile)))
	mux.Handle("PUT /api/auth/change-password", protected(handler.ErrorHandlingMiddleware(deps.AuthHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", protected(handler.ErrorHandlingMiddleware(deps.AuthHandler.Logout)))

	// Admin routes
	mux.Handle("GET /api/users", adminOnly(handler.ErrorHandlingMiddleware(deps.UserHandler.ListUsers)))
	mux.Handle("DELETE /api/users/{userId}", adminOnly(handler.ErrorHandlingMiddleware(deps.UserHandler.DeleteUser)))
	mux.Handle("PUT /api/users/{userId}/role", adminOnly(handler.ErrorHandlingMiddleware(deps.UserHandler.UpdateUserRole)))
	mux.Handle("PUT /api/users/{userId}/status", adminOnly(handler.ErrorHandlingMiddleware(deps.UserHandler.UpdateUserStatus)))

	mux.HandleFunc("/", handler.NotFound)

	return handler.RequestLogger(mux)
}
