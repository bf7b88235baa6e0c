package router

import (
	_ "dashboard-auth/docs"
	"dashboard-auth/handler"
	"dashboard-auth/model"
	"dashboard-auth/service"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func NewRouter(authHandler *handler.AuthHandler, adminHandler *handler.AdminHandler, tokens *service.TokenService) http.Handler {
	mux := http.NewServeMux()

	requireAuth := handler.AuthMiddleware(tokens)
	requireAdmin := func(next http.Handler) http.Handler {
		return requireAuth(handler.RequireRole(model.RoleAdmin)(next))
	}

	// Public routes
	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	mux.Handle("POST /register", handler.ErrorHandlingMiddleware(authHandler.Register))
	mux.Handle("POST /login", handler.ErrorHandlingMiddleware(authHandler.Login))
	mux.Handle("POST /refresh-token", handler.ErrorHandlingMiddleware(authHandler.RefreshToken))
	mux.Handle("POST /retrieve", handler.ErrorHandlingMiddleware(authHandler.Retrieve))
	mux.Handle("POST /reset", handler.ErrorHandlingMiddleware(authHandler.ResetPassword))

	// Routes behind a valid access token
	mux.Handle("POST /logout", requireAuth(handler.ErrorHandlingMiddleware(authHandler.Logout)))
	mux.Handle("GET /me", requireAuth(handler.ErrorHandlingMiddleware(authHandler.Me)))

	// Admin routes
	mux.Handle("GET /admin/users/{userId}/sessions", requireAdmin(handler.ErrorHandlingMiddleware(adminHandler.ListUserSessions)))
	mux.Handle("POST /admin/users/{userId}/logout-all", requireAdmin(handler.ErrorHandlingMiddleware(adminHandler.LogoutAllForUser)))

	return handler.RequestLogger(mux)
}
