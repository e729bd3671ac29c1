package api

import (
	"log"
	"net/http"
	"time"

	"gemchat-backend/internal/config"
	"gemchat-backend/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler         *handlers.AuthHandler
	GenerateHandler     *handlers.GenerateHandler
	ConversationHandler *handlers.ConversationHandlers
	SettingsHandler     *handlers.SettingsHandlers
	UploadHandler       *handlers.UploadHandlers
	Config              *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		if deps.AuthHandler == nil {
			panic("AuthHandler dependency is nil in router setup")
		}
		r.Post("/signup", deps.AuthHandler.HandleSignup)
		r.Post("/login", deps.AuthHandler.HandleLogin)
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		if deps.GenerateHandler != nil {
			r.Post("/generate", deps.GenerateHandler.HandleGenerate)
		} else {
			log.Println("WARN: GenerateHandler dependency is nil, skipping /v1/generate route.")
		}

		if deps.ConversationHandler != nil {
			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", deps.ConversationHandler.HandleCreateConversation)
				r.Get("/", deps.ConversationHandler.HandleListConversations)
				r.Post("/messages", deps.ConversationHandler.HandleSendMessage)
				r.Get("/{conversationID}", deps.ConversationHandler.HandleGetConversation)
				r.Post("/{conversationID}/messages", deps.ConversationHandler.HandleSendMessage)
			})
		} else {
			log.Println("WARN: ConversationHandler dependency is nil, skipping /v1/conversations routes.")
		}

		if deps.SettingsHandler != nil {
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", deps.SettingsHandler.HandleGetSettings)
				r.Put("/", deps.SettingsHandler.HandleUpdateSettings)
			})
		} else {
			log.Println("WARN: SettingsHandler dependency is nil, skipping /v1/settings routes.")
		}

		if deps.UploadHandler != nil {
			r.Post("/uploads", deps.UploadHandler.HandleUpload)
		} else {
			log.Println("WARN: UploadHandler dependency is nil, skipping /v1/uploads route.")
		}
	})

	return r
}
