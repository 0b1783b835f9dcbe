package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Rrens/apex-chat/internal/api/handler"
	customMiddleware "github.com/Rrens/apex-chat/internal/api/middleware"
	"github.com/Rrens/apex-chat/internal/config"
	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/Rrens/apex-chat/internal/ratelimit"
	"github.com/Rrens/apex-chat/internal/repository/memory"
	"github.com/Rrens/apex-chat/internal/repository/postgres"
	"github.com/Rrens/apex-chat/internal/repository/redis"
	"github.com/Rrens/apex-chat/internal/security"
	"github.com/Rrens/apex-chat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

const limiterIdleTTL = 30 * time.Minute

// Deps are the optional backing stores. Nil fields fall back to in-process implementations.
type Deps struct {
	DB        *postgres.DB
	Redis     *redis.Client
	Responder service.Responder
}

// Router is the backend HTTP handler along with the live socket endpoint it serves
type Router struct {
	http.Handler
	Sockets *handler.SocketHandler
}

// Shutdown closes live socket connections
func (rt *Router) Shutdown(ctx context.Context) error {
	return rt.Sockets.Shutdown(ctx)
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Deps) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize security components
	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Initialize repositories
	var (
		accounts domain.AccountRepository
		chats    domain.ChatRepository
		messages domain.ChatMessageRepository
	)
	ready := map[string]handler.Pinger{}
	if deps.DB != nil {
		accounts = postgres.NewAccountRepository(deps.DB.Pool)
		chats = postgres.NewChatRepository(deps.DB.Pool)
		messages = postgres.NewMessageRepository(deps.DB.Pool)
		ready["database"] = deps.DB
	} else {
		log.Warn().Msg("No database configured, chats are kept in memory")
		accounts = memory.NewAccountRepository()
		chats = memory.NewChatRepository()
		messages = memory.NewMessageRepository()
	}

	// Initialize rate limiter and token denylist. A zero rate disables limiting.
	var (
		limiter  service.RateLimiter
		denylist service.TokenDenylist
	)
	rpm, burst := cfg.Security.RateLimit.RequestsPerMinute, cfg.Security.RateLimit.Burst
	if deps.Redis != nil {
		if rpm > 0 {
			limiter = redis.NewRateLimiter(deps.Redis, rpm, burst)
		}
		denylist = redis.NewTokenDenylist(deps.Redis)
		ready["redis"] = deps.Redis
	} else {
		if rpm > 0 {
			limiter = ratelimit.New(rpm, burst, limiterIdleTTL)
		}
		denylist = memory.NewTokenDenylist()
	}

	responder := deps.Responder
	if responder == nil {
		responder = service.EchoResponder{Delay: cfg.Backend.ReplyDelay}
	}

	// Initialize services
	authService := service.NewAuthService(accounts, jwtManager, denylist)
	chatService := service.NewChatService(chats, messages, responder, limiter, cfg.Backend.HistoryLimit)

	// Auth middleware
	authMiddleware := customMiddleware.NewAuthMiddleware(authService, cfg.Auth.CookieName)
	limitCreate := func(next http.Handler) http.Handler { return next }
	if limiter != nil {
		limitCreate = customMiddleware.NewRateLimitMiddleware(limiter, "create:").Limit
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, cfg.Auth.CookieName, cfg.Auth.SecureCookie)
	chatHandler := handler.NewChatHandler(chatService)
	socketHandler := handler.NewSocketHandler(
		chatService,
		authMiddleware,
		cfg.Backend.PingInterval,
		cfg.Backend.PingTimeout,
		cfg.Server.AllowedOrigins,
	)

	// Health check
	r.Get("/health", handler.HealthCheck)
	r.Get("/ready", handler.ReadyCheck(ready))

	// Auth routes
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/logout", authHandler.Logout)
			r.Get("/user", authHandler.Me)
		})
	})

	// Chat routes
	r.Route("/api/chat", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/", chatHandler.List)
		r.With(limitCreate).Post("/", chatHandler.Create)
		r.Get("/{chatID}/messages", chatHandler.Messages)
	})

	// Live channel
	r.HandleFunc(cfg.Channel.Path, socketHandler.Serve)

	return &Router{Handler: r, Sockets: socketHandler}
}
