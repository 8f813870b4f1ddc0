// Package handler exposes the task board over HTTP and the STOMP channel over WebSocket.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/gurkanbulca/taskboard/internal/broker"
	"github.com/gurkanbulca/taskboard/internal/middleware"
	"github.com/gurkanbulca/taskboard/internal/service"
	"github.com/gurkanbulca/taskboard/internal/stomp"
)

// Config tunes the HTTP server
type Config struct {
	AppName        string
	CORSOrigins    string
	LoginRateLimit int // requests per minute per client on /api/auth, 0 disables
	QueueSize      int // outbound STOMP messages buffered per session
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// Dependencies are the services served by the HTTP API
type Dependencies struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Tasks         *service.TaskService
	Comments      *service.CommentService
	Activities    *service.ActivityService
	Notifications *service.NotificationService

	Authenticator *middleware.Authenticator
	Validator     *middleware.Validator
	Gate          *stomp.Gate
	Broker        *broker.Broker
	Security      *service.SecurityLogger
	Database      Pinger
	Logger        *slog.Logger
}

// Handler holds the HTTP and WebSocket handlers
type Handler struct {
	deps      Dependencies
	validator *middleware.Validator
	logger    *slog.Logger
	queueSize int
	// baseCtx is canceled on shutdown and ends every WebSocket session
	baseCtx context.Context
}

// NewApp builds the Fiber application with every route registered.
// WebSocket sessions end when ctx is canceled.
func NewApp(ctx context.Context, cfg Config, deps Dependencies) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Validator == nil {
		deps.Validator = middleware.NewValidator(nil, nil)
	}
	if cfg.AppName == "" {
		cfg.AppName = "taskboard"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}

	h := &Handler{
		deps:      deps,
		validator: deps.Validator,
		logger:    deps.Logger.With("component", "http"),
		queueSize: cfg.QueueSize,
		baseCtx:   ctx,
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(deps.Logger),
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(middleware.ClientInfo())
	app.Use(middleware.RequestLogger(deps.Logger))
	if deps.Authenticator != nil {
		app.Use(deps.Authenticator.Handler())
	}

	h.registerRoutes(app, cfg)
	return app
}

func (h *Handler) registerRoutes(app *fiber.App, cfg Config) {
	// Public probes
	app.Get("/health", h.Health)
	app.Get("/ws/info", h.WebSocketInfo)
	app.Get("/ws", h.upgrade, h.WebSocket())

	api := app.Group("/api")
	api.Get("/test/public", h.Public)

	authGroup := api.Group("/auth")
	if cfg.LoginRateLimit > 0 {
		authGroup.Use(limiter.New(limiter.Config{
			Max:        cfg.LoginRateLimit,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many authentication attempts")
			},
		}))
	}
	authGroup.Post("/register", h.Register)
	authGroup.Post("/login", h.Login)

	tasks := api.Group("/tasks")
	tasks.Get("/", h.ListTasks)
	tasks.Post("/", h.CreateTask)
	tasks.Get("/mine", h.MyTasks)
	tasks.Get("/due", h.DueTasks)
	tasks.Get("/stats", h.TaskStats)
	tasks.Get("/:id", h.GetTask)
	tasks.Put("/:id", h.UpdateTask)
	tasks.Delete("/:id", h.DeleteTask)

	users := api.Group("/users")
	users.Get("/", h.ListUsers)
	users.Get("/me", h.CurrentUser)

	comments := api.Group("/comments")
	comments.Post("/", h.CreateComment)
	comments.Get("/task/:taskId", h.ListComments)
	comments.Put("/:id", h.UpdateComment)
	comments.Delete("/:id", h.DeleteComment)

	activities := api.Group("/activities")
	activities.Post("/", h.CreateActivity)
	activities.Get("/task/:taskId", h.ListActivities)

	notifications := api.Group("/notifications")
	notifications.Get("/", h.ListNotifications)
	notifications.Post("/:id/read", h.MarkNotificationRead)
}
