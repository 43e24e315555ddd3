package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"mwanga/app/chat"
	"mwanga/app/middleware"
	"mwanga/types"
)

// Deps are what the routes need.
type Deps struct {
	Service   *chat.Service
	Settings  types.ResolverSettings
	CookieTTL time.Duration
	Logger    *zap.Logger
}

// Mount registers the HTTP and websocket routes on app.
func Mount(app *fiber.App, d Deps) {
	var (
		checkHandler   = NewCheckHandler()
		configHandler  = NewConfigHandler(d.Settings)
		sessionHandler = NewSessionHandler(d.Service, d.CookieTTL, d.Logger)
		chatHandler    = NewChatHandler(d.Service)
		socketHandler  = NewSocketHandler(d.Service, d.Logger)
		check          = app.Group("/check")
		apiv1          = app.Group("/api/v1", middleware.SessionID())
		ws             = app.Group("/ws", middleware.RequireUpgrade(), middleware.SessionID())
	)

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Get("/config", configHandler.HandleGetConfig)
	apiv1.Post("/session", sessionHandler.HandleCreate)
	apiv1.Get("/session", sessionHandler.HandleGet)
	apiv1.Put("/session/document", sessionHandler.HandleReplaceDocument)
	apiv1.Delete("/session", sessionHandler.HandleDelete)
	apiv1.Post("/chat", chatHandler.HandleChat)

	ws.Get("/chat", socketHandler.HandleUpgrade, socketHandler.Handler())
}

// NewApp returns a fiber app with the error handler and body limit set and the routes mounted.
func NewApp(d Deps, bodyLimit int) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: NewErrorHandler(d.Logger),
		BodyLimit:    bodyLimit,
	})
	app.Use(middleware.RequestLogger(d.Logger))
	Mount(app, d)
	return app
}
