// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"walletd/internal/delivery/http/middleware"
	"walletd/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	SessionHandler    *handler.SessionHandler
	MarketHandler     *handler.MarketHandler
	SessionMiddleware *middleware.SessionMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	sessionHandler    *handler.SessionHandler
	marketHandler     *handler.MarketHandler
	sessionMiddleware *middleware.SessionMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		sessionHandler:    params.SessionHandler,
		marketHandler:     params.MarketHandler,
		sessionMiddleware: params.SessionMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Session lifecycle routes
	sessionGroup := e.Group("/session")
	{
		sessionGroup.GET("", r.sessionHandler.GetSession)
		sessionGroup.POST("/connect", r.sessionHandler.Connect)
		sessionGroup.POST("/logout", r.sessionHandler.Logout)
		sessionGroup.GET("/profile", r.sessionHandler.GetProfile)
	}

	// Marketplace proxies that require an authenticated session
	marketGroup := e.Group("/market")
	marketGroup.Use(r.sessionMiddleware.RequireSession)
	{
		marketGroup.GET("/listings", r.marketHandler.ListListings)
		marketGroup.GET("/listings/:id", r.marketHandler.GetListing)
		marketGroup.GET("/channels", r.marketHandler.ListChannels)
		marketGroup.GET("/collections", r.marketHandler.ListCollections)
		marketGroup.GET("/tickets", r.marketHandler.ListTickets)
		marketGroup.GET("/notifications", r.marketHandler.ListNotifications)
	}
}
