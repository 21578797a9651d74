package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"walletd/internal/delivery/http/middleware"
	"walletd/internal/delivery/http/response"
	"walletd/internal/domain/service"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// MarketHandler proxies marketplace reads on behalf of the local session.
// Every route sits behind RequireSession, which supplies the access token.
type MarketHandler struct {
	listings      service.ListingClient
	channels      service.ChannelClient
	collections   service.CollectionClient
	tickets       service.TicketClient
	notifications service.NotificationClient
	logger        *slog.Logger
}

// MarketHandlerParams holds dependencies for MarketHandler.
type MarketHandlerParams struct {
	fx.In

	Listings      service.ListingClient
	Channels      service.ChannelClient
	Collections   service.CollectionClient
	Tickets       service.TicketClient
	Notifications service.NotificationClient
	Logger        *slog.Logger
}

// NewMarketHandler is the constructor for MarketHandler, injected by Fx.
func NewMarketHandler(params MarketHandlerParams) *MarketHandler {
	return &MarketHandler{
		listings:      params.Listings,
		channels:      params.Channels,
		collections:   params.Collections,
		tickets:       params.Tickets,
		notifications: params.Notifications,
		logger:        params.Logger,
	}
}

func accessToken(c echo.Context) string {
	token, _ := c.Get(middleware.KeyAccessToken).(string)

	return token
}

// ListListings returns a page of marketplace listings.
func (h *MarketHandler) ListListings(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	listings, err := h.listings.ListListings(c.Request().Context(), accessToken(c), page, limit)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, listings, "")
}

// GetListing returns a single listing by ID.
func (h *MarketHandler) GetListing(c echo.Context) error {
	listing, err := h.listings.GetListing(c.Request().Context(), accessToken(c), c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, listing, "")
}

// ListChannels returns the marketplace channels.
func (h *MarketHandler) ListChannels(c echo.Context) error {
	channels, err := h.channels.ListChannels(c.Request().Context(), accessToken(c))
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, channels, "")
}

// ListCollections returns the session owner's collections.
func (h *MarketHandler) ListCollections(c echo.Context) error {
	ownerID, _ := c.Get("userID").(string)

	collections, err := h.collections.ListCollections(c.Request().Context(), accessToken(c), ownerID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, collections, "")
}

// ListTickets returns the session owner's support tickets.
func (h *MarketHandler) ListTickets(c echo.Context) error {
	tickets, err := h.tickets.ListTickets(c.Request().Context(), accessToken(c))
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, tickets, "")
}

// ListNotifications returns the session owner's notifications.
func (h *MarketHandler) ListNotifications(c echo.Context) error {
	unreadOnly, _ := strconv.ParseBool(c.QueryParam("unread"))

	notifications, err := h.notifications.ListNotifications(c.Request().Context(), accessToken(c), unreadOnly)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, notifications, "")
}
