// Package handler contains the HTTP handlers for the control surface.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"walletd/internal/delivery/http/response"
	"walletd/internal/domain/entity"
	"walletd/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// HealthCheck reports process liveness.
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// SessionHandler holds dependencies for session-related handlers.
type SessionHandler struct {
	session usecase.SessionUsecase
	logger  *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler, injected by Fx.
func NewSessionHandler(session usecase.SessionUsecase, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		session: session,
		logger:  logger,
	}
}

// ConnectInput is the request body for starting a wallet connection.
type ConnectInput struct {
	WalletType string `json:"walletType" validate:"required,oneof=injected walletconnect coinbase"`
}

// sessionView is the externally visible session state. The snapshot's JSON
// encoding excludes the access token.
type sessionView struct {
	State         entity.SessionState     `json:"state"`
	Session       *entity.SessionSnapshot `json:"session,omitempty"`
	LastErrorCode string                  `json:"lastErrorCode,omitempty"`
	At            time.Time               `json:"at"`
}

// GetSession returns the current session state for polling clients.
func (h *SessionHandler) GetSession(c echo.Context) error {
	snapshot, state := h.session.Current()

	return response.Success(c, http.StatusOK, sessionView{
		State:         state,
		Session:       snapshot,
		LastErrorCode: h.session.LastErrorCode(),
		At:            time.Now(),
	}, "")
}

// Connect starts an authentication attempt for the requested wallet type.
// The flow completes asynchronously; clients follow it via GET /session or
// the event stream.
func (h *SessionHandler) Connect(c echo.Context) error {
	var input ConnectInput
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid connect input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	if err := h.session.Connect(c.Request().Context(), entity.WalletType(input.WalletType)); err != nil {
		return errors.WithStack(err)
	}

	_, state := h.session.Current()

	return response.Success(c, http.StatusAccepted, map[string]any{"state": state}, "Connection started")
}

// Logout terminates the current session. Safe to call repeatedly.
func (h *SessionHandler) Logout(c echo.Context) error {
	if err := h.session.Logout(c.Request().Context()); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]any{"state": entity.StateLoggedOut}, "Logged out")
}

// GetProfile returns the cached marketplace profile of the session owner.
func (h *SessionHandler) GetProfile(c echo.Context) error {
	profile := h.session.Profile()
	if profile == nil {
		return response.NotFound(c, "PROFILE_NOT_AVAILABLE", "Profile has not been fetched")
	}

	return response.Success(c, http.StatusOK, profile, "")
}
