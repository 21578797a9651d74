package middleware

import (
	"walletd/internal/domain/entity"
	domainerrors "walletd/internal/domain/errors"
	"walletd/internal/usecase"

	"github.com/labstack/echo/v4"
)

// KeyAccessToken is the echo.Context key under which RequireSession stores
// the current access token for downstream handlers.
const KeyAccessToken = "accessToken"

// SessionMiddleware gates routes that need an authenticated wallet session.
type SessionMiddleware struct {
	session usecase.SessionUsecase
}

// NewSessionMiddleware is the constructor for SessionMiddleware.
func NewSessionMiddleware(session usecase.SessionUsecase) *SessionMiddleware {
	return &SessionMiddleware{session: session}
}

// RequireSession rejects the request unless a session is authenticated. The
// access token is placed on the context for marketplace proxy handlers; it is
// never echoed back in any response.
func (m *SessionMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		snapshot, state := m.session.Current()
		if state != entity.StateAuthenticated || snapshot == nil {
			return domainerrors.ErrNotAuthenticated
		}

		c.Set(KeyAccessToken, snapshot.AccessToken)
		c.Set("userID", snapshot.UserID)

		return next(c)
	}
}
