package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// SubjectFromToken extracts the user id the access token was issued for.
// The token is parsed without signature verification: walletd is a client of
// the marketplace backend and does not hold the signing key; the id is only
// used to address the follow-up profile fetch.
func SubjectFromToken(accessToken string) (string, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return "", errors.Wrap(err, "failed to parse access token")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		// Some backend versions issue the id under "id" instead of "sub".
		if id, ok := claims["id"].(string); ok && id != "" {
			return id, nil
		}

		return "", errors.New("access token carries no subject")
	}

	return subject, nil
}
