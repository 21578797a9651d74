package service

import (
	"context"

	"walletd/internal/domain/entity"
)

// LoginResult is the backend's answer to a successful login call.
type LoginResult struct {
	AccessToken string
	UserID      string // subject extracted from the token
}

// AuthClient is the marketplace authentication endpoint consumed by the
// session controller. Both calls carry fixed timeouts configured on the
// implementation; a timeout is indistinguishable from a network failure.
type AuthClient interface {
	// Login exchanges derived credentials for an access token.
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)

	// FetchProfile retrieves the user record the token was issued for.
	FetchProfile(ctx context.Context, accessToken, userID string) (*entity.UserProfile, error)
}

// The resource clients below are external collaborators of the session core:
// the control surface proxies them for authenticated consumers, the session
// controller never calls them.

// ListingClient reads marketplace listings.
type ListingClient interface {
	ListListings(ctx context.Context, accessToken string, page, limit int) ([]*entity.Listing, error)
	GetListing(ctx context.Context, accessToken string, id string) (*entity.Listing, error)
}

// ChannelClient reads marketplace channels.
type ChannelClient interface {
	ListChannels(ctx context.Context, accessToken string) ([]*entity.Channel, error)
}

// CollectionClient reads marketplace collections.
type CollectionClient interface {
	ListCollections(ctx context.Context, accessToken string, ownerID string) ([]*entity.Collection, error)
}

// TicketClient reads the current user's support tickets.
type TicketClient interface {
	ListTickets(ctx context.Context, accessToken string) ([]*entity.Ticket, error)
}

// NotificationClient reads the current user's notifications.
type NotificationClient interface {
	ListNotifications(ctx context.Context, accessToken string, unreadOnly bool) ([]*entity.Notification, error)
}
