package marketplace

import (
	"context"
	"net/url"
	"strconv"

	"walletd/internal/domain/entity"
)

// Read-only resource accessors. The session controller never calls these;
// they exist for the control surface and other in-process consumers.

func (c *Client) ListListings(ctx context.Context, accessToken string, page, limit int) ([]*entity.Listing, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var listings []*entity.Listing
	if err := c.getJSON(ctx, accessToken, "/listings", query, &listings); err != nil {
		return nil, err
	}

	return listings, nil
}

func (c *Client) GetListing(ctx context.Context, accessToken string, id string) (*entity.Listing, error) {
	var listing entity.Listing
	if err := c.getJSON(ctx, accessToken, "/listings/"+url.PathEscape(id), nil, &listing); err != nil {
		return nil, err
	}

	return &listing, nil
}

func (c *Client) ListChannels(ctx context.Context, accessToken string) ([]*entity.Channel, error) {
	var channels []*entity.Channel
	if err := c.getJSON(ctx, accessToken, "/channels", nil, &channels); err != nil {
		return nil, err
	}

	return channels, nil
}

func (c *Client) ListCollections(ctx context.Context, accessToken string, ownerID string) ([]*entity.Collection, error) {
	query := url.Values{}
	if ownerID != "" {
		query.Set("owner", ownerID)
	}

	var collections []*entity.Collection
	if err := c.getJSON(ctx, accessToken, "/collections", query, &collections); err != nil {
		return nil, err
	}

	return collections, nil
}

func (c *Client) ListTickets(ctx context.Context, accessToken string) ([]*entity.Ticket, error) {
	var tickets []*entity.Ticket
	if err := c.getJSON(ctx, accessToken, "/tickets", nil, &tickets); err != nil {
		return nil, err
	}

	return tickets, nil
}

func (c *Client) ListNotifications(ctx context.Context, accessToken string, unreadOnly bool) ([]*entity.Notification, error) {
	query := url.Values{}
	if unreadOnly {
		query.Set("unread", "true")
	}

	var notifications []*entity.Notification
	if err := c.getJSON(ctx, accessToken, "/notifications", query, &notifications); err != nil {
		return nil, err
	}

	return notifications, nil
}
