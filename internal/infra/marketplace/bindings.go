package marketplace

import "walletd/internal/domain/service"

// Interface bindings consumed by the Fx graph.

func AsAuthClient(c *Client) service.AuthClient { return c }

func AsListingClient(c *Client) service.ListingClient { return c }

func AsChannelClient(c *Client) service.ChannelClient { return c }

func AsCollectionClient(c *Client) service.CollectionClient { return c }

func AsTicketClient(c *Client) service.TicketClient { return c }

func AsNotificationClient(c *Client) service.NotificationClient { return c }
