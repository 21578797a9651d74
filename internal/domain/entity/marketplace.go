package entity

import (
	"time"

	"github.com/google/uuid"
)

// The marketplace resource entities below are consumed read-only by the
// control surface; the session core never depends on them.

// Listing is a marketplace item offered by a seller.
type Listing struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       string    `json:"price"` // decimal string, denominated in the chain's native token
	SellerID    string    `json:"sellerId"`
	ChannelID   uuid.UUID `json:"channelId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Channel groups listings by topic.
type Channel struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Slug  string    `json:"slug"`
	Count int       `json:"count"`
}

// Collection is a curated set of listings.
type Collection struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ticket is a support ticket raised by the current user.
type Ticket struct {
	ID        uuid.UUID `json:"id"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is a backend notification addressed to the current user.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
