package entity

import "time"

// UserProfile is the backend-resident user record, fetched after a session
// snapshot exists. The controller treats it as a cache invalidated whenever
// the snapshot changes; an authenticated session with a nil profile is still
// authenticated.
type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatarUrl"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"createdAt"`
}
