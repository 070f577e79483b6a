package domain

import "github.com/google/uuid"

// User is the slice of the profile this service needs: enough to authorize
// callers and render a counterpart in notifications.
type User struct {
	ID       uuid.UUID `json:"id"`
	Handle   string    `json:"handle"`
	FullName *string   `json:"full_name,omitempty"`
}
