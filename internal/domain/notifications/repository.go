package notifications

import (
	"context"
	"time"

	"lotkeeper/internal/core/id"
)

// ListFilter narrows a user's notification listing.
type ListFilter struct {
	Type       *Type
	UnreadOnly bool
	Limit      int
	Offset     int
}

// Repository persists notifications and per-user read marks.
type Repository interface {
	Create(ctx context.Context, n *Notification) error

	// ExistsSince reports whether a notification of type t with dedupKey was
	// created at or after since.
	ExistsSince(ctx context.Context, t Type, dedupKey string, since time.Time) (bool, error)

	// ListForRoles returns notifications addressed to any of roles with the
	// read mark of userID.
	ListForRoles(ctx context.Context, roles []string, userID string, filter ListFilter) ([]Notification, error)

	GetByID(ctx context.Context, notificationID id.ID) (*Notification, error)
	MarkRead(ctx context.Context, notificationID id.ID, userID string, at time.Time) error
}
