package app

import "context"

// AdminSessions is the opaque authentication capability backing the admin
// surface. Sessions are bearer tokens with a TTL; nothing about results or
// campaigns depends on how they are stored.
type AdminSessions interface {
	Create(ctx context.Context) (string, error)
	Valid(ctx context.Context, token string) bool
	Revoke(ctx context.Context, token string)
}
