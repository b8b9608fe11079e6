package model

import (
	"context"
)

// ContextManager attaches the authenticated identity to a request context.
type ContextManager interface {
	SetIdentity(ctx context.Context, identity Identity) context.Context
	GetIdentity(ctx context.Context) (Identity, bool)
}
