package context

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

type identityKey struct{}

var _ model.ContextManager = (*Manager)(nil)

// Manager stores the authenticated identity on a request context.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// SetIdentity returns a copy of ctx carrying identity.
func (m *Manager) SetIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// GetIdentity reports the identity set by SetIdentity. A zero user ID counts as absent.
func (m *Manager) GetIdentity(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(model.Identity)
	if !ok || identity.UserID == uuid.Nil {
		return model.Identity{}, false
	}
	return identity, true
}
