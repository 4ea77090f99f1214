// actor.go resolves an authenticated principal into an Actor: the user id,
// role, and organizational position used for a single authorization decision.
// Actors are built fresh per request and never cached beyond it, because role
// and organization can change between requests (including the forced promotion
// of the bootstrap identity below).
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/safesite-hq/safesite/internal/db/models"
)

// Actor is the resolved identity used for authorization decisions.
// Zero-value organization fields mean "none".
type Actor struct {
	UserID                string
	Role                  Role
	HomeOrganizationID    string
	ManagedOrganizationID string
}

// IsAdmin reports whether the actor holds one of the two administrative roles
// that bypass the collaboration fallback filter.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleSystemAdmin || a.Role == RoleOrgAdmin
}

// UserStore is the slice of the user repository the resolver needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// ActorResolver builds Actor values from authenticated principal IDs.
//
// The bootstrap email is injected from configuration rather than hardcoded so
// deployments choose their own non-lockout-able super-administrator. When the
// resolved user's email matches it, the returned Actor carries RoleSystemAdmin
// regardless of the persisted role, and promote=true tells the caller that a
// persistence correction (UserRepository.PromoteToSystemAdmin) is due. The
// resolver itself never writes.
type ActorResolver struct {
	users          UserStore
	bootstrapEmail string
}

// NewActorResolver creates an ActorResolver. bootstrapEmail may be empty to
// disable the bootstrap override entirely.
func NewActorResolver(users UserStore, bootstrapEmail string) *ActorResolver {
	return &ActorResolver{users: users, bootstrapEmail: bootstrapEmail}
}

// ResolveActor resolves a principal ID to an Actor.
//
// Returns ErrActorNotFound when no user profile exists or the profile is
// deactivated. The bootstrap identity is exempt from the deactivation check —
// the designated super-administrator must not be lockable out by a flipped
// is_active flag.
func (r *ActorResolver) ResolveActor(ctx context.Context, principalID string) (Actor, bool, error) {
	user, err := r.users.GetUserByID(ctx, principalID)
	if err != nil {
		return Actor{}, false, fmt.Errorf("resolve actor: %w", err)
	}
	if user == nil {
		return Actor{}, false, ErrActorNotFound
	}

	bootstrap := r.isBootstrap(user.Email)
	if !user.IsActive && !bootstrap {
		return Actor{}, false, ErrActorNotFound
	}

	actor := Actor{
		UserID: user.ID,
		Role:   RoleFromString(user.Role),
	}
	if user.OrganizationID != nil {
		actor.HomeOrganizationID = *user.OrganizationID
	}
	if user.ManagedOrganizationID != nil {
		actor.ManagedOrganizationID = *user.ManagedOrganizationID
	}

	promote := false
	if bootstrap && actor.Role != RoleSystemAdmin {
		actor.Role = RoleSystemAdmin
		promote = true
	}

	return actor, promote, nil
}

func (r *ActorResolver) isBootstrap(email string) bool {
	return r.bootstrapEmail != "" && strings.EqualFold(email, r.bootstrapEmail)
}
