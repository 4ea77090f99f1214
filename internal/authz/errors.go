package authz

import "errors"

// ErrActorNotFound is returned by ResolveActor when no user profile matches
// the authenticated principal. Callers should respond with an authentication
// failure, not a scoping failure.
var ErrActorNotFound = errors.New("authz: actor not found")

// ErrHierarchyCorruption is returned when a walk of the organization tree
// revisits a node, meaning the parent relation contains a cycle. Production
// data is assumed acyclic, so this indicates data corruption; it is fatal for
// the request and must be logged, never silently ignored.
var ErrHierarchyCorruption = errors.New("authz: organization hierarchy corruption detected")
