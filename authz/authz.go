// Package authz provides a concrete Authorization collaborator:
// TokenAuthorizer, a bearer-token-to-principal mapping that answers whether
// a principal may write a reconciling merge. spec.md treats Authorization as
// an external, swappable collaborator; this is the one reference
// implementation lineage ships, narrowed from the teacher's full
// authenticate-and-authorize subsystem down to the single question
// merge.Driver actually asks.
package authz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/lineagedb/lineage/collab"
	"github.com/lineagedb/lineage/wire"
)

// ErrUnknownPrincipal is returned by Perms when the caller's context carries
// no principal.
var ErrUnknownPrincipal = errors.New("authz: no principal associated with request")

type principalKeyType struct{}

var principalKey = principalKeyType{}

// WithPrincipal attaches a principal ID to ctx for a downstream
// TokenAuthorizer.Perms call to read back, mirroring the teacher's pattern
// of threading the authenticated user through request context rather than
// a thread-local.
func WithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, principalKey, principalID)
}

func principalFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalKey).(string)
	return id, ok && id != ""
}

// permissions is the Permissions implementation TokenAuthorizer hands back:
// a precomputed "may write" boolean. CanWrite ignores the rights it is given.
type permissions struct {
	canWrite bool
}

func (p permissions) CanWrite(_ []string) bool { return p.canWrite }

// TokenAuthorizer hashes bearer tokens with bcrypt and keeps a per-partition
// allow-list of principal IDs permitted to write reconciling merges.
// Write access is decided by partition allow-list membership alone; an
// object's own wire.Header.AllowWrite list is not consulted.
type TokenAuthorizer struct {
	mu         sync.RWMutex
	tokenHash  map[string][]byte // principalID -> bcrypt hash of its bearer token
	allowWrite map[string]map[string]struct{} // partitionKey -> set of principalIDs
	cost       int
}

// New builds an empty TokenAuthorizer. cost is the bcrypt work factor;
// bcrypt.DefaultCost is used when cost is zero.
func New(cost int) *TokenAuthorizer {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &TokenAuthorizer{
		tokenHash:  make(map[string][]byte),
		allowWrite: make(map[string]map[string]struct{}),
		cost:       cost,
	}
}

// Register hashes token and associates it with principalID. Calling
// Register again for the same principal rotates its token.
func (a *TokenAuthorizer) Register(principalID, token string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), a.cost)
	if err != nil {
		return fmt.Errorf("authz: hash token for %s: %w", principalID, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokenHash[principalID] = hash
	return nil
}

// Verify reports whether token matches the bearer token registered for
// principalID.
func (a *TokenAuthorizer) Verify(principalID, token string) bool {
	a.mu.RLock()
	hash, ok := a.tokenHash[principalID]
	a.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(token)) == nil
}

// Grant adds principalID to partitionKey's write allow-list.
func (a *TokenAuthorizer) Grant(partitionKey, principalID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.allowWrite[partitionKey]
	if !ok {
		set = make(map[string]struct{})
		a.allowWrite[partitionKey] = set
	}
	set[principalID] = struct{}{}
}

// Revoke removes principalID from partitionKey's write allow-list.
func (a *TokenAuthorizer) Revoke(partitionKey, principalID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if set, ok := a.allowWrite[partitionKey]; ok {
		delete(set, principalID)
	}
}

// Perms implements collab.Authorization. It reports write access for the
// principal attached to ctx via WithPrincipal: true if that principal is on
// partitionKey's allow-list. objectID and parentID are accepted for
// interface conformance and future per-object overrides; computeChildren is
// unused by this implementation (TokenAuthorizer has no notion of children
// distinct from the partition-level grant).
func (a *TokenAuthorizer) Perms(ctx context.Context, partitionKey string, _ wire.UUID, _ wire.UUID, _ bool) (collab.Permissions, error) {
	principalID, ok := principalFrom(ctx)
	if !ok {
		return nil, ErrUnknownPrincipal
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	set, ok := a.allowWrite[partitionKey]
	if !ok {
		return permissions{canWrite: false}, nil
	}
	_, allowed := set[principalID]
	return permissions{canWrite: allowed}, nil
}
