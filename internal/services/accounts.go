package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"rashody/internal/cache"
	"rashody/internal/core"
	applog "rashody/internal/log"
	"rashody/internal/storage"
)

// ErrUnauthorized is returned for a missing or unknown API token.
var ErrUnauthorized = errors.New("unauthorized")

const (
	defaultAccountCacheSize = 1024
	defaultAccountCacheTTL  = 15 * time.Minute
	apiTokenBytes           = 32
)

// AccountResolver maps a chat identity to its persistent account, creating
// the account on first contact.
type AccountResolver struct {
	users  storage.UserStore
	cache  *cache.LRUCache[int64, core.User]
	group  singleflight.Group
	logger *applog.Logger
}

func NewAccountResolver(users storage.UserStore, accounts *cache.LRUCache[int64, core.User], logger *applog.Logger) *AccountResolver {
	if accounts == nil {
		accounts = cache.NewLRUCache[int64, core.User](defaultAccountCacheSize, defaultAccountCacheTTL)
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &AccountResolver{
		users:  users,
		cache:  accounts,
		logger: logger.WithComponent(applog.ComponentAccounts),
	}
}

// Resolve returns the account for identity. Concurrent first-contact calls for
// one identity share a single store round trip.
func (r *AccountResolver) Resolve(ctx context.Context, identity core.Identity) (core.User, error) {
	if err := identity.Validate(); err != nil {
		return core.User{}, err
	}
	if u, ok := r.cache.Get(identity.ExternalID); ok {
		return u, nil
	}

	// The shared insert outlives any single caller so that one cancelled
	// request does not fail the others waiting on it.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(identity.Username(), func() (any, error) {
		u, created, err := r.users.InsertUserIfAbsent(shared, identity.NewUser())
		if err != nil {
			return core.User{}, err
		}
		if created {
			r.logger.InfoContext(shared, "Account created on first contact",
				applog.FieldUserID, u.ID,
				applog.FieldUsername, u.Username)
		}
		r.cache.Set(identity.ExternalID, u)
		return u, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return core.User{}, fmt.Errorf("resolve account %s: %w", identity.Username(), res.Err)
		}
		return res.Val.(core.User), nil
	case <-ctx.Done():
		return core.User{}, fmt.Errorf("resolve account %s: %w", identity.Username(), ctx.Err())
	}
}

// IssueToken generates a new API token for the user, replacing any previous
// one. Only its hash is stored.
func (r *AccountResolver) IssueToken(ctx context.Context, userID int64) (string, error) {
	buf := make([]byte, apiTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := r.users.SetAPITokenHash(ctx, userID, HashToken(token)); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	r.logger.InfoContext(ctx, "API token issued", applog.FieldUserID, userID)
	return token, nil
}

// Authenticate resolves the owner of a bearer token.
func (r *AccountResolver) Authenticate(ctx context.Context, token string) (core.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.User{}, ErrUnauthorized
	}
	u, err := r.users.GetUserByTokenHash(ctx, HashToken(token))
	if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrEmptyAPIToken) {
		return core.User{}, ErrUnauthorized
	}
	if err != nil {
		return core.User{}, fmt.Errorf("authenticate: %w", err)
	}
	return u, nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
