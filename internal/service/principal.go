package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/cache"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// PrincipalRepository defines the interface for loading users and role permissions
type PrincipalRepository interface {
	GetPrincipal(ctx context.Context, userID string) (*xtable.Principal, error)
	RolePermissions(ctx context.Context, roleID string) ([]xtable.Permission, error)
}

const (
	// PublicRoleID is the role whose permissions anonymous callers hold.
	PublicRoleID = "role:public"

	principalKeyPrefix   = "principal:"
	defaultPrincipalTTL  = time.Minute
	publicPrincipalCache = principalKeyPrefix + "public"
)

// cachedPrincipal is the cache encoding of a Principal, without the per-request intention.
type cachedPrincipal struct {
	UserID      string              `json:"user_id"`
	IsSysAdmin  bool                `json:"is_sys_admin"`
	Permissions []xtable.Permission `json:"permissions"`
}

// PrincipalService resolves the principal a request acts as.
type PrincipalService struct {
	repo  PrincipalRepository
	cache cache.Cache
	ttl   time.Duration
}

// PrincipalServiceConfig holds configuration for the principal service
type PrincipalServiceConfig struct {
	Repo  PrincipalRepository
	Cache cache.Cache // optional
	TTL   time.Duration
}

// NewPrincipalService creates a new principal service
func NewPrincipalService(cfg PrincipalServiceConfig) *PrincipalService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultPrincipalTTL
	}
	return &PrincipalService{repo: cfg.Repo, cache: cfg.Cache, ttl: ttl}
}

// Resolve returns the principal for userID acting with intention. An empty
// userID, or the public intention, yields the permissions of the public role.
func (s *PrincipalService) Resolve(ctx context.Context, userID string, intention xtable.Intention) (*xtable.Principal, error) {
	if userID == "" || intention == xtable.IntentionPublic {
		p, err := s.public(ctx)
		if err != nil {
			return nil, err
		}
		p.UserID = userID
		return p, nil
	}

	key := principalKeyPrefix + userID
	var cp cachedPrincipal
	if s.lookup(ctx, key, &cp) {
		return xtable.NewPrincipal(cp.UserID, cp.IsSysAdmin, cp.Permissions...).WithIntention(intention), nil
	}

	p, err := s.repo.GetPrincipal(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	s.store(ctx, key, cachedPrincipal{UserID: p.UserID, IsSysAdmin: p.IsSysAdmin, Permissions: p.PermissionList()})
	return p.WithIntention(intention), nil
}

func (s *PrincipalService) public(ctx context.Context) (*xtable.Principal, error) {
	var cp cachedPrincipal
	if !s.lookup(ctx, publicPrincipalCache, &cp) {
		perms, err := s.repo.RolePermissions(ctx, PublicRoleID)
		if err != nil {
			return nil, fmt.Errorf("failed to load public role: %w", err)
		}
		cp.Permissions = perms
		s.store(ctx, publicPrincipalCache, cp)
	}
	p := xtable.NewPrincipal("", false, cp.Permissions...)
	p.Intention = xtable.IntentionPublic
	return p, nil
}

func (s *PrincipalService) lookup(ctx context.Context, key string, v *cachedPrincipal) bool {
	if s.cache == nil {
		return false
	}
	err := cache.GetJSON(ctx, s.cache, key, v)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		slog.Warn("principal cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return err == nil
}

func (s *PrincipalService) store(ctx context.Context, key string, v cachedPrincipal) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, v, s.ttl); err != nil {
		slog.Warn("principal cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}
