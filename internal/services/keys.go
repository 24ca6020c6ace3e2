package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-authgate/meshgate/internal/models"

	"go.uber.org/zap"
)

// Key sources recorded in device metadata.
const (
	KeySourceExplicit = "explicit"
	KeySourceTenant   = "tenant"
	KeySourceDefault  = "default"
	KeySourceIssued   = "issued"
)

// TenantNetworkProfile is what a joining device needs to know about its
// tenant besides the key itself.
type TenantNetworkProfile struct {
	TenantName string
	Tags       []string
	Group      string
}

// ResolvedKey is a pre-authorization key and where it came from.
type ResolvedKey struct {
	TenantNetworkProfile
	Key    string
	Source string
}

// KeyResolver picks the pre-authorization key for a tenant. The order is
// explicit key, tenant key, process-wide default key, then a key issued by
// the directory when issuing is enabled.
type KeyResolver struct {
	users       *UserService
	session     *DirectorySession
	defaultKey  string
	defaultTags []string
	issueKeys   bool
	logger      *zap.Logger
}

func NewKeyResolver(
	users *UserService,
	session *DirectorySession,
	defaultKey string,
	defaultTags []string,
	issueKeys bool,
	logger *zap.Logger,
) *KeyResolver {
	return &KeyResolver{
		users:       users,
		session:     session,
		defaultKey:  defaultKey,
		defaultTags: defaultTags,
		issueKeys:   issueKeys,
		logger:      logger.Named("keys"),
	}
}

// Profile returns the tenant's network tags and group, falling back to the
// default tags when the tenant has none.
func (r *KeyResolver) Profile(ctx context.Context, tenantID string) (TenantNetworkProfile, *models.Organization, error) {
	profile := TenantNetworkProfile{Tags: append([]string(nil), r.defaultTags...)}

	org, err := r.users.GetOrganization(ctx, tenantID)
	if err != nil {
		return profile, nil, err
	}
	if org != nil {
		profile.TenantName = org.Name
		profile.Group = org.TailnetGroup
		if len(org.TailnetTags) > 0 {
			profile.Tags = append([]string(nil), org.TailnetTags...)
		}
	}
	return profile, org, nil
}

// Resolve returns a key for tenantID, or ErrNoAuthKey.
func (r *KeyResolver) Resolve(
	ctx context.Context,
	tenantID, explicit, description string,
) (*ResolvedKey, error) {
	profile, org, err := r.Profile(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	switch {
	case explicit != "":
		return &ResolvedKey{TenantNetworkProfile: profile, Key: explicit, Source: KeySourceExplicit}, nil
	case org != nil && org.TailnetAuthKey != "":
		return &ResolvedKey{TenantNetworkProfile: profile, Key: org.TailnetAuthKey, Source: KeySourceTenant}, nil
	case r.defaultKey != "":
		return &ResolvedKey{TenantNetworkProfile: profile, Key: r.defaultKey, Source: KeySourceDefault}, nil
	}

	if !r.issueKeys || r.session == nil {
		return nil, noKeyError(tenantID)
	}

	token, network, err := r.session.Open(ctx)
	if err != nil {
		r.logger.Warn("cannot issue pre-authorization key", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errors.Join(noKeyError(tenantID), err)
	}
	issued, err := r.session.Directory().IssuePreAuthKey(ctx, token, network, profile.Tags, description)
	if err != nil {
		r.logger.Warn("pre-authorization key request failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errors.Join(noKeyError(tenantID), err)
	}
	return &ResolvedKey{TenantNetworkProfile: profile, Key: issued.Key, Source: KeySourceIssued}, nil
}

func noKeyError(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: set TAILSCALE_AUTH_KEY or a tenant key", ErrNoAuthKey)
	}
	return fmt.Errorf("%w for organization %s: set a tenant key or TAILSCALE_AUTH_KEY", ErrNoAuthKey, tenantID)
}
