package core

import (
	"strings"
	"time"
)

// CorrelationState is the anti-CSRF value issued by a Start* flow and
// checked by the matching callback.
type CorrelationState struct {
	State     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s CorrelationState) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Principal identifies the signed-in user.
type Principal struct {
	UserID string
	DID    string
}

type Session struct {
	User      Principal
	CreatedAt time.Time
}

// Profile holds optional display data mirrored from the identity provider.
// Missing values are nil, never empty strings.
type Profile struct {
	DisplayName *string
	Description *string
	AvatarURL   *string
	BannerURL   *string
}

type UserAccount struct {
	ID        string
	DID       string
	Handle    string
	Profile   Profile
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GitHubConnection is the persisted GitHub credential pair for one user.
// A nil ExpiresAt means the access token does not expire; a nil RefreshToken
// means the connection cannot be refreshed.
type GitHubConnection struct {
	ID           string
	UserID       string
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c GitHubConnection) Usable(now time.Time) bool {
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// Expired reports whether the access token must be refreshed before use.
func (c GitHubConnection) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

func (c GitHubConnection) Refreshable() bool {
	return c.RefreshToken != nil && strings.TrimSpace(*c.RefreshToken) != ""
}

type Installation struct {
	ID                  int64
	AppSlug             string
	AccountLogin        string
	AccountType         string
	TargetType          string
	RepositorySelection string
	HTMLURL             string
	CreatedAt           time.Time
}

// ProviderProfile is the profile shape returned by an IdentityProvider.
type ProviderProfile struct {
	Handle      string
	DisplayName *string
	Description *string
	Avatar      *string
	Banner      *string
}

// CallbackIdentity is what an IdentityProvider extracts from a redirect.
type CallbackIdentity struct {
	DID   string
	State string
}

type TokenGrant struct {
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
}

type CreateAccountInput struct {
	DID     string
	Handle  string
	Profile Profile
}

type CreateConnectionInput struct {
	UserID       string
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
}

type ListUsersOptions struct {
	Limit  int
	Offset int
}

const (
	defaultListUsersLimit = 50
	maxListUsersLimit     = 500
)

func (o ListUsersOptions) Normalize() ListUsersOptions {
	if o.Limit <= 0 {
		o.Limit = defaultListUsersLimit
	}
	if o.Limit > maxListUsersLimit {
		o.Limit = maxListUsersLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

func profileFromProvider(profile ProviderProfile) Profile {
	return Profile{
		DisplayName: nonEmpty(profile.DisplayName),
		Description: nonEmpty(profile.Description),
		AvatarURL:   nonEmpty(profile.Avatar),
		BannerURL:   nonEmpty(profile.Banner),
	}
}

func nonEmpty(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := value.UTC()
	return &copied
}

func cloneConnection(conn GitHubConnection) GitHubConnection {
	conn.RefreshToken = cloneString(conn.RefreshToken)
	conn.ExpiresAt = cloneTime(conn.ExpiresAt)
	return conn
}
