package sqlstore

import (
	"time"

	"github.com/goliatone/go-accounts/core"
	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:accounts_users,alias:au"`

	ID          string    `bun:"id,pk"`
	DID         string    `bun:"did,notnull"`
	Handle      string    `bun:"handle,notnull"`
	DisplayName *string   `bun:"display_name"`
	Description *string   `bun:"description"`
	AvatarURL   *string   `bun:"avatar_url"`
	BannerURL   *string   `bun:"banner_url"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type githubConnectionRecord struct {
	bun.BaseModel `bun:"table:accounts_github_connections,alias:agc"`

	ID           string     `bun:"id,pk"`
	UserID       string     `bun:"user_id,notnull"`
	AccessToken  string     `bun:"access_token,notnull"`
	RefreshToken *string    `bun:"refresh_token"`
	ExpiresAt    *time.Time `bun:"expires_at,nullzero"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newUserRecord(id string, in core.CreateAccountInput, now time.Time) *userRecord {
	return &userRecord{
		ID:          id,
		DID:         in.DID,
		Handle:      in.Handle,
		DisplayName: optionalString(in.Profile.DisplayName),
		Description: optionalString(in.Profile.Description),
		AvatarURL:   optionalString(in.Profile.AvatarURL),
		BannerURL:   optionalString(in.Profile.BannerURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *userRecord) toDomain() core.UserAccount {
	if r == nil {
		return core.UserAccount{}
	}
	return core.UserAccount{
		ID:     r.ID,
		DID:    r.DID,
		Handle: r.Handle,
		Profile: core.Profile{
			DisplayName: optionalString(r.DisplayName),
			Description: optionalString(r.Description),
			AvatarURL:   optionalString(r.AvatarURL),
			BannerURL:   optionalString(r.BannerURL),
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newGitHubConnectionRecord(id string, in core.CreateConnectionInput, now time.Time) *githubConnectionRecord {
	return &githubConnectionRecord{
		ID:           id,
		UserID:       in.UserID,
		AccessToken:  in.AccessToken,
		RefreshToken: optionalString(in.RefreshToken),
		ExpiresAt:    utcTime(in.ExpiresAt),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *githubConnectionRecord) toDomain() core.GitHubConnection {
	if r == nil {
		return core.GitHubConnection{}
	}
	return core.GitHubConnection{
		ID:           r.ID,
		UserID:       r.UserID,
		AccessToken:  r.AccessToken,
		RefreshToken: optionalString(r.RefreshToken),
		ExpiresAt:    utcTime(r.ExpiresAt),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

// optionalString copies value, collapsing empty strings to nil so the
// database never stores "" for an absent profile field.
func optionalString(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	copied := *value
	return &copied
}

func utcTime(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	copied := value.UTC()
	return &copied
}
