package activation

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleMember is the default role attached at creation (i.e. view, edit)
	RoleMember UserRole = "member"
	// RoleAdmin is an admin role (i.e. view, edit, create, delete)
	RoleAdmin UserRole = "admin"
)

// User is the user account model. Accounts are created disabled with every
// security flag false; Users.EnableTx is the single transition that makes the
// record usable.
type User struct {
	bun.BaseModel         `bun:"table:users,alias:usr"`
	ID                    uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role                  UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Name                  string     `bun:"name,notnull" json:"name,omitempty"`
	Email                 string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone                 string     `bun:"phone_number,notnull" json:"phone_number,omitempty"`
	PasswordHash          string     `bun:"password_hash" json:"password_hash,omitempty"`
	Enabled               bool       `bun:"enabled" json:"enabled,omitempty"`
	AccountNonExpired     bool       `bun:"account_non_expired" json:"account_non_expired,omitempty"`
	AccountNonLocked      bool       `bun:"account_non_locked" json:"account_non_locked,omitempty"`
	CredentialsNonExpired bool       `bun:"credentials_non_expired" json:"credentials_non_expired,omitempty"`
	CreatedAt             *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt             *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt             *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Activated reports whether the account completed the activation workflow.
func (u *User) Activated() bool {
	return u.Enabled && u.AccountNonExpired && u.AccountNonLocked && u.CredentialsNonExpired
}

// MarkEnabled flips every security flag and stores the password hash. It only
// mutates the in-memory record; persistence goes through Users.EnableTx.
func (u *User) MarkEnabled(passwordHash string) *User {
	u.Enabled = true
	u.AccountNonExpired = true
	u.AccountNonLocked = true
	u.CredentialsNonExpired = true
	u.PasswordHash = passwordHash
	return u
}

// DefaultTokenTTL is the validation token lifetime used when a handler is not
// configured with its own.
const DefaultTokenTTL = 24 * time.Hour

// tokenEntropyBytes gives 256 bits of entropy per token.
const tokenEntropyBytes = 32

// ValidationToken is a single-use activation token. A row exists only between
// a confirmed activation publish and a successful redemption; expired rows are
// rejected at lookup time, never swept.
type ValidationToken struct {
	bun.BaseModel `bun:"table:validation_tokens,alias:vtk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"token,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// NewValidationToken mints a token for email expiring ttl from now. Pure
// construction, nothing is persisted.
func NewValidationToken(email string, ttl time.Duration) *ValidationToken {
	return newValidationTokenAt(email, ttl, time.Now())
}

func newValidationTokenAt(email string, ttl time.Duration, now time.Time) *ValidationToken {
	return &ValidationToken{
		ID:        uuid.New(),
		Token:     mintTokenString(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the token lifetime has passed at now. A token
// expiring exactly at now is still valid.
func (t *ValidationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func mintTokenString() string {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process has no usable entropy source
		panic("activation: unable to read random bytes: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
