package connection

import (
	"database/sql"
	"errors"
	"time"

	"github.com/crosslister/dispatch-be/internal/platform"
)

// CredentialsPlaceholder is written when the extension manages the
// marketplace session itself. It never counts as configured credentials.
const CredentialsPlaceholder = "extension_managed"

// ErrConnectionNotFound is returned when a (user, platform) pair has no
// connection row.
var ErrConnectionNotFound = errors.New("platform connection not found")

// Connection records whether a user has linked a marketplace and with what
// credentials. Credentials are opaque encrypted blobs; this package never
// sees plaintext.
type Connection struct {
	UserID               string            `db:"user_id"`
	Platform             platform.Platform `db:"platform"`
	PlatformUsername     sql.NullString    `db:"platform_username"`
	EncryptedCredentials sql.NullString    `db:"encrypted_credentials"`
	IsActive             bool              `db:"is_active"`
	CreatedAt            time.Time         `db:"created_at"`
	UpdatedAt            time.Time         `db:"updated_at"`
}

// Deliverable reports whether jobs may be handed out for this connection:
// it must be active and hold real, non-placeholder credentials.
func (c *Connection) Deliverable() bool {
	if !c.IsActive || !c.EncryptedCredentials.Valid {
		return false
	}
	creds := c.EncryptedCredentials.String
	return creds != "" && creds != CredentialsPlaceholder
}
