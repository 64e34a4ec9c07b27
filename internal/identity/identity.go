package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crosslister/dispatch-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// ErrUnauthenticated is returned when a user id or extension token cannot be
// validated.
var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier validates the identity presented by the polling extension.
type Verifier struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewVerifier creates a verifier on top of the shared PostgreSQL client.
func NewVerifier(pg *postgresql.Client, logger *slog.Logger) *Verifier {
	return &Verifier{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// Verify checks that the user exists and presented a valid extension token.
func (v *Verifier) Verify(ctx context.Context, userID, token string) error {
	if userID == "" || token == "" {
		return ErrUnauthenticated
	}

	query := `SELECT 1 FROM users WHERE user_id = $1 AND extension_token = $2`

	var one int
	err := v.db.GetContext(ctx, &one, query, userID, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			v.logger.Warn("Extension auth rejected",
				slog.String("user_id", userID),
			)
			return ErrUnauthenticated
		}
		return fmt.Errorf("failed to verify identity: %w", err)
	}

	return nil
}

// TouchExtension records when the extension last announced presence.
func (v *Verifier) TouchExtension(ctx context.Context, userID string) error {
	query := `UPDATE users SET extension_last_seen_at = NOW() WHERE user_id = $1`

	if _, err := v.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to update extension last seen: %w", err)
	}

	return nil
}
