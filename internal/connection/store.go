package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crosslister/dispatch-be/internal/platform"
	"github.com/crosslister/dispatch-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store reads and writes platform connection rows.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a connection store on top of the shared PostgreSQL client.
func NewStore(pg *postgresql.Client, logger *slog.Logger) *Store {
	return &Store{
		db:     pg.GetDB(),
		logger: logger,
	}
}

const connectionColumns = `
	user_id, platform, platform_username, encrypted_credentials,
	is_active, created_at, updated_at
`

// Get retrieves the connection for one (user, platform) pair.
func (s *Store) Get(ctx context.Context, userID string, p platform.Platform) (*Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM platform_connections WHERE user_id = $1 AND platform = $2`

	var conn Connection
	err := s.db.GetContext(ctx, &conn, query, userID, p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	return &conn, nil
}

// ActiveForUser returns the user's active connections restricted to the given
// platforms.
func (s *Store) ActiveForUser(ctx context.Context, userID string, platforms []platform.Platform) ([]Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM platform_connections
		WHERE user_id = $1
		  AND is_active = TRUE
		  AND platform = ANY($2)
	`

	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}

	var conns []Connection
	if err := s.db.SelectContext(ctx, &conns, query, userID, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("failed to list active connections: %w", err)
	}

	return conns, nil
}

// SaveCredentials upserts the encrypted credential blob for a connection and
// activates it. Credentials are write-once per upsert: only complete blobs
// are ever stored.
func (s *Store) SaveCredentials(ctx context.Context, userID string, p platform.Platform, username, encrypted string) error {
	query := `
		INSERT INTO platform_connections (
			user_id, platform, platform_username, encrypted_credentials,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (user_id, platform) DO UPDATE
		SET platform_username = EXCLUDED.platform_username,
		    encrypted_credentials = EXCLUDED.encrypted_credentials,
		    is_active = TRUE,
		    updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, userID, p, username, encrypted); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	s.logger.Info("Platform credentials saved",
		slog.String("user_id", userID),
		slog.String("platform", string(p)),
	)

	return nil
}
