package identity

import (
	"context"
	"database/sql"
	"fmt"

	"punchd/pkg/requestcontext"
)

// PostgresProfiles upserts the denormalized owner profile row the remote
// attendance backend refreshes on each check-in.
type PostgresProfiles struct {
	db *sql.DB
}

// NewPostgresProfiles constructs a postgres-backed profile mirror.
func NewPostgresProfiles(db *sql.DB) *PostgresProfiles {
	return &PostgresProfiles{db: db}
}

func (p *PostgresProfiles) SaveProfile(ctx context.Context, sess requestcontext.OwnerSession) error {
	if sess.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}
	query := `
		INSERT INTO owner_profiles (owner_id, display_name, email, phone, anonymous, last_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			email        = EXCLUDED.email,
			phone        = EXCLUDED.phone,
			anonymous    = EXCLUDED.anonymous,
			last_active  = EXCLUDED.last_active
	`
	_, err := p.db.ExecContext(ctx, query,
		sess.OwnerID, sess.DisplayName, sess.Email, sess.Phone, sess.Anonymous,
		requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
