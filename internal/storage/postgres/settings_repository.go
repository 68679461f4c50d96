package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/eventplanner/internal/domain/settings"
)

var _ settings.Repository = (*SettingsRepository)(nil)

// SettingsRepository stores the single system_settings row.
type SettingsRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *SettingsRepository) queryer() queryer { return pick(r.pool, r.tx) }

func (r *SettingsRepository) Get(ctx context.Context) (settings.Settings, error) {
	var s settings.Settings
	err := r.queryer().QueryRow(ctx, `
SELECT site_name, maintenance_mode, registration_enabled, email_notifications,
       max_event_capacity, updated_by, updated_at
  FROM system_settings
`).Scan(
		&s.SiteName,
		&s.MaintenanceMode,
		&s.RegistrationEnabled,
		&s.EmailNotifications,
		&s.MaxEventCapacity,
		&s.UpdatedBy,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings.Settings{}, settings.ErrNotFound
	}
	if err != nil {
		return settings.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

func (r *SettingsRepository) Save(ctx context.Context, s settings.Settings) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO system_settings (
  id, site_name, maintenance_mode, registration_enabled, email_notifications,
  max_event_capacity, updated_by, updated_at
) VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  site_name = EXCLUDED.site_name,
  maintenance_mode = EXCLUDED.maintenance_mode,
  registration_enabled = EXCLUDED.registration_enabled,
  email_notifications = EXCLUDED.email_notifications,
  max_event_capacity = EXCLUDED.max_event_capacity,
  updated_by = EXCLUDED.updated_by,
  updated_at = EXCLUDED.updated_at
`, s.SiteName, s.MaintenanceMode, s.RegistrationEnabled, s.EmailNotifications, s.MaxEventCapacity, s.UpdatedBy, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
