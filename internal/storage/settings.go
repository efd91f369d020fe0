package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hexborne/warden/internal/rcon"
)

// Keys under which the RCON configuration lives in server_settings. The
// table also carries unrelated dashboard settings, so reads are key-scoped.
const (
	settingRconEnabled  = "rcon_enabled"
	settingRconHost     = "rcon_host"
	settingRconPort     = "rcon_port"
	settingRconPassword = "rcon_password"
)

// GetSetting returns one raw setting value, "" when absent.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT setting_value FROM server_settings WHERE setting_key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting upserts one raw setting value.
func (s *Store) SetSetting(ctx context.Context, key, value string, actorID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_settings (setting_key, setting_value, updated_at, updated_by)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`, key, value, formatTimestamp(time.Now()), actorRef(actorID))
	return err
}

// RconSettings loads the typed RCON configuration from the settings table.
// Missing keys default to disabled/empty. A missing table (first run, before
// migrations ever completed) also reads as disabled rather than failing, so
// the dashboard stays up while unconfigured.
func (s *Store) RconSettings(ctx context.Context) (rcon.Settings, error) {
	var settings rcon.Settings

	rows, err := s.db.QueryContext(ctx, `
		SELECT setting_key, setting_value FROM server_settings
		WHERE setting_key IN (?, ?, ?, ?)
	`, settingRconEnabled, settingRconHost, settingRconPort, settingRconPassword)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return settings, nil
		}
		return settings, fmt.Errorf("loading rcon settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, err
		}
		switch key {
		case settingRconEnabled:
			settings.Enabled = value == "1" || value == "true"
		case settingRconHost:
			settings.Host = value
		case settingRconPort:
			settings.Port, _ = strconv.Atoi(value)
		case settingRconPassword:
			settings.Password = value
		}
	}
	return settings, rows.Err()
}

// UpdateRconSettings upserts the provided fields in one transaction; on any
// failure the whole update rolls back and the stored settings stay in effect.
// A nil password keeps the existing one. Actor id 0 marks a console-originated
// change and is recorded as a NULL updated_by.
func (s *Store) UpdateRconSettings(ctx context.Context, upd rcon.SettingsUpdate, actorID int64) error {
	if upd.Port != nil && (*upd.Port < 1 || *upd.Port > 65535) {
		return fmt.Errorf("invalid rcon port %d", *upd.Port)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTimestamp(time.Now())
	upsert := func(key, value string) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO server_settings (setting_key, setting_value, updated_at, updated_by)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(setting_key) DO UPDATE SET
				setting_value = excluded.setting_value,
				updated_at = excluded.updated_at,
				updated_by = excluded.updated_by
		`, key, value, now, actorRef(actorID))
		return err
	}

	if upd.Enabled != nil {
		value := "0"
		if *upd.Enabled {
			value = "1"
		}
		if err := upsert(settingRconEnabled, value); err != nil {
			return fmt.Errorf("updating %s: %w", settingRconEnabled, err)
		}
	}
	if upd.Host != nil {
		if err := upsert(settingRconHost, *upd.Host); err != nil {
			return fmt.Errorf("updating %s: %w", settingRconHost, err)
		}
	}
	if upd.Port != nil {
		if err := upsert(settingRconPort, strconv.Itoa(*upd.Port)); err != nil {
			return fmt.Errorf("updating %s: %w", settingRconPort, err)
		}
	}
	if upd.Password != nil {
		if err := upsert(settingRconPassword, *upd.Password); err != nil {
			return fmt.Errorf("updating %s: %w", settingRconPassword, err)
		}
	}

	return tx.Commit()
}
