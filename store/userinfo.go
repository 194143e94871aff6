package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"nots/obsel"
)

// UpsertUserInfo creates or updates the identity document for id.
// Later writes merge new profile keys over the stored ones; the id
// itself is preserved and never taken from the profile.
func (s *Store) UpsertUserInfo(ctx context.Context, id string, profile map[string]any) error {
	existing, err := s.GetUserInfo(ctx, id)
	if err != nil {
		return err
	}

	merged := map[string]any{}
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range profile {
		merged[k] = v
	}
	merged["id"] = id

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("upsert userinfo: marshal: %w", err)
	}

	now := time.Now().UnixMilli()
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO userinfo (id, profile, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET profile = excluded.profile, updated_at = excluded.updated_at`,
		id, string(data), now, now)
	if err != nil {
		return fmt.Errorf("upsert userinfo: %w", err)
	}
	return nil
}

// GetUserInfo returns the identity document for id, or nil when absent.
func (s *Store) GetUserInfo(ctx context.Context, id string) (map[string]any, error) {
	var data string
	err := s.DB.QueryRowContext(ctx,
		`SELECT profile FROM userinfo WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get userinfo: %w", err)
	}
	var profile map[string]any
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("get userinfo: unmarshal: %w", err)
	}
	return profile, nil
}

// DefaultSubject extracts the default_subject profile field, falling
// back to the anonymous placeholder.
func DefaultSubject(profile map[string]any) string {
	if profile != nil {
		if s, ok := profile["default_subject"].(string); ok && s != "" {
			return s
		}
	}
	return obsel.AnonymousSubject
}
