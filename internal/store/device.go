package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

type DeviceStore struct {
	q Querier
}

func NewDeviceStore(q Querier) *DeviceStore {
	return &DeviceStore{q: q}
}

const deviceCols = `id, member_id, token, created_at`

func scanDevice(s scanner) (*model.DeviceToken, error) {
	var d model.DeviceToken
	if err := s.Scan(&d.ID, &d.MemberID, &d.Token, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// Upsert registers token for memberID. A token already registered moves to
// the new member and its creation time is reset.
func (s *DeviceStore) Upsert(ctx context.Context, memberID uuid.UUID, token string) (*model.DeviceToken, error) {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO device_tokens (id, member_id, token, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET member_id = excluded.member_id, created_at = excluded.created_at`,
		uuid.New().String(), memberID.String(), token, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert device token: %w", err)
	}
	return s.getByToken(ctx, token)
}

func (s *DeviceStore) getByToken(ctx context.Context, token string) (*model.DeviceToken, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+deviceCols+` FROM device_tokens WHERE token = ?`, token)
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device token: %w", err)
	}
	return d, nil
}

// DeleteByToken removes token. Deleting an unknown token is not an error.
func (s *DeviceStore) DeleteByToken(ctx context.Context, token string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}

func (s *DeviceStore) ListByMember(ctx context.Context, memberID uuid.UUID) ([]model.DeviceToken, error) {
	devices, err := queryAll(ctx, s.q, scanDevice,
		`SELECT `+deviceCols+` FROM device_tokens WHERE member_id = ? ORDER BY created_at DESC`, memberID.String())
	if err != nil {
		return nil, fmt.Errorf("list device tokens by member: %w", err)
	}
	return devices, nil
}

func (s *DeviceStore) List(ctx context.Context) ([]model.DeviceToken, error) {
	devices, err := queryAll(ctx, s.q, scanDevice,
		`SELECT `+deviceCols+` FROM device_tokens ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	return devices, nil
}
