package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

type MemberStore struct {
	q Querier
}

func NewMemberStore(q Querier) *MemberStore {
	return &MemberStore{q: q}
}

const memberCols = `id, display_name, emoji_symbol, accent_color_hex, is_self, created_at, updated_at, sync_revision`

func scanMember(s scanner) (*model.Member, error) {
	var m model.Member
	err := s.Scan(&m.ID, &m.DisplayName, &m.EmojiSymbol, &m.AccentColorHex, &m.IsSelf,
		&m.CreatedAt, &m.UpdatedAt, &m.SyncRevision)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MemberStore) Get(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`, id.String())
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) Insert(ctx context.Context, m model.Member) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO members (`+memberCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.DisplayName, m.EmojiSymbol, m.AccentColorHex, m.IsSelf,
		utc(m.CreatedAt), utc(m.UpdatedAt), m.SyncRevision,
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *MemberStore) Update(ctx context.Context, m model.Member) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE members SET display_name = ?, emoji_symbol = ?, accent_color_hex = ?, is_self = ?,
		 created_at = ?, updated_at = ?, sync_revision = ?
		 WHERE id = ?`,
		m.DisplayName, m.EmojiSymbol, m.AccentColorHex, m.IsSelf,
		utc(m.CreatedAt), utc(m.UpdatedAt), m.SyncRevision, m.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return nil
}

// ListSince returns members stamped after rev, oldest revision first.
func (s *MemberStore) ListSince(ctx context.Context, rev int64) ([]model.Member, error) {
	members, err := queryAll(ctx, s.q, scanMember,
		`SELECT `+memberCols+` FROM members WHERE sync_revision > ? ORDER BY sync_revision ASC`, rev)
	if err != nil {
		return nil, fmt.Errorf("list members since: %w", err)
	}
	return members, nil
}
