package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/herd/internal/roster"
	"github.com/nidhogg/herd/internal/world"
)

// SaveMember upserts an active agent.
func (s *Store) SaveMember(ctx context.Context, m world.Member) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO members (id, species_id, origin_x, origin_y, sleeping, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			species_id = EXCLUDED.species_id,
			origin_x = EXCLUDED.origin_x,
			origin_y = EXCLUDED.origin_y,
			sleeping = EXCLUDED.sleeping,
			updated_at = EXCLUDED.updated_at`,
		string(m.ID), m.Species, m.Origin.X, m.Origin.Y, m.Sleeping, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("save member %s: %w", m.ID, err)
	}
	return nil
}

// DeleteMember removes one agent from the persisted herd.
func (s *Store) DeleteMember(ctx context.Context, id roster.Handle) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM members WHERE id = $1`, string(id)); err != nil {
		return fmt.Errorf("delete member %s: %w", id, err)
	}
	return nil
}

// DeleteAllMembers empties the persisted herd.
func (s *Store) DeleteAllMembers(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM members`); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	return nil
}

// ListMembers returns the persisted herd in join order.
func (s *Store) ListMembers(ctx context.Context) ([]world.Member, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, species_id, origin_x, origin_y, sleeping, joined_at
		FROM members ORDER BY joined_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []world.Member
	for rows.Next() {
		var m world.Member
		var id string
		if err := rows.Scan(&id, &m.Species, &m.Origin.X, &m.Origin.Y, &m.Sleeping, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.ID = roster.Handle(id)
		out = append(out, m)
	}
	return out, rows.Err()
}
