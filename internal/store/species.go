package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/world"
)

// SaveSpecies replaces the stored definition of a species.
func (s *Store) SaveSpecies(ctx context.Context, id string, sp behavior.Species) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save species %s: %w", id, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO species (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()`,
		id, sp.Name,
	); err != nil {
		return fmt.Errorf("save species %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM behaviors WHERE species_id = $1`, id); err != nil {
		return fmt.Errorf("clear behaviors %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM speech_lines WHERE species_id = $1`, id); err != nil {
		return fmt.Errorf("clear lines %s: %w", id, err)
	}

	batch := &pgx.Batch{}
	for i, d := range sp.Behaviors {
		batch.Queue(`
			INSERT INTO behaviors (species_id, ordinal, name, weight, duration_min, duration_max,
				movement, type, linked, skip, start_line, end_line, follow_target,
				anchor_x, anchor_y, coordinate_x, coordinate_y, speed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			id, i, d.Name, d.Weight, d.DurationMin, d.DurationMax,
			orDefault(string(d.Movement), string(behavior.MovementNormal)),
			orDefault(string(d.Type), string(behavior.TypeNormal)),
			d.Linked, d.Skip, d.StartLine, d.EndLine, d.FollowTarget,
			d.Anchor.X, d.Anchor.Y, d.Coordinate.X, d.Coordinate.Y, d.Speed)
	}
	for i, l := range sp.Lines {
		batch.Queue(`
			INSERT INTO speech_lines (species_id, ordinal, name, text, skip, audio)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, i, l.Name, l.Text, l.Skip, l.Audio)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert species rows %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit species %s: %w", id, err)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// LoadSpecies reads a stored species definition.
func (s *Store) LoadSpecies(ctx context.Context, id string) (behavior.Species, error) {
	var sp behavior.Species
	err := s.db.QueryRow(ctx, `SELECT name FROM species WHERE id = $1`, id).Scan(&sp.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return sp, fmt.Errorf("load species %s: %w", id, world.ErrSpeciesNotFound)
	}
	if err != nil {
		return sp, fmt.Errorf("load species %s: %w", id, err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT name, weight, duration_min, duration_max, movement, type, linked, skip,
		       start_line, end_line, follow_target, anchor_x, anchor_y,
		       coordinate_x, coordinate_y, speed
		FROM behaviors WHERE species_id = $1 ORDER BY ordinal`, id)
	if err != nil {
		return sp, fmt.Errorf("load behaviors %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var d behavior.Definition
		if err := rows.Scan(
			&d.Name, &d.Weight, &d.DurationMin, &d.DurationMax, &d.Movement, &d.Type,
			&d.Linked, &d.Skip, &d.StartLine, &d.EndLine, &d.FollowTarget,
			&d.Anchor.X, &d.Anchor.Y, &d.Coordinate.X, &d.Coordinate.Y, &d.Speed,
		); err != nil {
			return sp, fmt.Errorf("scan behavior: %w", err)
		}
		sp.Behaviors = append(sp.Behaviors, d)
	}
	if err := rows.Err(); err != nil {
		return sp, fmt.Errorf("load behaviors %s: %w", id, err)
	}

	lines, err := s.db.Query(ctx, `
		SELECT name, text, skip, audio
		FROM speech_lines WHERE species_id = $1 ORDER BY ordinal`, id)
	if err != nil {
		return sp, fmt.Errorf("load lines %s: %w", id, err)
	}
	defer lines.Close()
	for lines.Next() {
		var l behavior.SpeechLine
		if err := lines.Scan(&l.Name, &l.Text, &l.Skip, &l.Audio); err != nil {
			return sp, fmt.Errorf("scan line: %w", err)
		}
		sp.Lines = append(sp.Lines, l)
	}
	return sp, lines.Err()
}

// LookupSpecies implements world.SpeciesSource.
func (s *Store) LookupSpecies(ctx context.Context, id string) (behavior.Species, error) {
	return s.LoadSpecies(ctx, id)
}

// ListSpecies returns the ids of every stored species.
func (s *Store) ListSpecies(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM species ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list species: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan species: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSpecies removes a stored species and its rows.
func (s *Store) DeleteSpecies(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM species WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete species %s: %w", id, err)
	}
	return nil
}
