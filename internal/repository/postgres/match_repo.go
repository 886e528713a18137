package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/freeeve/repower/internal/model"
)

const matchColumns = `m.id, m.name, m.owner_id, m.map_id, m.capacity, m.status, m.public, m.winners,
	m.created_at, m.started_at, m.finished_at`

// MatchRepo handles match and match_player database operations.
type MatchRepo struct {
	db *sql.DB
}

// NewMatchRepo creates a MatchRepo.
func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*model.Match, error) {
	var m model.Match
	var winners pq.StringArray
	if err := row.Scan(&m.ID, &m.Name, &m.OwnerID, &m.MapID, &m.Capacity, &m.Status, &m.Public, &winners,
		&m.CreatedAt, &m.StartedAt, &m.FinishedAt); err != nil {
		return nil, err
	}
	m.Winners = []string(winners)
	return &m, nil
}

// Create inserts a match in setup and seats its owner.
func (r *MatchRepo) Create(ctx context.Context, name, ownerID, mapID string, capacity int) (*model.Match, error) {
	var m *model.Match
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		m, err = scanMatch(tx.QueryRowContext(ctx,
			`INSERT INTO matches AS m (name, owner_id, map_id, capacity)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+matchColumns,
			name, ownerID, mapID, capacity,
		))
		if err != nil {
			return fmt.Errorf("create match: %w", err)
		}
		var p model.MatchPlayer
		err = tx.QueryRowContext(ctx,
			`INSERT INTO match_players (match_id, user_id, seat) VALUES ($1, $2, 0)
			 RETURNING match_id, user_id, seat, joined_at`,
			m.ID, ownerID,
		).Scan(&p.MatchID, &p.UserID, &p.Seat, &p.JoinedAt)
		if err != nil {
			return fmt.Errorf("seat owner: %w", err)
		}
		m.Players = []model.MatchPlayer{p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// FindByID returns a match with its seats, or nil if it does not exist.
func (r *MatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches m WHERE m.id = $1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}

	players, err := r.listPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Players = players
	return m, nil
}

func (r *MatchRepo) listPlayers(ctx context.Context, matchID string) ([]model.MatchPlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT match_id, user_id, seat, country, setup_ready, defeated, left_match, joined_at
		 FROM match_players WHERE match_id = $1 ORDER BY seat`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list match players: %w", err)
	}
	defer rows.Close()

	var players []model.MatchPlayer
	for rows.Next() {
		var p model.MatchPlayer
		if err := rows.Scan(&p.MatchID, &p.UserID, &p.Seat, &p.Country, &p.SetupReady, &p.Defeated, &p.LeftMatch, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan match player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (r *MatchRepo) listMatches(ctx context.Context, op, query string, args ...any) ([]model.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// ListVisible returns public matches and every match userID sits in, most
// recent first.
func (r *MatchRepo) ListVisible(ctx context.Context, userID string) ([]model.Match, error) {
	return r.listMatches(ctx, "list visible matches",
		`SELECT `+matchColumns+`
		 FROM matches m
		 WHERE m.public OR EXISTS (
		   SELECT 1 FROM match_players mp WHERE mp.match_id = m.id AND mp.user_id = $1)
		 ORDER BY m.created_at DESC LIMIT 100`, userID)
}

// ListByStatus returns matches in any of the given statuses, oldest first.
func (r *MatchRepo) ListByStatus(ctx context.Context, statuses ...string) ([]model.Match, error) {
	return r.listMatches(ctx, "list matches by status",
		`SELECT `+matchColumns+` FROM matches m WHERE m.status = ANY($1) ORDER BY m.created_at`,
		pq.Array(statuses))
}

// Save writes the mutable match columns and replaces its seats with
// m.Players in one transaction.
func (r *MatchRepo) Save(ctx context.Context, m *model.Match) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE matches SET status = $1, public = $2, winners = $3, started_at = $4, finished_at = $5
			 WHERE id = $6`,
			m.Status, m.Public, pq.Array(m.Winners), m.StartedAt, m.FinishedAt, m.ID,
		)
		if err != nil {
			return fmt.Errorf("update match: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update match %s: %w", m.ID, sql.ErrNoRows)
		}

		ids := make([]string, len(m.Players))
		for i, p := range m.Players {
			ids[i] = p.UserID
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM match_players WHERE match_id = $1 AND NOT (user_id::text = ANY($2))`,
			m.ID, pq.Array(ids),
		); err != nil {
			return fmt.Errorf("remove match players: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO match_players (match_id, user_id, seat, country, setup_ready, defeated, left_match)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (match_id, user_id) DO UPDATE SET
			   seat = EXCLUDED.seat, country = EXCLUDED.country, setup_ready = EXCLUDED.setup_ready,
			   defeated = EXCLUDED.defeated, left_match = EXCLUDED.left_match`)
		if err != nil {
			return fmt.Errorf("prepare upsert match player: %w", err)
		}
		defer stmt.Close()

		for _, p := range m.Players {
			if _, err := stmt.ExecContext(ctx, m.ID, p.UserID, p.Seat, p.Country, p.SetupReady, p.Defeated, p.LeftMatch); err != nil {
				return fmt.Errorf("upsert match player: %w", err)
			}
		}
		return nil
	})
}
