package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/internal/repository"
)

const turnColumns = `id, match_id, number, state_before, state_after, report, created_at, resolved_at`

// TurnRepo handles turn, command and battle database operations.
type TurnRepo struct {
	db *sql.DB
}

// NewTurnRepo creates a TurnRepo.
func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

func scanTurn(row rowScanner) (*model.Turn, error) {
	var t model.Turn
	var stateAfter, report sql.NullString
	if err := row.Scan(&t.ID, &t.MatchID, &t.Number, &t.StateBefore, &stateAfter, &report, &t.CreatedAt, &t.ResolvedAt); err != nil {
		return nil, err
	}
	if stateAfter.Valid {
		t.StateAfter = json.RawMessage(stateAfter.String)
	}
	t.Report = report.String
	return &t, nil
}

// CreateTurn inserts an unresolved turn.
func (r *TurnRepo) CreateTurn(ctx context.Context, matchID string, number int, state json.RawMessage) (*model.Turn, error) {
	t, err := scanTurn(r.db.QueryRowContext(ctx,
		`INSERT INTO turns (match_id, number, state_before) VALUES ($1, $2, $3)
		 RETURNING `+turnColumns,
		matchID, number, []byte(state),
	))
	if err != nil {
		return nil, fmt.Errorf("create turn: %w", err)
	}
	return t, nil
}

// CurrentTurn returns the highest-numbered turn of a match, or nil.
func (r *TurnRepo) CurrentTurn(ctx context.Context, matchID string) (*model.Turn, error) {
	t, err := scanTurn(r.db.QueryRowContext(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE match_id = $1 ORDER BY number DESC LIMIT 1`, matchID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current turn: %w", err)
	}
	return t, nil
}

// FindTurn returns turn number of a match, or nil.
func (r *TurnRepo) FindTurn(ctx context.Context, matchID string, number int) (*model.Turn, error) {
	t, err := scanTurn(r.db.QueryRowContext(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE match_id = $1 AND number = $2`, matchID, number,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find turn: %w", err)
	}
	return t, nil
}

// ListTurns returns every turn of a match in order.
func (r *TurnRepo) ListTurns(ctx context.Context, matchID string) ([]model.Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE match_id = $1 ORDER BY number`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, *t)
	}
	return turns, rows.Err()
}

// UpdateState rewrites the board of an unresolved turn.
func (r *TurnRepo) UpdateState(ctx context.Context, turnID string, state json.RawMessage) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE turns SET state_before = $1 WHERE id = $2 AND resolved_at IS NULL`,
		[]byte(state), turnID,
	)
	if err != nil {
		return fmt.Errorf("update turn state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update turn state %s: %w", turnID, sql.ErrNoRows)
	}
	return nil
}

// ResolveTurn stores the outcome of a turn and opens the next one.
func (r *TurnRepo) ResolveTurn(ctx context.Context, res repository.TurnResolution) (*model.Turn, error) {
	var next *model.Turn
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		upd, err := tx.ExecContext(ctx,
			`UPDATE turns SET state_after = $1, report = $2, resolved_at = now()
			 WHERE id = $3 AND resolved_at IS NULL`,
			[]byte(res.StateAfter), nullStr(res.Report), res.TurnID,
		)
		if err != nil {
			return fmt.Errorf("resolve turn: %w", err)
		}
		if n, _ := upd.RowsAffected(); n == 0 {
			return fmt.Errorf("resolve turn %s: %w", res.TurnID, sql.ErrNoRows)
		}

		if err := insertCommands(ctx, tx, res.TurnID, res.Commands); err != nil {
			return err
		}
		if err := insertBattles(ctx, tx, res.TurnID, res.Battles); err != nil {
			return err
		}

		next, err = scanTurn(tx.QueryRowContext(ctx,
			`INSERT INTO turns (match_id, number, state_before) VALUES ($1, $2, $3)
			 RETURNING `+turnColumns,
			res.MatchID, res.NextNumber, []byte(res.StateAfter),
		))
		if err != nil {
			return fmt.Errorf("create next turn: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func insertCommands(ctx context.Context, tx *sql.Tx, turnID string, cmds []model.Command) error {
	if len(cmds) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO commands (id, turn_id, player_id, ord, type, source, destination, token_type, conversion,
		                       value_conversion, valid, reverted_in_draw, description)
		 VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
	if err != nil {
		return fmt.Errorf("prepare insert command: %w", err)
	}
	defer stmt.Close()

	for _, c := range cmds {
		_, err := stmt.ExecContext(ctx, nullStr(c.ID), turnID, c.PlayerID, c.Order, c.Type, c.Source, c.Destination, c.TokenType,
			c.Conversion, c.ValueConversion, c.Valid, c.RevertedInDraw, nullStr(c.Description))
		if err != nil {
			return fmt.Errorf("insert command: %w", err)
		}
	}
	return nil
}

func insertBattles(ctx context.Context, tx *sql.Tx, turnID string, battles []model.Battle) error {
	if len(battles) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO battles (turn_id, region, step, winner, winning, captured)
		 VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("prepare insert battle: %w", err)
	}
	defer stmt.Close()

	for _, b := range battles {
		_, err := stmt.ExecContext(ctx, turnID, b.Region, b.Step, nullStr(b.Winner),
			pq.Int64Array(toInt64s(b.Winning)), pq.Int64Array(toInt64s(b.Captured)))
		if err != nil {
			return fmt.Errorf("insert battle: %w", err)
		}
	}
	return nil
}

// CommandsByTurn returns the resolved commands of a turn in processing
// order: seat order, then each player's command order.
func (r *TurnRepo) CommandsByTurn(ctx context.Context, turnID string) ([]model.Command, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.turn_id, c.player_id, c.ord, c.type, c.source, c.destination, c.token_type, c.conversion,
		        c.value_conversion, c.valid, c.reverted_in_draw, c.description, c.created_at
		 FROM commands c
		 JOIN turns t ON t.id = c.turn_id
		 LEFT JOIN match_players mp ON mp.match_id = t.match_id AND mp.user_id = c.player_id
		 WHERE c.turn_id = $1
		 ORDER BY mp.seat, c.ord`, turnID)
	if err != nil {
		return nil, fmt.Errorf("commands by turn: %w", err)
	}
	defer rows.Close()

	var cmds []model.Command
	for rows.Next() {
		var c model.Command
		var desc sql.NullString
		if err := rows.Scan(&c.ID, &c.TurnID, &c.PlayerID, &c.Order, &c.Type, &c.Source, &c.Destination, &c.TokenType,
			&c.Conversion, &c.ValueConversion, &c.Valid, &c.RevertedInDraw, &desc, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		c.Description = desc.String
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// BattlesByTurn returns the battle log of a turn by pass and region.
func (r *TurnRepo) BattlesByTurn(ctx context.Context, turnID string) ([]model.Battle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, turn_id, region, step, winner, winning, captured
		 FROM battles WHERE turn_id = $1 ORDER BY step, region`, turnID)
	if err != nil {
		return nil, fmt.Errorf("battles by turn: %w", err)
	}
	defer rows.Close()

	var battles []model.Battle
	for rows.Next() {
		var b model.Battle
		var winner sql.NullString
		var winning, captured pq.Int64Array
		if err := rows.Scan(&b.ID, &b.TurnID, &b.Region, &b.Step, &winner, &winning, &captured); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		b.Winner = winner.String
		b.Winning = toInts(winning)
		b.Captured = toInts(captured)
		battles = append(battles, b)
	}
	return battles, rows.Err()
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func toInts(in []int64) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
