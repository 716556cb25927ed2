package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rmax-ai/thermonet/pkg/network"
	"github.com/rmax-ai/thermonet/pkg/results"
)

func (s *Store) insertRun(ctx context.Context, tx *sql.Tx, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	var report any
	if len(run.Report) > 0 {
		report = string(run.Report)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, kind, name, input_hash, created_at, report)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunID, string(run.Kind), run.Name, run.InputHash, run.CreatedAt.UTC(), report)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.RunID, err)
	}
	return nil
}

// SaveClusterRun persists a cluster run and its clustered network.
func (s *Store) SaveClusterRun(ctx context.Context, run Run, snap network.Snapshot) error {
	run.Kind = RunKindCluster
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal topology: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertRun(ctx, tx, run); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO topologies (run_id, forks, consumers, pipes, snapshot)
		VALUES (?, ?, ?, ?, ?)
	`, run.RunID, len(snap.Forks), len(snap.Consumers), len(snap.Pipes), string(payload)); err != nil {
		return fmt.Errorf("failed to insert topology: %w", err)
	}

	return tx.Commit()
}

// SaveResultRun persists a result run with its summary, flow report and
// totals.
func (s *Store) SaveResultRun(ctx context.Context, run Run, res *results.Result) error {
	run.Kind = RunKindResults

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertRun(ctx, tx, run); err != nil {
		return err
	}

	rowStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO summary_rows (
			run_id, position, component_id, component_type,
			input_1, input_2, output_1, output_2, capacity,
			variable_costs, periodical_costs, investment, max_investment, constraint_costs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare summary insert: %w", err)
	}
	defer rowStmt.Close()
	for i, r := range res.Summary {
		if _, err := rowStmt.ExecContext(ctx, run.RunID, i, r.ID, r.Type,
			r.Input1, r.Input2, r.Output1, r.Output2, r.Capacity,
			r.VariableCost, r.PeriodicalCost, r.Investment, r.MaxInvestment, r.ConstraintCost); err != nil {
			return fmt.Errorf("failed to insert summary row %s: %w", r.ID, err)
		}
	}

	colStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flow_columns (run_id, position, name, series) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare flow insert: %w", err)
	}
	defer colStmt.Close()
	for i, c := range res.Report.Columns {
		series, err := json.Marshal(c.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal column %s: %w", c.Name, err)
		}
		if _, err := colStmt.ExecContext(ctx, run.RunID, i, c.Name, string(series)); err != nil {
			return fmt.Errorf("failed to insert column %s: %w", c.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO totals (run_id, periodical_costs, variable_costs, constraint_costs, demand)
		VALUES (?, ?, ?, ?, ?)
	`, run.RunID, res.Totals.PeriodicalCost, res.Totals.VariableCost, res.Totals.ConstraintCost, res.Demand); err != nil {
		return fmt.Errorf("failed to insert totals: %w", err)
	}

	return tx.Commit()
}

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r      Run
		kind   string
		report sql.NullString
	)
	if err := row.Scan(&r.RunID, &kind, &r.Name, &r.InputHash, &r.CreatedAt, &report); err != nil {
		return Run{}, err
	}
	r.Kind = RunKind(kind)
	if report.Valid {
		r.Report = json.RawMessage(report.String)
	}
	return r, nil
}

// GetRun returns one run envelope.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, kind, name, input_hash, created_at, report
		FROM runs WHERE run_id = ?
	`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &r, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT run_id, kind, name, input_hash, created_at, report FROM runs WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC())
	}
	query += " ORDER BY created_at DESC, run_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FindRunByInput returns the newest run of kind created from the input
// hash.
func (s *Store) FindRunByInput(ctx context.Context, kind RunKind, hash string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, kind, name, input_hash, created_at, report
		FROM runs WHERE kind = ? AND input_hash = ?
		ORDER BY created_at DESC LIMIT 1
	`, string(kind), hash)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("input %s: %w", hash, ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	return &r, nil
}

// GetTopology returns the clustered network of a cluster run.
func (s *Store) GetTopology(ctx context.Context, runID string) (network.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM topologies WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return network.Snapshot{}, fmt.Errorf("topology %s: %w", runID, ErrRunNotFound)
		}
		return network.Snapshot{}, fmt.Errorf("failed to get topology: %w", err)
	}
	var snap network.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return network.Snapshot{}, fmt.Errorf("failed to unmarshal topology: %w", err)
	}
	return snap, nil
}

// GetSummary returns the summary rows of a result run in their original
// order.
func (s *Store) GetSummary(ctx context.Context, runID string) ([]results.SummaryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT component_id, component_type, input_1, input_2, output_1, output_2, capacity,
			variable_costs, periodical_costs, investment, max_investment, constraint_costs
		FROM summary_rows WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	summary := []results.SummaryRow{}
	for rows.Next() {
		var r results.SummaryRow
		if err := rows.Scan(&r.ID, &r.Type, &r.Input1, &r.Input2, &r.Output1, &r.Output2, &r.Capacity,
			&r.VariableCost, &r.PeriodicalCost, &r.Investment, &r.MaxInvestment, &r.ConstraintCost); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary = append(summary, r)
	}
	return summary, rows.Err()
}

// GetFlowReport returns the flow report of a result run.
func (s *Store) GetFlowReport(ctx context.Context, runID string) (results.FlowReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, series FROM flow_columns WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return results.FlowReport{}, fmt.Errorf("failed to query flow report: %w", err)
	}
	defer rows.Close()

	var report results.FlowReport
	for rows.Next() {
		var (
			c      results.Column
			series string
		)
		if err := rows.Scan(&c.Name, &series); err != nil {
			return results.FlowReport{}, fmt.Errorf("failed to scan column: %w", err)
		}
		if err := json.Unmarshal([]byte(series), &c.Values); err != nil {
			return results.FlowReport{}, fmt.Errorf("failed to unmarshal column %s: %w", c.Name, err)
		}
		report.Columns = append(report.Columns, c)
	}
	return report, rows.Err()
}

// GetTotals returns the cost totals and adjusted demand of a result run.
func (s *Store) GetTotals(ctx context.Context, runID string) (ResultTables, error) {
	var t ResultTables
	err := s.db.QueryRowContext(ctx, `
		SELECT periodical_costs, variable_costs, constraint_costs, demand
		FROM totals WHERE run_id = ?
	`, runID).Scan(&t.Totals.PeriodicalCost, &t.Totals.VariableCost, &t.Totals.ConstraintCost, &t.Demand)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ResultTables{}, fmt.Errorf("totals %s: %w", runID, ErrRunNotFound)
		}
		return ResultTables{}, fmt.Errorf("failed to get totals: %w", err)
	}
	return t, nil
}

// PruneRuns deletes runs created before cutoff together with their
// tables. It returns the number of runs deleted.
func (s *Store) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n, nil
}
