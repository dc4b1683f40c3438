// Package pg implementa history.Store sobre Postgres con pgxpool.
package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/secproto/internal/history"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/report"
	"github.com/dropDatabas3/secproto/migrations/postgres"
)

type Store struct{ pool *pgxpool.Pool }

var _ history.Store = (*Store)(nil)

// New abre el pool. Si el ping inicial falla se devuelve el error: sin
// historia la corrida sigue, pero el llamador decide.
func New(ctx context.Context, dsn string) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history dsn: %w", err)
	}
	if pcfg.MaxConns == 0 || pcfg.MaxConns > 4 {
		pcfg.MaxConns = 4
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history ping: %w", err)
	}
	logger.From(ctx).Info("history pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	return &Store{pool: pool}, nil
}

// Close es idempotente.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema aplica las migraciones embebidas en orden de nombre.
func (s *Store) EnsureSchema(ctx context.Context) error {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := migrations.FS.ReadFile(n)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("migration %s: %w", n, err)
		}
	}
	return nil
}

const insertRun = `
INSERT INTO runs (id, intent, requested, port, service_name, started_at, finished_at, endpoint_error, summary)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const insertOutcome = `
INSERT INTO cluster_outcomes (run_id, position, cluster, state, classification, skip_reason, error, error_kind,
    failed_hosts, option_changed, rolled_back, rollback_verified, manual_action, hosts, elapsed_seconds)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// Save inserta la corrida y un row por cluster en una transacción.
func (s *Store) Save(ctx context.Context, fr report.FleetReport) error {
	args, err := runArgs(fr)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertRun, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	batch := &pgx.Batch{}
	for i, cr := range fr.Clusters {
		oa, err := outcomeArgs(fr.RunID, i, cr)
		if err != nil {
			return err
		}
		batch.Queue(insertOutcome, oa...)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert cluster outcomes: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	logger.From(ctx).Debug("run saved", logger.RunID(fr.RunID), logger.Count(len(fr.Clusters)))
	return nil
}

func runArgs(fr report.FleetReport) ([]any, error) {
	summary, err := json.Marshal(fr.Summary)
	if err != nil {
		return nil, err
	}
	return []any{fr.RunID, fr.Intent, fr.Requested, fr.Port, fr.ServiceName,
		fr.StartedAt, fr.FinishedAt, fr.Endpoint, summary}, nil
}

func outcomeArgs(runID string, pos int, cr report.ClusterReport) ([]any, error) {
	hosts, err := json.Marshal(cr.Hosts)
	if err != nil {
		return nil, err
	}
	failed := cr.FailedHosts
	if failed == nil {
		failed = []string{}
	}
	return []any{runID, pos, cr.Cluster, cr.State, cr.Classification, cr.SkipReason, cr.Error, cr.ErrorKind,
		failed, cr.OptionChanged, cr.RolledBack, cr.RollbackVerified, cr.ManualAction, hosts, cr.ElapsedSeconds}, nil
}
