package scheduler

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/pkg/logger"
	"github.com/substrate-hq/substrate/pkg/pgutils"
	"github.com/substrate-hq/substrate/pkg/retry"
)

// Tasks holds the store's maintenance jobs.
type Tasks struct {
	db  bun.IDB
	log *slog.Logger
}

// NewTasks creates the maintenance task set.
func NewTasks(db bun.IDB, log *slog.Logger) *Tasks {
	return &Tasks{
		db:  db,
		log: log.With(logger.Scope("scheduler.tasks")),
	}
}

// RefreshGroupUsage materializes per-group entity counts into
// ont.group_usage, keeping quota admission checks off the hot path tables.
func (t *Tasks) RefreshGroupUsage(ctx context.Context) error {
	// The aggregate scan can deadlock against a burst of mutations; retry
	// instead of waiting for the next tick.
	err := retry.Do(ctx, retry.DefaultPolicy, pgutils.IsTransient, func() error {
		return t.refreshGroupUsage(ctx)
	})
	if err != nil {
		return err
	}

	t.log.Debug("group usage refreshed")
	return nil
}

func (t *Tasks) refreshGroupUsage(ctx context.Context) error {
	_, err := t.db.NewRaw(`
		INSERT INTO ont.group_usage (group_id, thing_count, connection_count, knowledge_count, refreshed_at)
		SELECT
			g.id,
			coalesce(tc.n, 0),
			coalesce(cc.n, 0),
			coalesce(kc.n, 0),
			now()
		FROM ont.groups g
		LEFT JOIN (
			SELECT group_id, count(*) AS n
			FROM ont.things
			WHERE status != 'archived'
			GROUP BY group_id
		) tc ON tc.group_id = g.id
		LEFT JOIN (
			SELECT group_id, count(*) AS n
			FROM ont.connections
			WHERE valid_to IS NULL OR valid_to > now()
			GROUP BY group_id
		) cc ON cc.group_id = g.id
		LEFT JOIN (
			SELECT group_id, count(*) AS n
			FROM ont.knowledge
			GROUP BY group_id
		) kc ON kc.group_id = g.id
		ON CONFLICT (group_id) DO UPDATE SET
			thing_count = EXCLUDED.thing_count,
			connection_count = EXCLUDED.connection_count,
			knowledge_count = EXCLUDED.knowledge_count,
			refreshed_at = EXCLUDED.refreshed_at
	`).Exec(ctx)
	return err
}

// AuditOrderings logs ordered connection families whose active sequence has
// drifted: duplicates or gaps in seq. Drift means a reorder raced something
// it should not have; the log line is the paper trail.
func (t *Tasks) AuditOrderings(ctx context.Context) error {
	type driftRow struct {
		FromThingID string `bun:"from_thing_id"`
		Type        string `bun:"type"`
		Count       int    `bun:"n"`
		MaxSeq      int    `bun:"max_seq"`
		DistinctSeq int    `bun:"distinct_seq"`
	}

	var rows []driftRow
	err := t.db.NewRaw(`
		SELECT from_thing_id, type,
			count(*) AS n,
			max(seq) AS max_seq,
			count(DISTINCT seq) AS distinct_seq
		FROM ont.connections
		WHERE seq IS NOT NULL
			AND (valid_to IS NULL OR valid_to > now())
		GROUP BY from_thing_id, type
		HAVING count(DISTINCT seq) != count(*)
			OR max(seq) != count(*) - 1
	`).Scan(ctx, &rows)
	if err != nil {
		return err
	}

	for _, row := range rows {
		t.log.Warn("ordering drift detected",
			slog.String("from_thing_id", row.FromThingID),
			slog.String("type", row.Type),
			slog.Int("members", row.Count),
			slog.Int("max_seq", row.MaxSeq),
			slog.Int("distinct_seq", row.DistinctSeq),
		)
	}
	if len(rows) == 0 {
		t.log.Debug("ordering audit clean")
	}
	return nil
}
