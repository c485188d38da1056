package postgres

import (
	"context"
	"fmt"

	"agendly/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Migration struct {
	Name string
	SQL  string
}

// Migrations are applied in order, each at most once, and recorded in
// schema_migrations.
var Migrations = []Migration{
	{
		Name: "0001_btree_gist",
		SQL:  `CREATE EXTENSION IF NOT EXISTS btree_gist`,
	},
	{
		Name: "0002_reservations",
		SQL: `
CREATE TABLE IF NOT EXISTS reservations (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	start_at       TIMESTAMPTZ NOT NULL,
	end_at         TIMESTAMPTZ NOT NULL,
	status         TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed')),
	staff_id       TEXT,
	location_id    TEXT,
	service_id     TEXT,
	customer_name  TEXT,
	customer_phone TEXT,
	notes          TEXT,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	CHECK (end_at > start_at),
	CONSTRAINT reservations_staff_no_overlap EXCLUDE USING gist (
		tenant_id WITH =,
		staff_id WITH =,
		tstzrange(start_at, end_at, '[)') WITH &&
	) WHERE (staff_id IS NOT NULL AND status IN ('pending', 'confirmed')),
	CONSTRAINT reservations_location_no_overlap EXCLUDE USING gist (
		tenant_id WITH =,
		location_id WITH =,
		tstzrange(start_at, end_at, '[)') WITH &&
	) WHERE (location_id IS NOT NULL AND status IN ('pending', 'confirmed'))
);
CREATE INDEX IF NOT EXISTS reservations_tenant_window_idx
	ON reservations (tenant_id, start_at, end_at) WHERE status IN ('pending', 'confirmed');`,
	},
	{
		Name: "0003_staff_availability",
		SQL: `
CREATE TABLE IF NOT EXISTS staff_availability (
	tenant_id    TEXT NOT NULL,
	staff_id     TEXT NOT NULL,
	day_of_week  SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
	work_start   TEXT NOT NULL,
	work_end     TEXT NOT NULL,
	break_start  TEXT,
	break_end    TEXT,
	is_available BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, staff_id, day_of_week)
);`,
	},
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range Migrations {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", m.Name, err)
		}

		tag, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING`, m.Name)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
		}
		if tag.RowsAffected() == 0 {
			_ = tx.Rollback(ctx)
			log.Debug("Migration already applied", "migration", m.Name)
			continue
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Name, err)
		}
		log.Info("Applied Postgres migration", "migration", m.Name)
	}

	log.Info("All Postgres migrations applied")
	return nil
}
