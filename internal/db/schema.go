package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RequiredTables are the tables the bundle loader reads
var RequiredTables = []string{"city", "corridor", "line", "line_path", "carrier", "carrier_variant"}

// schema creates the normalized network tables. carrier_variant stores each
// variant as an ordered text array.
const schema = `
CREATE TABLE IF NOT EXISTS city (
	id              TEXT PRIMARY KEY,
	label           TEXT NOT NULL DEFAULT '',
	x               DOUBLE PRECISION NOT NULL DEFAULT 0,
	y               DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_hub          BOOLEAN NOT NULL DEFAULT FALSE,
	is_corridor_hub BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS corridor (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	color      TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS line (
	id          TEXT PRIMARY KEY,
	corridor_id TEXT NOT NULL REFERENCES corridor(id),
	name        TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '',
	style       TEXT NOT NULL DEFAULT 'solid',
	draw_order  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS line_path (
	line_id    TEXT NOT NULL REFERENCES line(id),
	variant_id TEXT NOT NULL DEFAULT '',
	seq        INTEGER NOT NULL,
	city_id    TEXT NOT NULL REFERENCES city(id),
	PRIMARY KEY (line_id, variant_id, seq)
);

CREATE TABLE IF NOT EXISTS carrier (
	name  TEXT PRIMARY KEY,
	label TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	tags  TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS carrier_variant (
	carrier_name TEXT NOT NULL REFERENCES carrier(name),
	position     INTEGER NOT NULL,
	city_ids     TEXT[] NOT NULL,
	PRIMARY KEY (carrier_name, position)
);
`

// EnsureSchema creates the network tables if they are missing
func EnsureSchema(ctx context.Context, p *pgxpool.Pool) error {
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
