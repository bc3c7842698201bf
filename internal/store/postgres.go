package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/corridor_router/internal/models"
	"golang.org/x/sync/errgroup"
)

const batchSize = 1000

// PostgresSource loads the bundle from the normalized network tables
type PostgresSource struct {
	db *pgxpool.Pool
}

// NewPostgresSource creates a loader over a pool
func NewPostgresSource(db *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{db: db}
}

// LoadBundle reads every table concurrently
func (s *PostgresSource) LoadBundle(ctx context.Context) (models.Bundle, error) {
	start := time.Now()
	var bundle models.Bundle

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bundle.Cities, err = s.loadCities(ctx)
		return err
	})
	g.Go(func() (err error) {
		bundle.Corridors, err = s.loadCorridors(ctx)
		return err
	})
	g.Go(func() (err error) {
		bundle.Lines, err = s.loadLines(ctx)
		return err
	})
	g.Go(func() (err error) {
		bundle.LinePaths, err = s.loadLinePaths(ctx)
		return err
	})
	g.Go(func() (err error) {
		bundle.Carriers, err = s.loadCarriers(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Bundle{}, err
	}

	log.Printf("Loaded bundle from database in %s: %d cities, %d lines, %d path entries, %d carriers",
		time.Since(start).Round(time.Millisecond), len(bundle.Cities), len(bundle.Lines),
		len(bundle.LinePaths), len(bundle.Carriers))
	return bundle, nil
}

func (s *PostgresSource) loadCities(ctx context.Context) ([]models.City, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, label, x, y, is_hub, is_corridor_hub
		FROM city
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	defer rows.Close()

	var cities []models.City
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.ID, &c.Label, &c.X, &c.Y, &c.IsHub, &c.IsCorridorHub); err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func (s *PostgresSource) loadCorridors(ctx context.Context) ([]models.Corridor, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, color, sort_order
		FROM corridor
		ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query corridors: %w", err)
	}
	defer rows.Close()

	var corridors []models.Corridor
	for rows.Next() {
		var c models.Corridor
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Order); err != nil {
			return nil, fmt.Errorf("failed to scan corridor: %w", err)
		}
		corridors = append(corridors, c)
	}
	return corridors, rows.Err()
}

func (s *PostgresSource) loadLines(ctx context.Context) ([]models.Line, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, corridor_id, name, color, style, draw_order
		FROM line
		ORDER BY draw_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var lines []models.Line
	for rows.Next() {
		var l models.Line
		var style string
		if err := rows.Scan(&l.ID, &l.CorridorID, &l.Name, &l.Color, &style, &l.DrawOrder); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		l.Style = models.LineStyle(style)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *PostgresSource) loadLinePaths(ctx context.Context) ([]models.LinePath, error) {
	rows, err := s.db.Query(ctx, `
		SELECT line_id, variant_id, seq, city_id
		FROM line_path
		ORDER BY line_id, variant_id, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query line paths: %w", err)
	}
	defer rows.Close()

	var paths []models.LinePath
	for rows.Next() {
		var p models.LinePath
		if err := rows.Scan(&p.LineID, &p.VariantID, &p.Seq, &p.CityID); err != nil {
			return nil, fmt.Errorf("failed to scan line path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *PostgresSource) loadCarriers(ctx context.Context) ([]models.Carrier, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.name, c.label, c.phone, c.tags, v.city_ids
		FROM carrier c
		LEFT JOIN carrier_variant v ON v.carrier_name = c.name
		ORDER BY c.name, v.position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query carriers: %w", err)
	}
	defer rows.Close()

	var carriers []models.Carrier
	for rows.Next() {
		var c models.Carrier
		var cities []string
		if err := rows.Scan(&c.Name, &c.Label, &c.Phone, &c.Tags, &cities); err != nil {
			return nil, fmt.Errorf("failed to scan carrier variant: %w", err)
		}
		if n := len(carriers); n == 0 || carriers[n-1].Name != c.Name {
			carriers = append(carriers, c)
		}
		// cities is nil for a carrier without variants
		if cities != nil {
			last := &carriers[len(carriers)-1]
			last.Variants = append(last.Variants, models.RouteVariant{CityIDs: cities})
		}
	}
	return carriers, rows.Err()
}

// SaveBundle replaces the network tables with the bundle in one transaction
func (s *PostgresSource) SaveBundle(ctx context.Context, bundle models.Bundle) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE carrier_variant, carrier, line_path, line, corridor, city`); err != nil {
		return fmt.Errorf("failed to clear tables: %w", err)
	}

	batch := &pgx.Batch{}
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := executeBatch(ctx, tx, batch); err != nil {
			return err
		}
		batch = &pgx.Batch{}
		return nil
	}
	queue := func(sql string, args ...interface{}) error {
		batch.Queue(sql, args...)
		if batch.Len() >= batchSize {
			return flush()
		}
		return nil
	}

	for _, c := range bundle.Cities {
		if err := queue(`INSERT INTO city (id, label, x, y, is_hub, is_corridor_hub) VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.Label, c.X, c.Y, c.IsHub, c.IsCorridorHub); err != nil {
			return err
		}
	}
	for _, c := range bundle.Corridors {
		if err := queue(`INSERT INTO corridor (id, name, color, sort_order) VALUES ($1, $2, $3, $4)`,
			c.ID, c.Name, c.Color, c.Order); err != nil {
			return err
		}
	}
	// lines reference corridors, paths reference lines and cities
	if err := flush(); err != nil {
		return err
	}
	for _, l := range bundle.Lines {
		style := l.Style
		if style == "" {
			style = models.StyleSolid
		}
		if err := queue(`INSERT INTO line (id, corridor_id, name, color, style, draw_order) VALUES ($1, $2, $3, $4, $5, $6)`,
			l.ID, l.CorridorID, l.Name, l.Color, string(style), l.DrawOrder); err != nil {
			return err
		}
	}
	if err := flush(); err != nil {
		return err
	}
	for _, p := range bundle.LinePaths {
		if err := queue(`INSERT INTO line_path (line_id, variant_id, seq, city_id) VALUES ($1, $2, $3, $4)`,
			p.LineID, p.VariantID, p.Seq, p.CityID); err != nil {
			return err
		}
	}
	carriers := mergeCarriers(bundle.Carriers)
	for _, c := range carriers {
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		if err := queue(`INSERT INTO carrier (name, label, phone, tags) VALUES ($1, $2, $3, $4)`,
			c.Name, c.Label, c.Phone, tags); err != nil {
			return err
		}
	}
	if err := flush(); err != nil {
		return err
	}
	for _, c := range carriers {
		for i, v := range c.Variants {
			if err := queue(`INSERT INTO carrier_variant (carrier_name, position, city_ids) VALUES ($1, $2, $3)`,
				c.Name, i, v.CityIDs); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bundle: %w", err)
	}

	log.Printf("Saved bundle: %d cities, %d lines, %d path entries, %d carriers",
		len(bundle.Cities), len(bundle.Lines), len(bundle.LinePaths), len(bundle.Carriers))
	return nil
}

// mergeCarriers folds carriers sharing a name into the first one, keeping its
// metadata and concatenating the variants
func mergeCarriers(carriers []models.Carrier) []models.Carrier {
	merged := make([]models.Carrier, 0, len(carriers))
	pos := make(map[string]int, len(carriers))
	for _, c := range carriers {
		if i, ok := pos[c.Name]; ok {
			merged[i].Variants = append(merged[i].Variants, c.Variants...)
			continue
		}
		pos[c.Name] = len(merged)
		c.Variants = append([]models.RouteVariant(nil), c.Variants...)
		merged = append(merged, c)
	}
	return merged
}

func executeBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch execution failed at query %d: %w", i, err)
		}
	}

	return nil
}
