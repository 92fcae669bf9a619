package source

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"gamecal/internal/log"
	"gamecal/internal/model"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const eventsQuery = `
	SELECT e.id::text, e.title, e.start_time, e.end_time, e.location,
	       c.id::text, c.name, c.color,
	       d.text, d.link, d.image_url
	FROM events e
	LEFT JOIN categories c ON c.id = e.category_id
	LEFT JOIN event_descriptions d ON d.id = e.description_id
	WHERE e.is_active = true
	ORDER BY e.start_time ASC
`

const categoriesQuery = `
	SELECT id::text, name, color
	FROM categories
	ORDER BY name ASC
`

// Database reads active events and their categories from Postgres. The
// schema carries no visibility flag: inactive rows are excluded by the query.
type Database struct {
	pool *pgxpool.Pool
	log  *log.Logger
}

// OpenDatabase connects to dsn. An empty dsn returns ErrNotConfigured.
func OpenDatabase(ctx context.Context, dsn string, logger *log.Logger) (*Database, error) {
	if dsn == "" {
		return nil, ErrNotConfigured
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	return &Database{pool: pool, log: logger}, nil
}

func (d *Database) Close() {
	d.pool.Close()
}

// ApplyMigrations brings the schema up to date.
func (d *Database) ApplyMigrations() error {
	migrationsDB := stdlib.OpenDBFromPool(d.pool)
	defer migrationsDB.Close()

	goose.SetLogger(slog.NewLogLogger(d.log.Slog().Handler(), slog.LevelInfo))

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect(string(goose.DialectPostgres)); err != nil {
		return err
	}

	if err := goose.Up(migrationsDB, "migrations"); err != nil {
		return err
	}

	return nil
}

// eventRow mirrors one row of eventsQuery. Joined columns are nullable.
type eventRow struct {
	ID       string
	Title    string
	Start    time.Time
	End      *time.Time
	Location *string

	CategoryID    *string
	CategoryName  *string
	CategoryColor *string

	Text  *string
	Link  *string
	Image *string
}

func (r eventRow) record() model.Record {
	rec := model.Record{
		ID:          r.ID,
		Name:        r.Title,
		Start:       r.Start,
		Location:    deref(r.Location),
		Category:    deref(r.CategoryID),
		Description: deref(r.Text),
		Link:        deref(r.Link),
		Image:       deref(r.Image),
	}
	if r.End != nil {
		rec.End = *r.End
	}
	return rec
}

func (r eventRow) category() (model.Category, bool) {
	if r.CategoryID == nil {
		return model.Category{}, false
	}
	return model.Category{
		ID:    *r.CategoryID,
		Label: deref(r.CategoryName),
		Color: deref(r.CategoryColor),
	}, true
}

func (d *Database) Fetch(ctx context.Context) ([]model.Record, error) {
	rows, err := d.pool.Query(ctx, eventsQuery)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []model.Record{}
	for rows.Next() {
		var r eventRow
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Start, &r.End, &r.Location,
			&r.CategoryID, &r.CategoryName, &r.CategoryColor,
			&r.Text, &r.Link, &r.Image,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, r.record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	d.log.Info("database fetch success", "records", len(out))
	return out, nil
}

// Categories lists every category ordered by name.
func (d *Database) Categories(ctx context.Context) ([]model.Category, error) {
	rows, err := d.pool.Query(ctx, categoriesQuery)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		var color *string
		if err := rows.Scan(&c.ID, &c.Label, &color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Color = deref(color)
		out = append(out, c)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
