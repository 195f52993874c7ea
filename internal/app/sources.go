package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"fiksareport/internal/config"
	"fiksareport/internal/sources"
)

// openedSources holds the sources of one run and the handles they share.
type openedSources struct {
	list   []sources.Source
	sqlite map[string]*sql.DB
	pgPool *pgxpool.Pool
}

func (o *openedSources) Close() {
	for _, db := range o.sqlite {
		_ = db.Close()
	}
	if o.pgPool != nil {
		o.pgPool.Close()
	}
}

func (o *openedSources) IDs() []string {
	ids := make([]string, 0, len(o.list))
	for _, s := range o.list {
		ids = append(ids, s.ID())
	}
	return ids
}

// openSources builds a Source per active config entry. SQLite files are opened
// once per path and Postgres sources share one pool. Opening is lazy for both
// drivers, so an unreachable database shows up as a read failure of the source
// rather than an error here.
func openSources(ctx context.Context, cfg config.Config) (*openedSources, error) {
	out := &openedSources{sqlite: map[string]*sql.DB{}}
	sqlCols := sources.SQLColumns{
		Entity:    cfg.SQLColumns.Entity,
		Status:    cfg.SQLColumns.Status,
		Operator:  cfg.SQLColumns.Operator,
		Timestamp: cfg.SQLColumns.Timestamp,
	}

	for _, sc := range cfg.ActiveSources() {
		switch sc.Kind {
		case config.SourceCSV:
			out.list = append(out.list, sources.NewCSVSource(sc.ID, sc.Operator, sc.Path, cfg.CSVColumns))
		case config.SourceSQLite:
			path := sc.Path
			if path == "" {
				path = cfg.SQLiteSourcePath
			}
			db, ok := out.sqlite[path]
			if !ok {
				var err error
				db, err = sources.OpenSQLite(path)
				if err != nil {
					out.Close()
					return nil, fmt.Errorf("source %s: %w", sc.ID, err)
				}
				out.sqlite[path] = db
			}
			out.list = append(out.list, sources.NewSQLiteSource(sc.ID, sc.Operator, db, sc.Table, sqlCols))
		case config.SourcePostgres:
			if out.pgPool == nil {
				pool, err := sources.OpenPostgres(ctx, cfg.PostgresDSN, int32(cfg.SourceConcurrency))
				if err != nil {
					out.Close()
					return nil, fmt.Errorf("source %s: %w", sc.ID, err)
				}
				out.pgPool = pool
			}
			out.list = append(out.list, sources.NewPostgresSource(sc.ID, sc.Operator, out.pgPool, sc.Table, sqlCols))
		default:
			out.Close()
			return nil, fmt.Errorf("source %s: unknown kind %q", sc.ID, sc.Kind)
		}
	}
	return out, nil
}
