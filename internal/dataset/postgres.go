package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"place-boundaries/internal/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// 文档注释：PostgreSQL 要素存储
// 背景：多台作业机共享同一工作空间时使用；几何以 WKB（bytea）保存，不依赖 PostGIS 扩展；属性以 jsonb 保存。
// 约束：表结构由 migrate.EnsureSchema 创建；Save 为整体替换，Update 在单个事务内按 (dataset, fid) 改写，任一行未命中即回滚。
type PostgresStore struct {
	db *sqlx.DB
}

// AttachPostgres：包装已打开的连接池
func AttachPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "postgres")}
}

type featureRow struct {
	FID            int64          `db:"fid"`
	LegalPlaceName string         `db:"legal_place_name"`
	PlaceType      string         `db:"place_type"`
	PlaceName      string         `db:"place_name"`
	Category       sql.NullString `db:"category"`
	Attrs          []byte         `db:"attrs"`
	Geom           []byte         `db:"geom"`
}

func (s *PostgresStore) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM _pb_datasets WHERE name=$1`, name); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) Load(ctx context.Context, name string) (*Dataset, error) {
	var srid int
	err := s.db.GetContext(ctx, &srid, `SELECT srid FROM _pb_datasets WHERE name=$1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	var rows []featureRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT fid, legal_place_name, place_type, place_name, category, attrs, geom
        FROM _pb_features WHERE dataset=$1 ORDER BY fid`, name); err != nil {
		return nil, err
	}
	ds := &Dataset{Name: name, SRID: srid, Features: make([]Feature, 0, len(rows))}
	for _, r := range rows {
		f, err := r.feature()
		if err != nil {
			return nil, fmt.Errorf("dataset %q fid %d: %w", name, r.FID, err)
		}
		ds.Features = append(ds.Features, f)
	}
	logger.L().Debug("pg_dataset_load", "name", name, "features", len(ds.Features))
	return ds, nil
}

func (r featureRow) feature() (Feature, error) {
	f := Feature{ID: r.FID, LegalPlaceName: r.LegalPlaceName, PlaceType: r.PlaceType, PlaceName: r.PlaceName}
	if r.Category.Valid {
		f.Category = Str(r.Category.String)
	}
	if len(r.Attrs) > 0 {
		if err := json.Unmarshal(r.Attrs, &f.Attrs); err != nil {
			return f, err
		}
	}
	g, err := wkb.Unmarshal(r.Geom)
	if err != nil {
		return f, err
	}
	switch v := g.(type) {
	case orb.MultiPolygon:
		f.Geometry = v
	case orb.Polygon:
		f.Geometry = orb.MultiPolygon{v}
	default:
		return f, fmt.Errorf("unexpected geometry %s", g.GeoJSONType())
	}
	return f, nil
}

func encodeFeature(f Feature) (attrs string, geom []byte, cat sql.NullString, err error) {
	a := f.Attrs
	if a == nil {
		a = map[string]any{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", nil, cat, err
	}
	mp := f.Geometry
	if mp == nil {
		mp = orb.MultiPolygon{}
	}
	geom, err = wkb.Marshal(mp)
	if err != nil {
		return "", nil, cat, err
	}
	if f.Category != nil {
		cat = sql.NullString{String: *f.Category, Valid: true}
	}
	return string(b), geom, cat, nil
}

func (s *PostgresStore) Save(ctx context.Context, ds *Dataset) error {
	if err := checkIDs(ds); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM _pb_features WHERE dataset=$1`, ds.Name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _pb_datasets(name, srid) VALUES($1,$2)
        ON CONFLICT (name) DO UPDATE SET srid=EXCLUDED.srid, updated_at=now()`, ds.Name, ds.SRID); err != nil {
		return err
	}
	stmt, err := tx.PreparexContext(ctx, `INSERT INTO _pb_features(dataset, fid, legal_place_name, place_type, place_name, category, attrs, geom)
        VALUES($1,$2,$3,$4,$5,$6,$7::jsonb,$8)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, f := range ds.Features {
		attrs, geom, cat, err := encodeFeature(f)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, ds.Name, f.ID, f.LegalPlaceName, f.PlaceType, f.PlaceName, cat, attrs, geom); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Debug("pg_dataset_save", "name", ds.Name, "features", len(ds.Features))
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, name string, fs []Feature) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PreparexContext(ctx, `UPDATE _pb_features SET legal_place_name=$3, place_type=$4, place_name=$5, category=$6, attrs=$7::jsonb, geom=$8
        WHERE dataset=$1 AND fid=$2`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, f := range fs {
		attrs, geom, cat, err := encodeFeature(f)
		if err != nil {
			return err
		}
		res, err := stmt.ExecContext(ctx, name, f.ID, f.LegalPlaceName, f.PlaceType, f.PlaceName, cat, attrs, geom)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("%w: %d in %q", ErrUnknownFeature, f.ID, name)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Debug("pg_dataset_update", "name", name, "features", len(fs))
	return nil
}
