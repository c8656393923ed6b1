package migrate

import (
	"database/sql"

	"place-boundaries/internal/logger"
)

// 背景：首次运行自动创建要素存储所需表与索引，保障后续写入与读取
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构；几何列为 WKB bytea，不要求 PostGIS
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _pb_datasets (
            name TEXT PRIMARY KEY,
            srid INT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS _pb_features (
            dataset TEXT NOT NULL REFERENCES _pb_datasets(name) ON DELETE CASCADE,
            fid BIGINT NOT NULL,
            legal_place_name TEXT NOT NULL DEFAULT '',
            place_type TEXT NOT NULL DEFAULT '',
            place_name TEXT NOT NULL DEFAULT '',
            category TEXT NULL,
            attrs JSONB NOT NULL DEFAULT '{}'::jsonb,
            geom BYTEA NOT NULL,
            PRIMARY KEY (dataset, fid)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_pb_features_name ON _pb_features(dataset, legal_place_name)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
