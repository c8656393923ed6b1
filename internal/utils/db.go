// 包 utils：外部连接工具（PostgreSQL、Redis），统一环境变量读取
package utils

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

// OpenPostgres：按 DSN 打开连接池并探活
// 约束：5 秒内无法 Ping 通视为失败并关闭连接池，避免作业运行到写出阶段才暴露连接问题
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

// BuildPostgresDSNFromEnv：PG_DSN 优先；否则由 PG_HOST/PG_PORT/PG_USER/PG_PASSWORD/PG_DB/PG_SSLMODE 拼装
func BuildPostgresDSNFromEnv() string {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		return dsn
	}
	dsn := "postgres://" + envOr("PG_USER", "postgres")
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + envOr("PG_HOST", "localhost") + ":" + envOr("PG_PORT", "5432") +
		"/" + envOr("PG_DB", "boundaries") + "?sslmode=" + envOr("PG_SSLMODE", "disable")
	return dsn
}

// OpenPostgresFromEnv：批处理作业连接数需求小，默认 4/2，可用 PG_MAX_OPEN_CONNS/PG_MAX_IDLE_CONNS 覆盖
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := OpenPostgres(BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(envInt("PG_MAX_OPEN_CONNS", 4))
	db.SetMaxIdleConns(envInt("PG_MAX_IDLE_CONNS", 2))
	return db, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil && n > 0 {
		return n
	}
	return def
}
