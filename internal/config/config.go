// 包 config：集中读取运行配置；.env 文件由 godotenv 加载，其余沿用环境变量加默认值的方式
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config：一次海岸线切割运行所需的全部参数
type Config struct {
	CoastlineURL     string
	CategoryField    string
	CitiesExclude    []string
	CountiesExclude  []string
	SliverFix        bool
	Threshold        float64
	CacheName        string
	WorkingSRID      int
	ProtectedPath    string
	StoreKind        string
	StoreDir         string
	Namespace        string
	FetchMaxAttempts int
	FetchPageSize    int
	FetchTimeout     time.Duration
	PushgatewayURL   string
	RunLogPath       string
	LockTTL          time.Duration
}

// LoadEnvFiles：加载 .env 与 data/env/.env，文件缺失时忽略
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// FromEnv：读取环境变量，未设置或解析失败时使用默认值
func FromEnv() Config {
	c := Config{
		CoastlineURL:     os.Getenv("COASTLINE_LAYER_URL"),
		CategoryField:    getenv("COASTLINE_CATEGORY_FIELD", "COASTAL"),
		CitiesExclude:    splitList(getenv("COASTLINE_CITIES_EXCLUDE", "ocean,bay")),
		CountiesExclude:  splitList(getenv("COASTLINE_COUNTIES_EXCLUDE", "ocean")),
		SliverFix:        getenv("COASTLINE_SLIVER_FIX", "true") == "true",
		Threshold:        100000,
		CacheName:        getenv("COASTLINE_CACHE_NAME", "coastal_full"),
		WorkingSRID:      3310,
		ProtectedPath:    os.Getenv("PROTECTED_FRAGMENTS_PATH"),
		StoreKind:        getenv("STORE_KIND", "geojson"),
		StoreDir:         getenv("STORE_DIR", filepath.Join("data", "workspace")),
		Namespace:        os.Getenv("WORKSPACE_NAMESPACE"),
		FetchMaxAttempts: 4,
		FetchPageSize:    2000,
		FetchTimeout:     60 * time.Second,
		PushgatewayURL:   os.Getenv("PUSHGATEWAY_URL"),
		RunLogPath:       getenv("RUN_LOG_PATH", filepath.Join("logs", "run_log.txt")),
		LockTTL:          30 * time.Minute,
	}
	if s := os.Getenv("COASTLINE_THRESHOLD"); s != "" {
		if f, e := strconv.ParseFloat(s, 64); e == nil && f > 0 {
			c.Threshold = f
		}
	}
	if s := os.Getenv("WORKING_SRID"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			c.WorkingSRID = n
		}
	}
	if s := os.Getenv("FETCH_MAX_ATTEMPTS"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			c.FetchMaxAttempts = n
		}
	}
	if s := os.Getenv("FETCH_PAGE_SIZE"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			c.FetchPageSize = n
		}
	}
	if s := os.Getenv("FETCH_TIMEOUT_S"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			c.FetchTimeout = time.Duration(n) * time.Second
		}
	}
	if s := os.Getenv("RUN_LOCK_TTL_S"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			c.LockTTL = time.Duration(n) * time.Second
		}
	}
	return c
}

// ExcludeFor：按辖区类型返回排除类别集合；未知类型返回 nil
func (c Config) ExcludeFor(kind string) []string {
	switch kind {
	case "cities":
		return c.CitiesExclude
	case "counties":
		return c.CountiesExclude
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
