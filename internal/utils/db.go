// 包 utils：外部连接工具（PostgreSQL、Redis、TLS 证书），统一环境变量读取
package utils

import (
	"database/sql"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

// BuildPostgresDSNFromEnv：PG_DSN 优先；否则由 PG_* 环境变量拼装，用户名与密码按 URL 规则转义
func BuildPostgresDSNFromEnv() string {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(getenv("PG_HOST", "localhost"), getenv("PG_PORT", "5432")),
		Path:     "/" + getenv("PG_DB", "tiny_explorers"),
		RawQuery: "sslmode=" + url.QueryEscape(getenv("PG_SSLMODE", "disable")),
	}
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		u.User = url.UserPassword(getenv("PG_USER", "postgres"), pass)
	} else {
		u.User = url.User(getenv("PG_USER", "postgres"))
	}
	return u.String()
}

// OpenPostgresFromEnv：打开连接池；PG_MAX_OPEN_CONNS / PG_MAX_IDLE_CONNS 解析失败时使用默认值
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	maxOpen := 20
	maxIdle := 10
	if n, e := strconv.Atoi(os.Getenv("PG_MAX_OPEN_CONNS")); e == nil && n > 0 {
		maxOpen = n
	}
	if n, e := strconv.Atoi(os.Getenv("PG_MAX_IDLE_CONNS")); e == nil && n >= 0 {
		maxIdle = n
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	// 回合日志写入稀疏，空闲连接不长期占用
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
