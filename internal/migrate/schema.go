// 包 migrate：首次运行自动建表
package migrate

import (
	"database/sql"

	"tiny-explorers/internal/logger"
)

// 背景：回合日志为可选能力，首次启用 PG_ENABLE 时自动创建所需表与索引
// 约束：使用 IF NOT EXISTS，重复执行无副作用；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _round_log (
            id BIGSERIAL PRIMARY KEY,
            session_id TEXT NOT NULL,
            region TEXT NOT NULL,
            target TEXT NOT NULL,
            clicked TEXT NOT NULL,
            correct BOOLEAN NOT NULL,
            mistakes INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_round_log_session ON _round_log(session_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS _round_stats_daily (
            day DATE NOT NULL,
            region TEXT NOT NULL,
            rounds BIGINT NOT NULL DEFAULT 0,
            found BIGINT NOT NULL DEFAULT 0,
            PRIMARY KEY (day, region)
        )`,
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
