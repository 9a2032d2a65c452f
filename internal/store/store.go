// 包 store: 回合日志的 PostgreSQL 数据访问层，记录寻找模式每次判定并提供汇总统计
package store

import (
	"context"
	"database/sql"
	"fmt"

	"tiny-explorers/internal/logger"

	_ "github.com/lib/pq"
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	return &Store{db: db}, nil
}

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Round: 一条回合日志
type Round struct {
	SessionID string `json:"session_id"`
	Region    string `json:"region"`
	Target    string `json:"target"`
	Clicked   string `json:"clicked"`
	Correct   bool   `json:"correct"`
	Mistakes  int    `json:"mistakes"`
}

// 文档注释：写入一条回合日志并累加当日统计
// 背景：日志与统计分两条语句写入；统计失败只记日志，不影响主记录。
// 约束：session 为空视为调用方错误，直接返回。
func (s *Store) RecordRound(ctx context.Context, r Round) error {
	if r.SessionID == "" {
		return fmt.Errorf("record round: empty session id")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO _round_log(session_id, region, target, clicked, correct, mistakes)
        VALUES($1,$2,$3,$4,$5,$6)`,
		r.SessionID, r.Region, r.Target, r.Clicked, r.Correct, r.Mistakes)
	if err != nil {
		return fmt.Errorf("record round: %w", err)
	}
	found := 0
	if r.Correct {
		found = 1
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO _round_stats_daily(day, region, rounds, found)
        VALUES(current_date, $1, 1, $2)
        ON CONFLICT (day, region) DO UPDATE SET rounds=_round_stats_daily.rounds+1, found=_round_stats_daily.found+EXCLUDED.found`,
		r.Region, found); err != nil {
		logger.L().Warn("round_stats_error", "region", r.Region, "err", err)
	}
	logger.L().Debug("round_recorded", "session", r.SessionID, "target", r.Target, "correct", r.Correct)
	return nil
}

// Totals: 统计返回结构，包含累计回合、累计找到次数与当日回合
type Totals struct {
	Rounds int64 `json:"rounds"`
	Found  int64 `json:"found"`
	Today  int64 `json:"today"`
}

// GetTotals: 读取累计与当日统计，用于接口返回
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(rounds),0), COALESCE(SUM(found),0) FROM _round_stats_daily")
	if err := row.Scan(&t.Rounds, &t.Found); err != nil {
		return nil, fmt.Errorf("read totals: %w", err)
	}
	row2 := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(rounds),0) FROM _round_stats_daily WHERE day=current_date")
	_ = row2.Scan(&t.Today)
	logger.L().Debug("stats_totals", "rounds", t.Rounds, "found", t.Found, "today", t.Today)
	return &t, nil
}

// 文档注释：读取某会话最近的回合
// 参数：limit 非正时取 20。
// 返回：按时间倒序的回合列表。
func (s *Store) SessionRounds(ctx context.Context, session string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT session_id, region, target, clicked, correct, mistakes
        FROM _round_log
        WHERE session_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2`, session, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Round
	for rows.Next() {
		var r Round
		if err := rows.Scan(&r.SessionID, &r.Region, &r.Target, &r.Clicked, &r.Correct, &r.Mistakes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
