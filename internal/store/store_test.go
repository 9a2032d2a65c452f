package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return AttachDB(db), mock
}

func TestRecordRound(t *testing.T) {
	s, mock := newMock(t)
	r := Round{SessionID: "s1", Region: "WORLD", Target: "Peru", Clicked: "Peru", Correct: true, Mistakes: 2}

	mock.ExpectExec(`INSERT INTO _round_log`).
		WithArgs("s1", "WORLD", "Peru", "Peru", true, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO _round_stats_daily`).
		WithArgs("WORLD", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.RecordRound(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRoundStatsFailureIsNotFatal(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO _round_log`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO _round_stats_daily`).
		WithArgs("ASIA", 0).
		WillReturnError(errors.New("deadlock"))

	err := s.RecordRound(context.Background(), Round{SessionID: "s1", Region: "ASIA", Target: "Japan", Clicked: "China"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRoundErrors(t *testing.T) {
	s, mock := newMock(t)
	assert.Error(t, s.RecordRound(context.Background(), Round{}))

	mock.ExpectExec(`INSERT INTO _round_log`).WillReturnError(errors.New("down"))
	err := s.RecordRound(context.Background(), Round{SessionID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record round")
}

func TestGetTotals(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(rounds\),0\), COALESCE\(SUM\(found\),0\)`).
		WillReturnRows(sqlmock.NewRows([]string{"rounds", "found"}).AddRow(12, 5))
	mock.ExpectQuery(`WHERE day=current_date`).
		WillReturnRows(sqlmock.NewRows([]string{"rounds"}).AddRow(3))

	tot, err := s.GetTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Totals{Rounds: 12, Found: 5, Today: 3}, *tot)
}

func TestSessionRounds(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"session_id", "region", "target", "clicked", "correct", "mistakes"}
	mock.ExpectQuery(`FROM _round_log`).
		WithArgs("s1", 20).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("s1", "INDIA", "Goa", "Goa", true, 1).
			AddRow("s1", "INDIA", "Goa", "Kerala", false, 1))

	got, err := s.SessionRounds(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Correct)
	assert.Equal(t, "Kerala", got[1].Clicked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
