package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/mealshare-backend/pkg/logger"
)

func TestQueryLoggerReportsOnlySlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Level: "debug", Format: "json", Output: &buf})
	q := newQueryLogger(logg, 100*time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return `SELECT * FROM "meals" WHERE id = ?`, 1 }

	q.Trace(ctx, time.Now(), stmt, nil)
	q.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	require.Zero(t, buf.Len())

	q.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	require.Contains(t, buf.String(), "db.slow_query")
	require.Contains(t, buf.String(), `"rows":1`)

	buf.Reset()
	q.Trace(ctx, time.Now(), stmt, errors.New("relation does not exist"))
	require.Contains(t, buf.String(), "db.query_failed")
	require.Contains(t, buf.String(), "relation does not exist")
}

func TestQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	require.Equal(t, gormlogger.Discard, newQueryLogger(nil, time.Second))
}

func TestSQLiteDSNAppendsPragmas(t *testing.T) {
	require.Equal(t, "mealshare.db?"+sqliteParams, sqliteDSN("mealshare.db"))
	require.Equal(t, "file:x?mode=memory&"+sqliteParams, sqliteDSN("file:x?mode=memory"))
}
