package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/syssam/silo/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorExecCommit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cur := NewCursor(OpenDB(dialect.Postgres, db))
	assert.Equal(t, dialect.Postgres, cur.Dialect())
	assert.False(t, cur.InTx())

	mock.ExpectBegin()
	mock.ExpectExec(`ALTER TABLE "t" ADD "c" INTEGER`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "t" DROP COLUMN "d"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	_, err = cur.Exec(ctx, MustExpr("ALTER TABLE {t} ADD {c} INTEGER", Args{"t": MustIdent("t"), "c": MustIdent("c")}))
	require.NoError(t, err)
	assert.True(t, cur.InTx())
	_, err = cur.Exec(ctx, MustExpr("ALTER TABLE {t} DROP COLUMN {c}", Args{"t": MustIdent("t"), "c": MustIdent("d")}))
	require.NoError(t, err)
	require.NoError(t, cur.Commit())
	assert.False(t, cur.InTx())
	// Commit without an open transaction is a no-op.
	require.NoError(t, cur.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCursorFetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cur := NewCursor(OpenDB(dialect.SQLite, db))
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id", "name" FROM "t"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "a").
			AddRow(int64(2), "b").
			AddRow(int64(3), "c"))
	mock.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectRollback()

	require.NoError(t, cur.Query(ctx, MustExpr(`SELECT "id", "name" FROM "t"`, nil)))
	assert.Equal(t, []string{"id", "name"}, cur.Columns())

	row, err := cur.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "a"}, row)

	rest, err := cur.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2), "b"}, {int64(3), "c"}}, rest)

	row, err = cur.FetchOne()
	require.NoError(t, err)
	assert.Nil(t, row)

	require.NoError(t, cur.Query(ctx, Raw("SELECT 1")))
	all, err := cur.FetchAll()
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, cur.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCursorRollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cur := NewCursor(OpenDB(dialect.Postgres, db))
	ctx := context.Background()

	dbErr := errors.New("relation does not exist")
	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE "x"`).WillReturnError(dbErr)
	mock.ExpectRollback()

	_, err = cur.Exec(ctx, MustExpr("DROP TABLE {t}", Args{"t": MustIdent("x")}))
	require.ErrorIs(t, err, dbErr)
	require.NoError(t, cur.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCursorEmptyStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cur := NewCursor(OpenDB(dialect.Postgres, db))
	_, err = cur.Exec(context.Background(), nil)
	require.Error(t, err)
	require.Error(t, cur.Query(context.Background(), Raw("")))
	require.NoError(t, mock.ExpectationsWereMet())
}
