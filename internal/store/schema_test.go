package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestBootstrapRunsEveryStatementInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stmts := bootstrapStatements(768)
	require.NotEmpty(t, stmts)

	mock.ExpectBegin()
	for range stmts {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	require.NoError(t, Bootstrap(context.Background(), db, 768))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrapRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(".*").WillReturnError(errTableBroken)
	mock.ExpectRollback()

	err = Bootstrap(context.Background(), db, 1536)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrapDefaultsEmbeddingDim(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	for _, stmt := range bootstrapStatements(1536) {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	require.NoError(t, Bootstrap(context.Background(), db, 0))
	require.NoError(t, mock.ExpectationsWereMet())
}

var errTableBroken = &NotFoundError{Entity: "table", ID: "broken"}
