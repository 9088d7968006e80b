package controllers

import (
	"fmt"
	"testing"
	"time"

	"billflow-backend/billing"
	"billflow-backend/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return gdb, mock
}

func TestVersionedUpdateGuardsOnVersion(t *testing.T) {
	gdb, mock := newMockDB(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE "quotes" SET .* WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := versionedUpdate(gdb, &models.Quote{}, id, 3, map[string]interface{}{
		"status": "sent",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionedUpdateStaleVersionConflicts(t *testing.T) {
	gdb, mock := newMockDB(t)
	id := uuid.New()

	// A concurrent writer already advanced the version: zero rows match.
	mock.ExpectExec(`UPDATE "quotes" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := versionedUpdate(gdb, &models.Quote{}, id, 3, map[string]interface{}{
		"notes": "lost update",
	})
	var conflict *billing.ErrConcurrentModification
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, id.String(), conflict.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionedUpdateBumpsVersionWithoutOtherFields(t *testing.T) {
	gdb, mock := newMockDB(t)
	id := uuid.New()

	// An empty updates map still moves the version, which is how the
	// assignment toggle invalidates concurrent readers of the parent.
	mock.ExpectExec(`UPDATE "quotes" SET .*"version"=version \+ 1 WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := versionedUpdate(gdb, &models.Quote{}, id, 7, map[string]interface{}{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextDocumentNumberAdvancesCounter(t *testing.T) {
	gdb, mock := newMockDB(t)
	companyID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "companies" WHERE id = \$\d+.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quote_sequence", "invoice_sequence"}).
			AddRow(companyID.String(), 41, 7))
	mock.ExpectExec(`UPDATE "companies" SET "quote_sequence"=\$\d+ WHERE id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	number, err := nextDocumentNumber(gdb, companyID, "QT")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("QT-%d-0042", time.Now().Year()), number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextDocumentNumberInvoiceCounterIsIndependent(t *testing.T) {
	gdb, mock := newMockDB(t)
	companyID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "companies" WHERE id = \$\d+.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quote_sequence", "invoice_sequence"}).
			AddRow(companyID.String(), 41, 7))
	mock.ExpectExec(`UPDATE "companies" SET "invoice_sequence"=\$\d+ WHERE id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	number, err := nextDocumentNumber(gdb, companyID, "INV")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("INV-%d-0008", time.Now().Year()), number)
	assert.NoError(t, mock.ExpectationsWereMet())
}
