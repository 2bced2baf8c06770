package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, time.January, 10, 8, 30, 15, 123456789, time.UTC)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, zap.NewNop()), mock
}

type recordingObserver struct {
	captured []string
}

func (o *recordingObserver) ObserveCapture(table string, action models.AuditAction) {
	o.captured = append(o.captured, table+":"+string(action))
}

func newPatientRepo(t *testing.T) (*TrackedRepository[*models.Patient], sqlmock.Sqlmock, *recordingObserver) {
	db, mock := newMockDB(t)
	logger := zap.NewNop()
	obs := &recordingObserver{}
	txm := NewTransactionManager(db, 0, logger)
	audit := NewAuditRepository(db, func() time.Time { return fixedNow }, logger)
	repo := NewTrackedRepository(db, txm, audit, func() *models.Patient { return &models.Patient{} }, obs, logger)
	return repo, mock, obs
}

func expectBegin(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '3000ms'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

var patientCols = []string{"id", "name", "disease", "sex", "admit_status", "age"}

func TestTrackedRepository_CreateCapturesInsert(t *testing.T) {
	repo, mock, obs := newPatientRepo(t)
	p := &models.Patient{ID: "P1", Name: "Ann", Disease: "flu", Sex: "F", AdmitStatus: "admitted", Age: 41}

	expectBegin(mock)
	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO patient (id, name, disease, sex, admit_status, age) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, name, disease, sex, admit_status, age")).
		WithArgs("P1", "Ann", "flu", "F", "admitted", 41).
		WillReturnRows(sqlmock.NewRows(patientCols).AddRow("P1", "Ann", "flu", "F", "admitted", 41))
	mock.ExpectQuery("INSERT INTO audit_log").
		WithArgs(
			fixedNow.Truncate(time.Millisecond),
			"patient",
			"INSERT",
			"P1",
			nil,
			`{"id":"P1","name":"Ann","disease":"flu","sex":"F","admit_status":"admitted","age":41}`,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ts"}).AddRow(int64(1), fixedNow.Truncate(time.Millisecond)))
	mock.ExpectCommit()

	ev, err := repo.Create(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, models.AuditActionInsert, ev.Action)
	assert.Equal(t, "P1", *ev.EntityID)
	assert.Nil(t, ev.OldValues)
	assert.Equal(t, patientCols, ev.NewValues.Columns())
	assert.Equal(t, fixedNow.Truncate(time.Millisecond), ev.Timestamp)
	assert.Equal(t, []string{"patient:INSERT"}, obs.captured)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedRepository_UpdateCapturesBothImages(t *testing.T) {
	repo, mock, _ := newPatientRepo(t)
	p := &models.Patient{ID: "P1", Name: "Ann", Disease: "flu", Sex: "F", AdmitStatus: "admitted", Age: 42}

	expectBegin(mock)
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, name, disease, sex, admit_status, age FROM patient WHERE id = $1 FOR UPDATE")).
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows(patientCols).AddRow("P1", "Ann", "flu", "F", "admitted", 41))
	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE patient SET name = $2, disease = $3, sex = $4, admit_status = $5, age = $6 WHERE id = $1 RETURNING")).
		WithArgs("P1", "Ann", "flu", "F", "admitted", 42).
		WillReturnRows(sqlmock.NewRows(patientCols).AddRow("P1", "Ann", "flu", "F", "admitted", 42))
	mock.ExpectQuery("INSERT INTO audit_log").
		WithArgs(
			sqlmock.AnyArg(),
			"patient",
			"UPDATE",
			"P1",
			`{"id":"P1","name":"Ann","disease":"flu","sex":"F","admit_status":"admitted","age":41}`,
			`{"id":"P1","name":"Ann","disease":"flu","sex":"F","admit_status":"admitted","age":42}`,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ts"}).AddRow(int64(2), fixedNow))
	mock.ExpectCommit()

	ev, err := repo.Update(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, models.AuditActionUpdate, ev.Action)
	require.Equal(t, patientCols, ev.OldValues.Columns())
	require.Equal(t, patientCols, ev.NewValues.Columns())

	for _, col := range patientCols {
		before, ok := ev.OldValues.Get(col)
		require.True(t, ok, col)
		after, ok := ev.NewValues.Get(col)
		require.True(t, ok, col)
		if col == "age" {
			assert.Equal(t, json.Number("41"), before)
			assert.Equal(t, json.Number("42"), after)
			continue
		}
		assert.Equal(t, before, after, col)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedRepository_UpdateKeepsOtherColumnChanges(t *testing.T) {
	repo, mock, _ := newPatientRepo(t)
	p := &models.Patient{ID: "P1", Name: "Ann", Disease: "cold", Sex: "F", AdmitStatus: "discharged", Age: 41}

	expectBegin(mock)
	mock.ExpectQuery("SELECT .* FROM patient WHERE id = \\$1 FOR UPDATE").
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows(patientCols).AddRow("P1", "Ann", "flu", "F", "admitted", 41))
	mock.ExpectQuery("UPDATE patient SET").
		WithArgs("P1", "Ann", "cold", "F", "discharged", 41).
		WillReturnRows(sqlmock.NewRows(patientCols).AddRow("P1", "Ann", "cold", "F", "discharged", 41))
	mock.ExpectQuery("INSERT INTO audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"id", "ts"}).AddRow(int64(3), fixedNow))
	mock.ExpectCommit()

	ev, err := repo.Update(context.Background(), p)
	require.NoError(t, err)

	before, _ := ev.OldValues.Get("disease")
	after, _ := ev.NewValues.Get("disease")
	assert.Equal(t, "flu", before)
	assert.Equal(t, "cold", after)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedRepository_UpdateMissingRow(t *testing.T) {
	repo, mock, obs := newPatientRepo(t)

	expectBegin(mock)
	mock.ExpectQuery("SELECT .* FROM patient WHERE id = \\$1 FOR UPDATE").
		WithArgs("P404").
		WillReturnRows(sqlmock.NewRows(patientCols))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), &models.Patient{ID: "P404", Name: "x"})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Empty(t, obs.captured)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedRepository_DeleteCapturesPreImage(t *testing.T) {
	repo, mock, _ := newPatientRepo(t)

	expectBegin(mock)
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM patient WHERE id = $1 RETURNING")).
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows(patientCols).AddRow("P1", "Ann", "flu", "F", "admitted", 41))
	mock.ExpectQuery("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), "patient", "DELETE", "P1", sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ts"}).AddRow(int64(3), fixedNow))
	mock.ExpectCommit()

	ev, err := repo.Delete(context.Background(), "P1")
	require.NoError(t, err)
	assert.Nil(t, ev.NewValues)
	age, _ := ev.OldValues.Get("age")
	assert.Equal(t, json.Number("41"), age)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedRepository_AuditFailureRollsBackWrite(t *testing.T) {
	repo, mock, obs := newPatientRepo(t)

	expectBegin(mock)
	mock.ExpectQuery("INSERT INTO patient").
		WillReturnRows(sqlmock.NewRows(patientCols).AddRow("P1", "Ann", "", "", "", 3))
	mock.ExpectQuery("INSERT INTO audit_log").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &models.Patient{ID: "P1", Name: "Ann", Age: 3})
	assert.ErrorIs(t, err, repositories.ErrAuditAppend)
	assert.Empty(t, obs.captured)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedRepository_DuplicateKey(t *testing.T) {
	repo, mock, _ := newPatientRepo(t)

	expectBegin(mock)
	mock.ExpectQuery("INSERT INTO patient").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &models.Patient{ID: "P1", Name: "Ann"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedRepository_LockTimeout(t *testing.T) {
	repo, mock, _ := newPatientRepo(t)

	expectBegin(mock)
	mock.ExpectQuery("FOR UPDATE").
		WillReturnError(&pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), &models.Patient{ID: "P1", Name: "Ann"})
	assert.ErrorIs(t, err, repositories.ErrLockTimeout)
	assert.True(t, repositories.IsTransactionLost(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedRepository_JoinsOuterTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	logger := zap.NewNop()
	txm := NewTransactionManager(db, 0, logger)
	audit := NewAuditRepository(db, func() time.Time { return fixedNow }, logger)
	labs := NewTrackedRepository(db, txm, audit, func() *models.Lab { return &models.Lab{} }, nil, logger)
	labCols := []string{"id", "name", "status", "result"}

	expectBegin(mock)
	for _, id := range []string{"L1", "L2"} {
		mock.ExpectQuery("INSERT INTO lab").
			WillReturnRows(sqlmock.NewRows(labCols).AddRow(id, "n"+id, "pending", nil))
		mock.ExpectQuery("INSERT INTO audit_log").
			WillReturnRows(sqlmock.NewRows([]string{"id", "ts"}).AddRow(int64(1), fixedNow))
	}
	mock.ExpectCommit()

	err := txm.InTransaction(context.Background(), func(ctx context.Context, _ repositories.Transaction) error {
		if _, err := labs.Create(ctx, &models.Lab{ID: "L1", Name: "nL1", Status: "pending"}); err != nil {
			return err
		}
		_, err := labs.Create(ctx, &models.Lab{ID: "L2", Name: "nL2", Status: "pending"})
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedRepository_GetListCount(t *testing.T) {
	db, mock := newMockDB(t)
	logger := zap.NewNop()
	meds := NewTrackedRepository(db, NewTransactionManager(db, 0, logger), NewAuditRepository(db, nil, logger),
		func() *models.Medical { return &models.Medical{} }, nil, logger)
	medCols := []string{"id", "name", "manufacturer", "expiry_date", "cost", "count"}
	expiry := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, manufacturer, expiry_date, cost, count FROM medical WHERE id = $1")).
		WithArgs("M1").
		WillReturnRows(sqlmock.NewRows(medCols).AddRow("M1", "Aspirin", "Bayer", expiry, 5, 8))
	mock.ExpectQuery(regexp.QuoteMeta("FROM medical WHERE id = $1")).
		WithArgs("M9").
		WillReturnRows(sqlmock.NewRows(medCols))
	mock.ExpectQuery(regexp.QuoteMeta("FROM medical ORDER BY id LIMIT $1 OFFSET $2")).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(medCols))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM medical")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	ctx := context.Background()

	m, err := meds.Get(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", m.ExpiryDate.String())
	assert.Equal(t, 8, m.Count)

	_, err = meds.Get(ctx, "M9")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	list, err := meds.List(ctx, 50, 0)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	n, err := meds.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
