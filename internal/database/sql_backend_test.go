package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLBackendResolvesUserInviteOnPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	missing := &pq.Error{Code: "42P01", Message: `relation "UserInvite" does not exist`}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "UserInvite" WHERE "id" = $1 LIMIT 1`)).
		WithArgs("inv-1").WillReturnError(missing)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "user_invite" WHERE "id" = $1 LIMIT 1`)).
		WithArgs("inv-1").WillReturnError(missing)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "user_invites" WHERE "id" = $1 LIMIT 1`)).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow("inv-1", []byte("a@example.com")))

	store := NewStore(NewSQLBackend(db, "postgres"), quietLogger())
	rec, err := store.Get(context.Background(), "UserInvite", "inv-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "a@example.com", rec.String("email"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackendMySQLMissingTableFallsThrough(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM `User` WHERE")).
		WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table 'app.User' doesn't exist"})
	mock.ExpectQuery(regexp.QuoteMeta("FROM `user` WHERE")).
		WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table 'app.user' doesn't exist"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE `role` IN (?,?) AND `status` = ? ORDER BY `created_at` DESC LIMIT 5")).
		WithArgs("creator", "admin", "active").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1").AddRow("u2"))

	store := NewStore(NewSQLBackend(db, "mysql"), quietLogger())
	rows, err := store.Filter(context.Background(), "User",
		Filter{"status": "active", "role": []string{"creator", "admin"}}, "-created_at", 5)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackendOtherErrorsAbort(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("permission denied")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "Subscription"`)).WillReturnError(boom)

	store := NewStore(NewSQLBackend(db, "postgres"), quietLogger())
	_, err = store.List(context.Background(), "Subscription", "", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsUnresolved(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackendIsNullPredicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "subscriptions" WHERE "cancelled_at" IS NULL`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	backend := NewSQLBackend(db, "postgres")
	rows, err := backend.Select(context.Background(), "subscriptions", Query{Where: TranslateFilter(Filter{"cancelled_at": nil})})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackendInsertReadsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `analytics_events` (`event_type`,`id`) VALUES (?,?)")).
		WithArgs("purchase_completed", "evt-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `analytics_events` WHERE `id` = ? LIMIT 1")).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "created_date"}).
			AddRow("evt-1", "purchase_completed", "2026-01-01 00:00:00"))

	backend := NewSQLBackend(db, "mysql")
	rec, err := backend.Insert(context.Background(), "analytics_events", Record{"id": "evt-1", "event_type": "purchase_completed"})
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01 00:00:00", rec.String("created_date"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackendUpdateAndDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "subscriptions" SET "status" = $1 WHERE "id" = $2`)).
		WithArgs("cancelled", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "subscriptions" WHERE "id" = $1`)).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("s1", "cancelled"))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "subscriptions" WHERE "id" = $1`)).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("s1", "cancelled"))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "subscriptions" WHERE "id" = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	backend := NewSQLBackend(db, "postgres")
	ctx := context.Background()

	rows, err := backend.Update(ctx, "subscriptions", []Predicate{Eq("id", "s1")}, Record{"status": "cancelled"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "cancelled", rows[0].String("status"))

	rows, err = backend.Delete(ctx, "subscriptions", []Predicate{Eq("id", "s1")})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackendRejectsBadIdentifiers(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	backend := NewSQLBackend(db, "postgres")
	_, err = backend.Select(context.Background(), `users"; DROP TABLE users; --`, Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid identifier")
}
