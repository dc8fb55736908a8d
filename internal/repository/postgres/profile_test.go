package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/database"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

func newProfileTestFixture(t *testing.T) (*ProfileRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewProfileRepository(mock), mock
}

func sampleSubscriptions() []domain.Subscription {
	retry := domain.MustParseDate("2026-03-02")
	return []domain.Subscription{
		{
			SubscriptionID:        "sub-1",
			CustomerToken:         "tok-1",
			NextChargeDate:        domain.MustParseDate("2026-03-01"),
			NextRetryDate:         &retry,
			RetryCount:            1,
			Enabled:               true,
			SubscriptionPeriod:    domain.PeriodMonth,
			SubscriptionFrequency: 1,
			LastOrderID:           "00001",
		},
	}
}

func profileRow(t *testing.T, id string, subs []domain.Subscription) *pgxmock.Rows {
	t.Helper()
	raw, err := json.Marshal(subs)
	require.NoError(t, err)
	return pgxmock.NewRows([]string{"customer_id", "email", "subscriptions", "updated_at"}).
		AddRow(id, id+"@example.com", raw, time.Now().UTC())
}

func TestProfileRepository_Get(t *testing.T) {
	repo, mock := newProfileTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM customer_profiles WHERE customer_id =").
		WithArgs("cust-1").
		WillReturnRows(profileRow(t, "cust-1", sampleSubscriptions()))

	got, err := repo.Get(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "cust-1@example.com", got.Email)
	require.Len(t, got.Subscriptions, 1)
	sub := got.Subscriptions[0]
	assert.Equal(t, "2026-03-01", sub.NextChargeDate.String())
	require.NotNil(t, sub.NextRetryDate)
	assert.Equal(t, "2026-03-02", sub.NextRetryDate.String())
	assert.Equal(t, domain.PeriodMonth, sub.SubscriptionPeriod)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_Get_NotFound(t *testing.T) {
	repo, mock := newProfileTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM customer_profiles").
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.Get(context.Background(), "nobody")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_ListWithSubscriptions(t *testing.T) {
	repo, mock := newProfileTestFixture(t)
	defer mock.Close()

	subs := sampleSubscriptions()
	raw, err := json.Marshal(subs)
	require.NoError(t, err)
	rows := pgxmock.NewRows([]string{"customer_id", "email", "subscriptions", "updated_at"}).
		AddRow("cust-1", "a@example.com", raw, time.Now().UTC()).
		AddRow("cust-2", "b@example.com", raw, time.Now().UTC())

	mock.ExpectQuery("SELECT .+ FROM customer_profiles WHERE jsonb_array_length").
		WillReturnRows(rows)

	got, err := repo.ListWithSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cust-1", got[0].CustomerID)
	assert.Equal(t, "cust-2", got[1].CustomerID)
	assert.Len(t, got[1].Subscriptions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_ListWithSubscriptions_UndecodableRow(t *testing.T) {
	repo, mock := newProfileTestFixture(t)
	defer mock.Close()

	raw, err := json.Marshal(sampleSubscriptions())
	require.NoError(t, err)
	bad := []byte(`[{"subscription_id":"sub-9","next_charge_date":"03/01/2026"}]`)
	rows := pgxmock.NewRows([]string{"customer_id", "email", "subscriptions", "updated_at"}).
		AddRow("bad", "bad@example.com", bad, time.Now().UTC()).
		AddRow("good", "good@example.com", raw, time.Now().UTC())

	mock.ExpectQuery("SELECT .+ FROM customer_profiles WHERE jsonb_array_length").
		WillReturnRows(rows)

	got, err := repo.ListWithSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "bad", got[0].CustomerID)
	require.Error(t, got[0].LoadErr)
	assert.Contains(t, got[0].LoadErr.Error(), "unmarshal subscriptions of bad")
	assert.Empty(t, got[0].Subscriptions)

	assert.Equal(t, "good", got[1].CustomerID)
	assert.NoError(t, got[1].LoadErr)
	assert.Len(t, got[1].Subscriptions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_Get_UndecodableRow(t *testing.T) {
	repo, mock := newProfileTestFixture(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"customer_id", "email", "subscriptions", "updated_at"}).
		AddRow("bad", "bad@example.com", []byte(`{"not":"a list"}`), time.Now().UTC())
	mock.ExpectQuery("SELECT .+ FROM customer_profiles WHERE customer_id =").
		WithArgs("bad").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "bad")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal subscriptions of bad")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_ListWithSubscriptions_Empty(t *testing.T) {
	repo, mock := newProfileTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM customer_profiles").
		WillReturnRows(pgxmock.NewRows([]string{"customer_id", "email", "subscriptions", "updated_at"}))

	got, err := repo.ListWithSubscriptions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_ListWithSubscriptions_QueryError(t *testing.T) {
	repo, mock := newProfileTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM customer_profiles").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ListWithSubscriptions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list profiles")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_Save_WritesWholeList(t *testing.T) {
	repo, mock := newProfileTestFixture(t)
	defer mock.Close()

	p := &domain.CustomerProfile{CustomerID: "cust-1", Email: "a@example.com", Subscriptions: sampleSubscriptions()}
	want, err := json.Marshal(p.Subscriptions)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO customer_profiles .+ ON CONFLICT").
		WithArgs("cust-1", "a@example.com", want, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), p))
	assert.False(t, p.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_Save_NilListStoredAsEmptyArray(t *testing.T) {
	repo, mock := newProfileTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO customer_profiles").
		WithArgs("cust-1", "", []byte("[]"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), &domain.CustomerProfile{CustomerID: "cust-1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
