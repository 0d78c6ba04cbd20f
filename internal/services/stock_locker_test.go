package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/common"
	"storefront/internal/metrics"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var errBusy = repositories.ErrLockNotAvailable

func recordingSleep(delays *[]time.Duration) sleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 300*time.Millisecond, p.Delay(3))
}

func TestRetryOnContention_SucceedsFirstTry(t *testing.T) {
	var delays []time.Duration
	result, attempts, err := retryOnContention(context.Background(), DefaultRetryPolicy(), recordingSleep(&delays), isLockBusy,
		func(ctx context.Context, n int) (string, error) { return "locked", nil })

	require.NoError(t, err)
	assert.Equal(t, "locked", result)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, delays)
}

func TestRetryOnContention_SucceedsOnThirdAttempt(t *testing.T) {
	var delays []time.Duration
	result, attempts, err := retryOnContention(context.Background(), DefaultRetryPolicy(), recordingSleep(&delays), isLockBusy,
		func(ctx context.Context, n int) (int, error) {
			if n < 3 {
				return 0, errBusy
			}
			return n, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, result)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestRetryOnContention_ExhaustedWithoutTrailingSleep(t *testing.T) {
	var delays []time.Duration
	calls := 0
	_, attempts, err := retryOnContention(context.Background(), RetryPolicy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond}, recordingSleep(&delays), isLockBusy,
		func(ctx context.Context, n int) (struct{}, error) {
			calls++
			return struct{}{}, errBusy
		})

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, delays)
}

func TestRetryOnContention_NonRetryableStopsImmediately(t *testing.T) {
	var delays []time.Duration
	boom := errors.New("boom")
	_, attempts, err := retryOnContention(context.Background(), DefaultRetryPolicy(), recordingSleep(&delays), isLockBusy,
		func(ctx context.Context, n int) (int, error) { return 0, boom })

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, delays)
}

func TestRetryOnContention_ZeroAttemptsStillTriesOnce(t *testing.T) {
	calls := 0
	_, _, err := retryOnContention(context.Background(), RetryPolicy{}, sleepContext, isLockBusy,
		func(ctx context.Context, n int) (int, error) {
			calls++
			return 0, errBusy
		})

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, calls)
}

func TestRetryOnContention_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, _, err := retryOnContention(ctx, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour}, sleepContext, isLockBusy,
		func(ctx context.Context, n int) (int, error) {
			calls++
			cancel()
			return 0, errBusy
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
	assert.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

// StockLockerTestSuite drives the locker against pgxmock so the exact
// savepoint and lock statements are checked.
type StockLockerTestSuite struct {
	suite.Suite
	mock      pgxmock.PgxPoolIface
	locker    *stockLocker
	delays    []time.Duration
	productID uuid.UUID
	context   context.Context
}

func (suite *StockLockerTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mock = mock
	suite.delays = nil
	suite.locker = NewStockLocker(repositories.NewStockRepo(mock), DefaultRetryPolicy(), metrics.NewNop(), zap.NewNop()).(*stockLocker)
	suite.locker.sleep = recordingSleep(&suite.delays)
	suite.productID = uuid.New()
	suite.context = context.Background()
}

func (suite *StockLockerTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestStockLockerTestSuite(t *testing.T) {
	suite.Run(t, new(StockLockerTestSuite))
}

func (suite *StockLockerTestSuite) stockRows(quantity int) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "product_id", "quantity", "updated_at"}).
		AddRow(uuid.New(), suite.productID, quantity, time.Now())
}

func (suite *StockLockerTestSuite) expectBusy() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`FOR UPDATE NOWAIT`).
		WithArgs(suite.productID).
		WillReturnError(&pgconn.PgError{Code: "55P03"})
	suite.mock.ExpectRollback()
}

func (suite *StockLockerTestSuite) TestAcquire_ReleasesSavepointAndKeepsLock() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`FOR UPDATE NOWAIT`).WithArgs(suite.productID).WillReturnRows(suite.stockRows(5))
	suite.mock.ExpectCommit()

	stock, err := suite.locker.Acquire(suite.context, suite.mock, suite.productID, 3)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 5, stock.Quantity)
	assert.Empty(suite.T(), suite.delays)
}

func (suite *StockLockerTestSuite) TestAcquire_InsufficientRollsBackSavepoint() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`FOR UPDATE NOWAIT`).WithArgs(suite.productID).WillReturnRows(suite.stockRows(2))
	suite.mock.ExpectRollback()

	stock, err := suite.locker.Acquire(suite.context, suite.mock, suite.productID, 3)
	assert.Nil(suite.T(), stock)
	assert.ErrorIs(suite.T(), err, common.ErrInsufficientStock)
	assert.Empty(suite.T(), suite.delays)
}

func (suite *StockLockerTestSuite) TestAcquire_RetriesThenSucceeds() {
	suite.expectBusy()
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`FOR UPDATE NOWAIT`).WithArgs(suite.productID).WillReturnRows(suite.stockRows(9))
	suite.mock.ExpectCommit()

	stock, err := suite.locker.Acquire(suite.context, suite.mock, suite.productID, 1)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 9, stock.Quantity)
	assert.Equal(suite.T(), []time.Duration{100 * time.Millisecond}, suite.delays)
}

func (suite *StockLockerTestSuite) TestAcquire_ExhaustedIsContention() {
	suite.expectBusy()
	suite.expectBusy()
	suite.expectBusy()

	_, err := suite.locker.Acquire(suite.context, suite.mock, suite.productID, 1)
	assert.ErrorIs(suite.T(), err, common.ErrContention)
	assert.Equal(suite.T(), "High load, please try again later", err.(*common.AppError).Message)
	assert.Equal(suite.T(), []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, suite.delays)
}

func (suite *StockLockerTestSuite) TestAcquire_MissingRowIsNotFound() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`FOR UPDATE NOWAIT`).
		WithArgs(suite.productID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "quantity", "updated_at"}))
	suite.mock.ExpectRollback()

	_, err := suite.locker.Acquire(suite.context, suite.mock, suite.productID, 1)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
	assert.Equal(suite.T(), "Product stock not found", err.(*common.AppError).Message)
}

func (suite *StockLockerTestSuite) TestAcquire_DriverErrorIsInternal() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`FOR UPDATE NOWAIT`).
		WithArgs(suite.productID).
		WillReturnError(errors.New("conn closed"))
	suite.mock.ExpectRollback()

	_, err := suite.locker.Acquire(suite.context, suite.mock, suite.productID, 1)
	assert.ErrorIs(suite.T(), err, common.ErrInternal)
	assert.Empty(suite.T(), suite.delays)
}

func (suite *StockLockerTestSuite) TestAcquire_CancelledWaitIsInternal() {
	ctx, cancel := context.WithCancel(suite.context)
	suite.locker.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	suite.expectBusy()

	_, err := suite.locker.Acquire(ctx, suite.mock, suite.productID, 1)
	assert.ErrorIs(suite.T(), err, common.ErrInternal)
	assert.ErrorIs(suite.T(), err, context.Canceled)
}
