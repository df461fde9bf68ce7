package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/credit_ledger_service/internal/apperrors"
	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	"github.com/SscSPs/credit_ledger_service/internal/core/ports/events"
	portssvc "github.com/SscSPs/credit_ledger_service/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_service/internal/core/services"
	"github.com/SscSPs/credit_ledger_service/internal/platform/metrics"
	"github.com/SscSPs/credit_ledger_service/internal/repositories/memory"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DebtEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.DebtEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.DebtEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.DebtEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type DebtServiceTestSuite struct {
	suite.Suite
	repo      *memory.DebtRepository
	publisher *recordingPublisher
	metrics   *metrics.DebtMetrics
	service   portssvc.DebtSvcFacade
	ctx       context.Context
	customer  string
}

func (suite *DebtServiceTestSuite) SetupTest() {
	suite.repo = memory.NewDebtRepository()
	suite.publisher = &recordingPublisher{}
	suite.metrics = metrics.NewDebtMetrics(prometheus.NewRegistry())
	suite.service = services.NewDebtService(suite.repo,
		services.WithDefaultCreditLimit(d(1000000)),
		services.WithEventPublisher(suite.publisher),
		services.WithMetrics(suite.metrics),
	)
	suite.ctx = context.Background()
	suite.customer = uuid.NewString()
}

func TestDebtServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DebtServiceTestSuite))
}

func (suite *DebtServiceTestSuite) reserve(customerID string, amount int64) *domain.CreditCheckResult {
	result, err := suite.service.CheckCreditAvailability(suite.ctx, customerID, d(amount), domain.CreditCheckOptions{
		ReserveCredit: true,
		OrderID:       uuid.NewString(),
		UserID:        "sales-1",
	})
	suite.Require().NoError(err)
	return result
}

func (suite *DebtServiceTestSuite) currentDebt(customerID string) decimal.Decimal {
	account, err := suite.repo.FindByCustomerID(suite.ctx, customerID)
	suite.Require().NoError(err)
	return account.CurrentDebt
}

func (suite *DebtServiceTestSuite) ledgerSum(customerID string) decimal.Decimal {
	sum, err := suite.repo.SumLedger(suite.ctx, customerID)
	suite.Require().NoError(err)
	return sum
}

// --- Validation ---

func (suite *DebtServiceTestSuite) TestCheckCreditAvailability_Validation() {
	_, err := suite.service.CheckCreditAvailability(suite.ctx, "not-a-uuid", d(1), domain.CreditCheckOptions{})
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(0), domain.CreditCheckOptions{})
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(-5), domain.CreditCheckOptions{})
	suite.ErrorIs(err, apperrors.ErrValidation)
}

// --- Example scenarios ---

func (suite *DebtServiceTestSuite) TestScenario_ReserveThenReject() {
	result := suite.reserve(suite.customer, 700000)
	suite.True(result.Allowed)
	suite.True(result.CurrentDebt.IsZero(), "result reports the balance seen before the reservation")
	suite.Nil(result.Shortfall)
	suite.True(suite.currentDebt(suite.customer).Equal(d(700000)))

	result, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(500000), domain.CreditCheckOptions{})
	suite.Require().NoError(err)
	suite.False(result.Allowed)
	suite.Require().NotNil(result.Shortfall)
	suite.True(result.Shortfall.Equal(d(200000)))
	suite.Equal("Credit limit exceeded. Current debt: 700.000đ, limit: 1.000.000đ, shortfall: 200.000đ", result.Message)
	suite.True(suite.currentDebt(suite.customer).Equal(d(700000)))
}

func (suite *DebtServiceTestSuite) TestScenario_PaymentAfterReservation() {
	suite.reserve(suite.customer, 700000)

	summary, err := suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(300000), RecordedBy: "cashier-1"})
	suite.Require().NoError(err)
	suite.True(summary.CurrentDebt.Equal(d(400000)))
	suite.True(summary.AvailableCredit.Equal(d(600000)))
	suite.NotNil(summary.LastPaymentDate)

	history, next, err := suite.service.GetDebtHistory(suite.ctx, suite.customer, domain.HistoryFilter{})
	suite.Require().NoError(err)
	suite.Nil(next)
	suite.Len(history, 2)
	suite.True(domain.SumAmounts(history).Equal(d(400000)))
}

func (suite *DebtServiceTestSuite) TestCheckWithoutReserve_DoesNotMutate() {
	result, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(1000000), domain.CreditCheckOptions{})
	suite.Require().NoError(err)
	suite.True(result.Allowed, "exactly at the limit is allowed")
	suite.True(suite.currentDebt(suite.customer).IsZero())
	suite.True(suite.ledgerSum(suite.customer).IsZero())
}

func (suite *DebtServiceTestSuite) TestReservationLedgerRow() {
	orderID := uuid.NewString()
	_, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(250000), domain.CreditCheckOptions{
		ReserveCredit: true,
		OrderID:       orderID,
		UserID:        "sales-1",
	})
	suite.Require().NoError(err)
	suite.reserve(suite.customer, 100000)

	history, _, err := suite.service.GetDebtHistory(suite.ctx, suite.customer, domain.HistoryFilter{})
	suite.Require().NoError(err)
	suite.Require().Len(history, 2)

	var first domain.LedgerTransaction
	for _, h := range history {
		if h.OrderID != nil && *h.OrderID == orderID {
			first = h
		}
	}
	suite.Equal(domain.LedgerOrder, first.TransactionType)
	suite.Equal("Credit reserved for order", first.Notes)
	suite.Equal("sales-1", first.CreatedBy)
	suite.True(first.BalanceBefore.IsZero())
	suite.True(first.BalanceAfter.Equal(d(250000)))
}

func (suite *DebtServiceTestSuite) TestReservationWithoutOrderOrUser_StillWritesLedger() {
	_, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(1000), domain.CreditCheckOptions{ReserveCredit: true})
	suite.Require().NoError(err)

	history, _, err := suite.service.GetDebtHistory(suite.ctx, suite.customer, domain.HistoryFilter{})
	suite.Require().NoError(err)
	suite.Require().Len(history, 1)
	suite.Nil(history[0].OrderID)
	suite.Equal(domain.SystemActor, history[0].CreatedBy)
	suite.True(suite.currentDebt(suite.customer).Equal(suite.ledgerSum(suite.customer)))
}

// --- Properties ---

func (suite *DebtServiceTestSuite) TestNoOvershootUnderConcurrency() {
	const attempts = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			result, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(600000), domain.CreditCheckOptions{
				ReserveCredit: true,
				OrderID:       uuid.NewString(),
				UserID:        "sales-1",
			})
			if err != nil {
				return
			}
			if result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	suite.Equal(1, allowed)
	suite.True(suite.currentDebt(suite.customer).Equal(d(600000)))
	suite.True(suite.ledgerSum(suite.customer).Equal(d(600000)))
}

func (suite *DebtServiceTestSuite) TestConcurrentReservationsFillLimitExactly() {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(150000), domain.CreditCheckOptions{ReserveCredit: true, UserID: "sales-1"})
		}()
	}
	wg.Wait()

	// floor(1_000_000 / 150_000) = 6
	suite.True(suite.currentDebt(suite.customer).Equal(d(900000)))
	suite.True(suite.ledgerSum(suite.customer).Equal(d(900000)))
}

func (suite *DebtServiceTestSuite) TestLedgerAgreesWithAccountAfterEveryCall() {
	steps := []struct {
		reserve int64
		pay     int64
	}{
		{reserve: 120000}, {reserve: 80000}, {pay: 50000}, {reserve: 300000},
		{pay: 450000}, {reserve: 999999}, {pay: 1}, {reserve: 1},
	}
	epsilon := decimal.RequireFromString("0.01")

	for _, step := range steps {
		if step.reserve > 0 {
			suite.reserve(suite.customer, step.reserve)
		}
		if step.pay > 0 {
			_, err := suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(step.pay), RecordedBy: "cashier-1"})
			suite.Require().NoError(err)
		}
		sum := suite.ledgerSum(suite.customer)
		if sum.IsNegative() {
			sum = decimal.Zero
		}
		suite.True(sum.Sub(suite.currentDebt(suite.customer)).Abs().LessThanOrEqual(epsilon),
			"ledger %s vs account %s", sum, suite.currentDebt(suite.customer))
	}
}

func (suite *DebtServiceTestSuite) TestRollbackWhenLedgerAppendFails() {
	suite.reserve(suite.customer, 100000)
	before := suite.currentDebt(suite.customer)

	appendErr := errors.New("ledger unavailable")
	suite.repo.SetAppendHook(func(context.Context, string, domain.LedgerTransactionType) error {
		return appendErr
	})
	defer suite.repo.SetAppendHook(nil)

	result, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(200000), domain.CreditCheckOptions{ReserveCredit: true, UserID: "sales-1"})
	suite.ErrorIs(err, appendErr)
	suite.Nil(result)
	suite.True(suite.currentDebt(suite.customer).Equal(before))

	_, err = suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(50000), RecordedBy: "cashier-1"})
	suite.ErrorIs(err, appendErr)
	suite.True(suite.currentDebt(suite.customer).Equal(before))

	account, err := suite.repo.FindByCustomerID(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.Nil(account.LastPaymentDate)
}

func (suite *DebtServiceTestSuite) TestBlockedCustomerNeverReserves() {
	suite.reserve(suite.customer, 100000)
	_, err := suite.service.SetBlockStatus(suite.ctx, suite.customer, true, "overdue invoices", "admin-1")
	suite.Require().NoError(err)

	for _, amount := range []int64{1, 100000, 5000000} {
		result, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(amount), domain.CreditCheckOptions{ReserveCredit: true, UserID: "sales-1"})
		suite.Require().NoError(err)
		suite.False(result.Allowed)
		suite.Equal("Customer is blocked. Reason: overdue invoices", result.Message)
		suite.Require().NotNil(result.Shortfall)
		suite.True(result.Shortfall.Equal(d(100000 + amount - 1000000)))
	}
	suite.True(suite.currentDebt(suite.customer).Equal(d(100000)))
	suite.True(suite.ledgerSum(suite.customer).Equal(d(100000)))
}

func (suite *DebtServiceTestSuite) TestBlockedWithoutReason_UsesDefaultMessage() {
	_, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	_, err = suite.service.SetBlockStatus(suite.ctx, suite.customer, true, "", "admin-1")
	suite.Require().NoError(err)

	result, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(1), domain.CreditCheckOptions{})
	suite.Require().NoError(err)
	suite.Equal("Customer is blocked. Reason: credit limit exceeded", result.Message)
}

func (suite *DebtServiceTestSuite) TestPaymentSignConvention() {
	suite.reserve(suite.customer, 700000)

	_, err := suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(50000), Notes: "bank transfer", RecordedBy: "cashier-1"})
	suite.Require().NoError(err)
	suite.True(suite.currentDebt(suite.customer).Equal(d(650000)))

	payment := domain.LedgerPayment
	history, _, err := suite.service.GetDebtHistory(suite.ctx, suite.customer, domain.HistoryFilter{TransactionType: &payment})
	suite.Require().NoError(err)
	suite.Require().Len(history, 1)
	suite.True(history[0].Amount.Equal(d(-50000)))
	suite.True(history[0].BalanceBefore.Equal(d(700000)))
	suite.True(history[0].BalanceAfter.Equal(d(650000)))
	suite.NotNil(history[0].PaidDate)
	suite.Equal("bank transfer", history[0].Notes)
	suite.Equal("cashier-1", history[0].CreatedBy)
}

func (suite *DebtServiceTestSuite) TestRecordPayment_Validation() {
	_, err := suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(0), RecordedBy: "c"})
	suite.ErrorIs(err, apperrors.ErrValidation)
	_, err = suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(10)})
	suite.ErrorIs(err, apperrors.ErrValidation)
	_, err = suite.service.RecordPayment(suite.ctx, "bad", domain.Payment{Amount: d(10), RecordedBy: "c"})
	suite.ErrorIs(err, apperrors.ErrValidation)
}

// --- Summary and reconciliation ---

func (suite *DebtServiceTestSuite) TestGetCustomerDebt_CreatesAccountLazily() {
	summary, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.True(summary.CurrentDebt.IsZero())
	suite.True(summary.CreditLimit.Equal(d(1000000)))
	suite.True(summary.AvailableCredit.Equal(d(1000000)))
	suite.Equal(domain.PaymentPatternPoor, summary.PaymentPattern, "no payment history")
	suite.False(summary.IsBlocked)
}

func (suite *DebtServiceTestSuite) TestGetCustomerDebt_RepairsDrift() {
	_, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.repo.SeedTransaction(domain.LedgerTransaction{CustomerID: suite.customer, TransactionType: domain.LedgerAdjustment, Amount: d(300000)})

	summary, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.True(summary.CurrentDebt.Equal(d(300000)))
	suite.True(suite.currentDebt(suite.customer).Equal(d(300000)))
	suite.Contains(suite.publisher.types(), events.DebtReconciled)
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.ReconciliationRepair.WithLabelValues("repaired")))
}

func (suite *DebtServiceTestSuite) TestGetCustomerDebt_ClampsNegativeLedger() {
	suite.reserve(suite.customer, 100000)
	suite.repo.SeedTransaction(domain.LedgerTransaction{CustomerID: suite.customer, TransactionType: domain.LedgerWriteOff, Amount: d(-500000)})

	summary, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.True(summary.CurrentDebt.IsZero())
	suite.True(summary.AvailableCredit.Equal(d(1000000)))
}

func (suite *DebtServiceTestSuite) TestGetCustomerDebt_IgnoresDriftWithinEpsilon() {
	_, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.repo.SeedTransaction(domain.LedgerTransaction{CustomerID: suite.customer, TransactionType: domain.LedgerAdjustment, Amount: decimal.RequireFromString("0.005")})

	summary, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.True(summary.CurrentDebt.IsZero())
	suite.NotContains(suite.publisher.types(), events.DebtReconciled)
}

func (suite *DebtServiceTestSuite) TestGetCustomerDebt_OverdueAndPattern() {
	suite.reserve(suite.customer, 500000)
	past := time.Now().UTC().Add(-72 * time.Hour)
	suite.repo.SeedTransaction(domain.LedgerTransaction{CustomerID: suite.customer, TransactionType: domain.LedgerOrder, Amount: d(0), DueDate: &past})

	summary, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.True(summary.OverdueAmount.IsZero())
	suite.Equal(domain.PaymentPatternPoor, summary.PaymentPattern)

	suite.repo.SeedTransaction(domain.LedgerTransaction{CustomerID: suite.customer, TransactionType: domain.LedgerOrder, Amount: d(0), DueDate: &past})
	for i := 0; i < 3; i++ {
		_, err := suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(10000), RecordedBy: "cashier-1"})
		suite.Require().NoError(err)
	}
	summary, err = suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.Equal(domain.PaymentPatternAverage, summary.PaymentPattern, "payments but overdue entries exist")
}

func (suite *DebtServiceTestSuite) TestGetCustomerDebt_GoodPattern() {
	suite.reserve(suite.customer, 500000)
	for i := 0; i < 3; i++ {
		_, err := suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(10000), RecordedBy: "cashier-1"})
		suite.Require().NoError(err)
	}
	summary, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.Equal(domain.PaymentPatternGood, summary.PaymentPattern)
	suite.True(summary.CurrentDebt.Equal(d(470000)))
}

func (suite *DebtServiceTestSuite) TestGetCustomerDebt_OverdueAmount() {
	_, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	past := time.Now().UTC().Add(-24 * time.Hour)
	future := time.Now().UTC().Add(24 * time.Hour)
	suite.repo.SeedTransaction(domain.LedgerTransaction{CustomerID: suite.customer, TransactionType: domain.LedgerOrder, Amount: d(120000), DueDate: &past})
	suite.repo.SeedTransaction(domain.LedgerTransaction{CustomerID: suite.customer, TransactionType: domain.LedgerOrder, Amount: d(80000), DueDate: &future})

	summary, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.True(summary.OverdueAmount.Equal(d(120000)))
	suite.True(summary.CurrentDebt.Equal(d(200000)))

	overdue, err := suite.service.ListOverdue(suite.ctx)
	suite.Require().NoError(err)
	suite.Len(overdue, 1)
}

func (suite *DebtServiceTestSuite) TestReconcileAll() {
	other := uuid.NewString()
	for _, id := range []string{suite.customer, other} {
		_, err := suite.service.GetCustomerDebt(suite.ctx, id)
		suite.Require().NoError(err)
		suite.repo.SeedTransaction(domain.LedgerTransaction{CustomerID: id, TransactionType: domain.LedgerAdjustment, Amount: d(42)})
	}

	processed, err := suite.service.ReconcileAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(2, processed)
	suite.True(suite.currentDebt(suite.customer).Equal(d(42)))
	suite.True(suite.currentDebt(other).Equal(d(42)))
}

// --- Credit limit and block status ---

func (suite *DebtServiceTestSuite) TestUpdateCreditLimit() {
	_, err := suite.service.UpdateCreditLimit(suite.ctx, suite.customer, d(2000000), "admin-1", "good history")
	suite.ErrorIs(err, apperrors.ErrNotFound, "must not create the account")
	_, err = suite.repo.FindByCustomerID(suite.ctx, suite.customer)
	suite.ErrorIs(err, apperrors.ErrNotFound)

	suite.reserve(suite.customer, 900000)

	_, err = suite.service.UpdateCreditLimit(suite.ctx, suite.customer, d(-1), "admin-1", "")
	suite.ErrorIs(err, apperrors.ErrValidation)
	_, err = suite.service.UpdateCreditLimit(suite.ctx, suite.customer, d(1), "", "")
	suite.ErrorIs(err, apperrors.ErrValidation)

	account, err := suite.service.UpdateCreditLimit(suite.ctx, suite.customer, d(2000000), "admin-1", "good history")
	suite.Require().NoError(err)
	suite.True(account.CreditLimit.Equal(d(2000000)))
	suite.Equal("admin-1", account.LastUpdatedBy)

	result, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(1000000), domain.CreditCheckOptions{})
	suite.Require().NoError(err)
	suite.True(result.Allowed)

	changes, err := suite.service.GetCreditLimitHistory(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.Require().Len(changes, 1)
	suite.True(changes[0].PreviousLimit.Equal(d(1000000)))
	suite.True(changes[0].NewLimit.Equal(d(2000000)))
	suite.Equal("good history", changes[0].Reason)
	suite.Contains(suite.publisher.types(), events.CreditLimitChanged)
}

func (suite *DebtServiceTestSuite) TestGetCreditLimitHistory_UnknownCustomer() {
	_, err := suite.service.GetCreditLimitHistory(suite.ctx, suite.customer)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *DebtServiceTestSuite) TestSetBlockStatus() {
	_, err := suite.service.SetBlockStatus(suite.ctx, suite.customer, true, "fraud", "admin-1")
	suite.ErrorIs(err, apperrors.ErrNotFound)

	_, err = suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)

	_, err = suite.service.SetBlockStatus(suite.ctx, suite.customer, false, "", "admin-1")
	suite.ErrorIs(err, apperrors.ErrConflict)

	account, err := suite.service.SetBlockStatus(suite.ctx, suite.customer, true, "fraud", "admin-1")
	suite.Require().NoError(err)
	suite.True(account.IsBlocked)

	_, err = suite.service.SetBlockStatus(suite.ctx, suite.customer, true, "fraud", "admin-1")
	suite.ErrorIs(err, apperrors.ErrConflict)

	account, err = suite.service.SetBlockStatus(suite.ctx, suite.customer, false, "", "admin-1")
	suite.Require().NoError(err)
	suite.False(account.IsBlocked)
	suite.Empty(account.BlockReason)

	result := suite.reserve(suite.customer, 1000)
	suite.True(result.Allowed)
}

// --- History ---

func (suite *DebtServiceTestSuite) TestGetDebtHistory_Validation() {
	bogus := domain.LedgerTransactionType("BOGUS")
	_, _, err := suite.service.GetDebtHistory(suite.ctx, suite.customer, domain.HistoryFilter{TransactionType: &bogus})
	suite.ErrorIs(err, apperrors.ErrValidation)

	from := time.Now()
	to := from.Add(-time.Hour)
	_, _, err = suite.service.GetDebtHistory(suite.ctx, suite.customer, domain.HistoryFilter{From: &from, To: &to})
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *DebtServiceTestSuite) TestGetDebtHistory_Pages() {
	for i := 0; i < 3; i++ {
		suite.reserve(suite.customer, 1000)
	}
	page, next, err := suite.service.GetDebtHistory(suite.ctx, suite.customer, domain.HistoryFilter{Limit: 2})
	suite.Require().NoError(err)
	suite.Len(page, 2)
	suite.Require().NotNil(next)

	rest, next, err := suite.service.GetDebtHistory(suite.ctx, suite.customer, domain.HistoryFilter{Limit: 2, NextToken: next})
	suite.Require().NoError(err)
	suite.Len(rest, 1)
	suite.Nil(next)
}

// --- Events and metrics ---

func (suite *DebtServiceTestSuite) TestEventsPublishedAfterCommit() {
	suite.reserve(suite.customer, 1000)
	_, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(5000000), domain.CreditCheckOptions{ReserveCredit: true})
	suite.Require().NoError(err)
	_, err = suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(500), RecordedBy: "cashier-1"})
	suite.Require().NoError(err)

	suite.Equal([]events.DebtEventType{events.CreditReserved, events.PaymentRecorded}, suite.publisher.types())
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.CreditChecks.WithLabelValues(metrics.OutcomeApproved, "true")))
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.CreditChecks.WithLabelValues(metrics.OutcomeRejected, "true")))
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.PaymentsRecorded))
}

func (suite *DebtServiceTestSuite) TestPublishFailureDoesNotFailOperation() {
	suite.publisher.err = errors.New("broker down")

	result := suite.reserve(suite.customer, 1000)
	suite.True(result.Allowed)
	suite.True(suite.currentDebt(suite.customer).Equal(d(1000)))
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.EventPublishFailures))
}

// --- Posted transactions ---

func (suite *DebtServiceTestSuite) post(txnType domain.LedgerTransactionType, amount int64, dueDate *time.Time) *domain.LedgerTransaction {
	txn, err := suite.service.AddTransaction(suite.ctx, suite.customer, txnType, d(amount), "accountant-1", domain.TransactionOptions{DueDate: dueDate})
	suite.Require().NoError(err)
	return txn
}

func (suite *DebtServiceTestSuite) TestAddTransaction_SignsAndSnapshots() {
	order := suite.post(domain.LedgerOrder, 400000, nil)
	suite.True(order.Amount.Equal(d(400000)))
	suite.True(order.BalanceBefore.IsZero())
	suite.True(order.BalanceAfter.Equal(d(400000)))

	refund := suite.post(domain.LedgerRefund, 50000, nil)
	suite.True(refund.Amount.Equal(d(-50000)))
	suite.True(refund.BalanceBefore.Equal(d(400000)))

	writeOff := suite.post(domain.LedgerWriteOff, 20000, nil)
	suite.True(writeOff.Amount.Equal(d(-20000)))

	adjustDown := suite.post(domain.LedgerAdjustment, -30000, nil)
	suite.True(adjustDown.Amount.Equal(d(-30000)))
	adjustUp := suite.post(domain.LedgerAdjustment, 5000, nil)
	suite.True(adjustUp.BalanceAfter.Equal(d(305000)))

	suite.True(suite.currentDebt(suite.customer).Equal(d(305000)))
	suite.True(suite.ledgerSum(suite.customer).Equal(d(305000)))
	suite.Equal(2.0, testutil.ToFloat64(suite.metrics.TransactionsPosted.WithLabelValues("ADJUSTMENT")))
	suite.Contains(suite.publisher.types(), events.TransactionPosted)
}

func (suite *DebtServiceTestSuite) TestAddTransaction_Validation() {
	tests := []struct {
		name     string
		customer string
		txnType  domain.LedgerTransactionType
		amount   decimal.Decimal
		actor    string
	}{
		{"bad customer", "nope", domain.LedgerOrder, d(1), "a"},
		{"unknown type", suite.customer, "LOAN", d(1), "a"},
		{"payment", suite.customer, domain.LedgerPayment, d(1), "a"},
		{"zero amount", suite.customer, domain.LedgerAdjustment, d(0), "a"},
		{"negative refund", suite.customer, domain.LedgerRefund, d(-1), "a"},
		{"sub-cent amount", suite.customer, domain.LedgerOrder, decimal.RequireFromString("0.001"), "a"},
		{"missing actor", suite.customer, domain.LedgerOrder, d(1), ""},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.service.AddTransaction(suite.ctx, tt.customer, tt.txnType, tt.amount, tt.actor, domain.TransactionOptions{})
			suite.ErrorIs(err, apperrors.ErrValidation)
		})
	}
	_, err := suite.repo.FindByCustomerID(suite.ctx, suite.customer)
	suite.ErrorIs(err, apperrors.ErrNotFound, "rejected input must not create an account")
}

func (suite *DebtServiceTestSuite) TestAddTransaction_RollsBackWhenAppendFails() {
	suite.post(domain.LedgerOrder, 100000, nil)
	appendErr := errors.New("ledger unavailable")
	suite.repo.SetAppendHook(func(context.Context, string, domain.LedgerTransactionType) error {
		return appendErr
	})
	defer suite.repo.SetAppendHook(nil)

	_, err := suite.service.AddTransaction(suite.ctx, suite.customer, domain.LedgerWriteOff, d(40000), "accountant-1", domain.TransactionOptions{})
	suite.ErrorIs(err, appendErr)
	suite.True(suite.currentDebt(suite.customer).Equal(d(100000)))
}

func (suite *DebtServiceTestSuite) TestLedgerAgreesWithAccountAcrossTransactionTypes() {
	past := time.Now().UTC().Add(-48 * time.Hour)
	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	epsilon := decimal.RequireFromString("0.01")

	steps := []func(){
		func() { suite.post(domain.LedgerOrder, 250000, &past) },
		func() {
			_, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(100000), domain.CreditCheckOptions{ReserveCredit: true, DueDate: &future})
			suite.Require().NoError(err)
		},
		func() { suite.post(domain.LedgerAdjustment, -15000, nil) },
		func() {
			_, err := suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(60000), RecordedBy: "cashier-1"})
			suite.Require().NoError(err)
		},
		func() { suite.post(domain.LedgerRefund, 25000, nil) },
		func() { suite.post(domain.LedgerAdjustment, 7000, nil) },
		func() {
			_, err := suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(400000), RecordedBy: "cashier-1"})
			suite.Require().NoError(err)
		},
		func() { suite.post(domain.LedgerWriteOff, 1000, nil) },
	}

	for i, step := range steps {
		step()
		sum := suite.ledgerSum(suite.customer)
		if sum.IsNegative() {
			sum = decimal.Zero
		}
		debt := suite.currentDebt(suite.customer)
		if debt.IsNegative() {
			debt = decimal.Zero
		}
		suite.True(sum.Sub(debt).Abs().LessThanOrEqual(epsilon), "step %d: ledger %s vs account %s", i, sum, debt)
	}
}

func (suite *DebtServiceTestSuite) TestReservationWithDueDate_BecomesOverdue() {
	past := time.Now().UTC().Add(-time.Hour)
	result, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, d(300000), domain.CreditCheckOptions{
		ReserveCredit: true,
		UserID:        "sales-1",
		DueDate:       &past,
	})
	suite.Require().NoError(err)
	suite.True(result.Allowed)

	summary, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.True(summary.OverdueAmount.Equal(d(300000)))

	overdue, err := suite.service.ListOverdue(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(overdue, 1)
	suite.Equal("Credit reserved for order", overdue[0].Notes)
}

func (suite *DebtServiceTestSuite) TestPoorPattern_FromPostedOverdueOrders() {
	past := time.Now().UTC().Add(-10 * 24 * time.Hour)
	for i := 0; i < 4; i++ {
		suite.post(domain.LedgerOrder, 50000, &past)
	}
	for i := 0; i < 3; i++ {
		_, err := suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: d(10000), RecordedBy: "cashier-1"})
		suite.Require().NoError(err)
	}

	summary, err := suite.service.GetCustomerDebt(suite.ctx, suite.customer)
	suite.Require().NoError(err)
	suite.True(summary.OverdueAmount.Equal(d(200000)))
	suite.True(summary.CurrentDebt.Equal(d(170000)))
	suite.Equal(domain.PaymentPatternPoor, summary.PaymentPattern, "more than three overdue entries outweigh recent payments")
}

func (suite *DebtServiceTestSuite) TestMoneyScaleRejected() {
	subCent := decimal.RequireFromString("0.001")

	_, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, subCent, domain.CreditCheckOptions{ReserveCredit: true})
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.service.RecordPayment(suite.ctx, suite.customer, domain.Payment{Amount: subCent, RecordedBy: "cashier-1"})
	suite.ErrorIs(err, apperrors.ErrValidation)

	suite.post(domain.LedgerOrder, 1, nil)
	_, err = suite.service.UpdateCreditLimit(suite.ctx, suite.customer, decimal.RequireFromString("100.005"), "manager-1", "")
	suite.ErrorIs(err, apperrors.ErrValidation)

	result, err := suite.service.CheckCreditAvailability(suite.ctx, suite.customer, decimal.RequireFromString("10.50"), domain.CreditCheckOptions{ReserveCredit: true})
	suite.Require().NoError(err)
	suite.True(result.Allowed)
}
