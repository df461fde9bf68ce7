package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/credit_ledger_service/internal/apperrors"
	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	"github.com/SscSPs/credit_ledger_service/internal/core/ports/events"
	portsrepo "github.com/SscSPs/credit_ledger_service/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/credit_ledger_service/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_service/internal/platform/metrics"
	"github.com/SscSPs/credit_ledger_service/internal/utils"
	"github.com/SscSPs/credit_ledger_service/internal/utils/accounting"
	"github.com/shopspring/decimal"
)

const (
	// DefaultPaymentPatternWindow is how far back payments count towards the pattern (about six months).
	DefaultPaymentPatternWindow = 4380 * time.Hour

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	goodPatternMinPayments = 3
	poorPatternMaxOverdue  = 3

	reservationNotes     = "Credit reserved for order"
	defaultBlockedReason = "credit limit exceeded"
)

// errCheckRejected aborts the credit check unit of work when the check does not pass.
// It never leaves the service.
var errCheckRejected = errors.New("credit check rejected")

// DebtServiceOption is a functional option for configuring the debt service
type DebtServiceOption func(*debtService)

// WithDefaultCreditLimit sets the limit given to lazily created accounts.
func WithDefaultCreditLimit(limit decimal.Decimal) DebtServiceOption {
	return func(s *debtService) {
		s.defaultCreditLimit = limit
	}
}

// WithReconciliationEpsilon sets the tolerated drift between cached balance and ledger sum.
func WithReconciliationEpsilon(epsilon decimal.Decimal) DebtServiceOption {
	return func(s *debtService) {
		s.epsilon = epsilon
	}
}

// WithPaymentPatternWindow sets the look-back window of the payment pattern heuristic.
func WithPaymentPatternWindow(window time.Duration) DebtServiceOption {
	return func(s *debtService) {
		if window > 0 {
			s.patternWindow = window
		}
	}
}

// WithEventPublisher publishes debt events after each committed write.
func WithEventPublisher(publisher events.Publisher) DebtServiceOption {
	return func(s *debtService) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithMetrics records Prometheus metrics for credit checks, payments and repairs.
func WithMetrics(m *metrics.DebtMetrics) DebtServiceOption {
	return func(s *debtService) {
		s.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) DebtServiceOption {
	return func(s *debtService) {
		if now != nil {
			s.now = now
		}
	}
}

// debtService implements credit checks, payments and reconciliation over the debt repository.
type debtService struct {
	BaseService
	repo               portsrepo.DebtRepositoryWithTx
	defaultCreditLimit decimal.Decimal
	epsilon            decimal.Decimal
	patternWindow      time.Duration
	publisher          events.Publisher
	metrics            *metrics.DebtMetrics
	now                func() time.Time
}

// NewDebtService creates a new debt service.
func NewDebtService(repo portsrepo.DebtRepositoryWithTx, options ...DebtServiceOption) portssvc.DebtSvcFacade {
	svc := &debtService{
		repo:               repo,
		defaultCreditLimit: decimal.Zero,
		epsilon:            accounting.DefaultReconciliationEpsilon,
		patternWindow:      DefaultPaymentPatternWindow,
		publisher:          events.NopPublisher{},
		now:                func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		opt(svc)
	}
	return svc
}

var _ portssvc.DebtSvcFacade = (*debtService)(nil)

func validateCustomerID(customerID string) error {
	if !domain.IsValidID(customerID) {
		return fmt.Errorf("%w: invalid customer ID %q", apperrors.ErrValidation, customerID)
	}
	return nil
}

// validateMoneyScale rejects amounts the money columns would have to round.
func validateMoneyScale(name string, amount decimal.Decimal) error {
	if !accounting.HasMoneyScale(amount) {
		return fmt.Errorf("%w: %s must have at most %d decimal places", apperrors.ErrValidation, name, accounting.MoneyScale)
	}
	return nil
}

// CheckCreditAvailability checks (currentDebt + orderAmount) <= creditLimit while holding
// the customer's account lock, and reserves the amount when asked to and the check passes.
// Blocked customers and limit breaches are reported through the result, not as errors.
func (s *debtService) CheckCreditAvailability(ctx context.Context, customerID string, orderAmount decimal.Decimal, opts domain.CreditCheckOptions) (*domain.CreditCheckResult, error) {
	if err := validateCustomerID(customerID); err != nil {
		return nil, err
	}
	if !orderAmount.IsPositive() {
		return nil, fmt.Errorf("%w: order amount must be greater than zero", apperrors.ErrValidation)
	}
	if err := validateMoneyScale("order amount", orderAmount); err != nil {
		return nil, err
	}

	logger := s.GetLogger(ctx).With(
		slog.String("customer_id", customerID),
		slog.String("order_amount", orderAmount.String()),
	)
	actorID := opts.UserID
	if actorID == "" {
		actorID = domain.SystemActor
	}

	start := time.Now()
	var result *domain.CreditCheckResult
	var reservation *domain.LedgerTransaction
	outcome := metrics.OutcomeApproved

	err := s.repo.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.repo.FindOrCreateWithLock(txCtx, customerID, s.defaultCreditLimit)
		if err != nil {
			return fmt.Errorf("failed to lock credit account: %w", err)
		}

		totalAfter := account.CurrentDebt.Add(orderAmount)
		shortfall := totalAfter.Sub(account.CreditLimit)

		if account.IsBlocked {
			reason := account.BlockReason
			if reason == "" {
				reason = defaultBlockedReason
			}
			result = &domain.CreditCheckResult{
				Allowed:     false,
				CurrentDebt: account.CurrentDebt,
				CreditLimit: account.CreditLimit,
				OrderAmount: orderAmount,
				Shortfall:   &shortfall,
				Message:     fmt.Sprintf("Customer is blocked. Reason: %s", reason),
			}
			outcome = metrics.OutcomeBlocked
			return errCheckRejected
		}

		if totalAfter.GreaterThan(account.CreditLimit) {
			result = &domain.CreditCheckResult{
				Allowed:     false,
				CurrentDebt: account.CurrentDebt,
				CreditLimit: account.CreditLimit,
				OrderAmount: orderAmount,
				Shortfall:   &shortfall,
				Message: fmt.Sprintf("Credit limit exceeded. Current debt: %s, limit: %s, shortfall: %s",
					utils.FormatVND(account.CurrentDebt),
					utils.FormatVND(account.CreditLimit),
					utils.FormatVND(shortfall)),
			}
			outcome = metrics.OutcomeRejected
			return errCheckRejected
		}

		result = &domain.CreditCheckResult{
			Allowed:     true,
			CurrentDebt: account.CurrentDebt,
			CreditLimit: account.CreditLimit,
			OrderAmount: orderAmount,
			Message:     "Sufficient credit available",
		}
		if !opts.ReserveCredit {
			return nil
		}

		balanceBefore := account.CurrentDebt
		if _, err := s.repo.AddDebt(txCtx, customerID, orderAmount, actorID); err != nil {
			return fmt.Errorf("failed to reserve credit: %w", err)
		}

		txnOpts := domain.TransactionOptions{
			Notes:         reservationNotes,
			DueDate:       opts.DueDate,
			BalanceBefore: &balanceBefore,
		}
		if opts.OrderID != "" {
			orderID := opts.OrderID
			txnOpts.OrderID = &orderID
		}
		signed, err := accounting.CalculateSignedAmount(domain.LedgerOrder, orderAmount)
		if err != nil {
			return err
		}
		reservation, err = s.repo.AppendTransaction(txCtx, customerID, domain.LedgerOrder, signed, actorID, txnOpts)
		if err != nil {
			return fmt.Errorf("failed to append reservation to ledger: %w", err)
		}
		return nil
	})

	if errors.Is(err, errCheckRejected) {
		s.metrics.ObserveCreditCheck(outcome, opts.ReserveCredit, time.Since(start))
		logger.Debug("Credit check rejected", slog.String("outcome", outcome), slog.String("shortfall", result.Shortfall.String()))
		return result, nil
	}
	if err != nil {
		s.metrics.ObserveCreditCheck(metrics.OutcomeError, opts.ReserveCredit, time.Since(start))
		logger.Error("Credit check failed", slog.String("error", err.Error()))
		return nil, err
	}

	s.metrics.ObserveCreditCheck(outcome, opts.ReserveCredit, time.Since(start))
	if reservation != nil {
		s.metrics.AddReserved(orderAmount.InexactFloat64())
		logger.Info("Reserved credit", slog.String("transaction_id", reservation.TransactionID))
		s.publish(ctx, events.DebtEvent{
			Type:          events.CreditReserved,
			CustomerID:    customerID,
			Amount:        reservation.Amount,
			BalanceAfter:  reservation.BalanceAfter,
			TransactionID: reservation.TransactionID,
			OrderID:       opts.OrderID,
			ActorID:       actorID,
			OccurredAt:    reservation.CreatedAt,
		})
	} else {
		logger.Debug("Credit check allowed")
	}
	return result, nil
}

// RecordPayment reduces the customer's debt and appends the matching PAYMENT row in one
// unit of work, then returns the refreshed summary. Once the payment has committed the
// call succeeds: if the refreshed summary cannot be read, the committed account state
// is returned instead, so callers never retry a payment that was already recorded.
func (s *debtService) RecordPayment(ctx context.Context, customerID string, payment domain.Payment) (*domain.DebtSummary, error) {
	if err := validateCustomerID(customerID); err != nil {
		return nil, err
	}
	if !payment.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be greater than zero", apperrors.ErrValidation)
	}
	if err := validateMoneyScale("payment amount", payment.Amount); err != nil {
		return nil, err
	}
	if payment.RecordedBy == "" {
		return nil, fmt.Errorf("%w: recordedBy is required", apperrors.ErrValidation)
	}

	var (
		txn     *domain.LedgerTransaction
		updated *domain.CreditAccount
	)
	err := s.repo.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.repo.FindOrCreateWithLock(txCtx, customerID, s.defaultCreditLimit)
		if err != nil {
			return fmt.Errorf("failed to lock credit account: %w", err)
		}
		balanceBefore := account.CurrentDebt

		updated, err = s.repo.RecordPaymentOnAccount(txCtx, customerID, payment.Amount, payment.RecordedBy, s.now())
		if err != nil {
			return fmt.Errorf("failed to apply payment to account: %w", err)
		}

		signed, err := accounting.CalculateSignedAmount(domain.LedgerPayment, payment.Amount)
		if err != nil {
			return err
		}
		txn, err = s.repo.AppendTransaction(txCtx, customerID, domain.LedgerPayment, signed, payment.RecordedBy, domain.TransactionOptions{
			Notes:         payment.Notes,
			BalanceBefore: &balanceBefore,
		})
		if err != nil {
			return fmt.Errorf("failed to append payment to ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to record payment", slog.String("customer_id", customerID))
		return nil, err
	}

	s.metrics.ObservePayment(payment.Amount.InexactFloat64())
	s.LogInfo(ctx, "Recorded payment",
		slog.String("customer_id", customerID),
		slog.String("amount", payment.Amount.String()),
		slog.String("transaction_id", txn.TransactionID))
	s.publish(ctx, events.DebtEvent{
		Type:          events.PaymentRecorded,
		CustomerID:    customerID,
		Amount:        txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
		TransactionID: txn.TransactionID,
		ActorID:       payment.RecordedBy,
		OccurredAt:    txn.CreatedAt,
	})

	summary, err := s.GetCustomerDebt(ctx, customerID)
	if err != nil {
		s.LogWarn(ctx, "Payment committed but summary refresh failed, returning committed balance",
			slog.String("customer_id", customerID),
			slog.String("transaction_id", txn.TransactionID),
			slog.String("error", err.Error()))
		return committedSummary(customerID, updated, txn), nil
	}
	return summary, nil
}

// committedSummary builds a summary from state written in the unit of work. Overdue
// amount and pattern are not recomputed; they are reported as zero and AVERAGE.
func committedSummary(customerID string, account *domain.CreditAccount, txn *domain.LedgerTransaction) *domain.DebtSummary {
	summary := &domain.DebtSummary{
		CustomerID:     customerID,
		CurrentDebt:    accounting.ClampNonNegative(txn.BalanceAfter),
		OverdueAmount:  decimal.Zero,
		PaymentPattern: domain.PaymentPatternAverage,
	}
	if account != nil {
		summary.CurrentDebt = account.CurrentDebt
		summary.CreditLimit = account.CreditLimit
		summary.AvailableCredit = account.AvailableCredit()
		summary.LastPaymentDate = account.LastPaymentDate
		summary.IsBlocked = account.IsBlocked
		summary.BlockReason = account.BlockReason
	}
	return summary
}

// AddTransaction posts an ORDER, ADJUSTMENT, REFUND or WRITE_OFF entry and moves the
// cached balance by the same signed amount in one unit of work. ORDER entries with a
// due date feed overdue tracking. Payments go through RecordPayment, which also stamps
// the last payment date. No credit check is made.
func (s *debtService) AddTransaction(ctx context.Context, customerID string, txnType domain.LedgerTransactionType, amount decimal.Decimal, actorID string, opts domain.TransactionOptions) (*domain.LedgerTransaction, error) {
	if err := validateCustomerID(customerID); err != nil {
		return nil, err
	}
	switch {
	case !txnType.IsValid():
		return nil, fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrValidation, txnType)
	case txnType == domain.LedgerPayment:
		return nil, fmt.Errorf("%w: payments must be recorded with RecordPayment", apperrors.ErrValidation)
	case amount.IsZero():
		return nil, fmt.Errorf("%w: amount must not be zero", apperrors.ErrValidation)
	case txnType != domain.LedgerAdjustment && amount.IsNegative():
		return nil, fmt.Errorf("%w: %s amount must be greater than zero", apperrors.ErrValidation, txnType)
	}
	if err := validateMoneyScale("amount", amount); err != nil {
		return nil, err
	}
	if actorID == "" {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, domain.ErrActorRequired)
	}

	signed, err := accounting.CalculateSignedAmount(txnType, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	var txn *domain.LedgerTransaction
	err = s.repo.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.repo.FindOrCreateWithLock(txCtx, customerID, s.defaultCreditLimit)
		if err != nil {
			return fmt.Errorf("failed to lock credit account: %w", err)
		}
		balanceBefore := account.CurrentDebt

		if _, err := s.repo.AddDebt(txCtx, customerID, signed, actorID); err != nil {
			return fmt.Errorf("failed to apply %s to account: %w", txnType, err)
		}

		opts.BalanceBefore = &balanceBefore
		txn, err = s.repo.AppendTransaction(txCtx, customerID, txnType, signed, actorID, opts)
		if err != nil {
			return fmt.Errorf("failed to append %s to ledger: %w", txnType, err)
		}
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to add ledger transaction",
			slog.String("customer_id", customerID),
			slog.String("type", string(txnType)))
		return nil, err
	}

	s.metrics.IncTransactionPosted(string(txnType))
	s.LogInfo(ctx, "Posted ledger transaction",
		slog.String("customer_id", customerID),
		slog.String("type", string(txnType)),
		slog.String("amount", signed.String()),
		slog.String("transaction_id", txn.TransactionID))

	event := events.DebtEvent{
		Type:          events.TransactionPosted,
		CustomerID:    customerID,
		Amount:        txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
		TransactionID: txn.TransactionID,
		ActorID:       actorID,
		OccurredAt:    txn.CreatedAt,
	}
	if txn.OrderID != nil {
		event.OrderID = *txn.OrderID
	}
	s.publish(ctx, event)
	return txn, nil
}

// GetCustomerDebt returns the customer's summary, repairing the cached balance from the
// ledger when they have drifted apart.
func (s *debtService) GetCustomerDebt(ctx context.Context, customerID string) (*domain.DebtSummary, error) {
	if err := validateCustomerID(customerID); err != nil {
		return nil, err
	}

	account, err := s.repo.FindOrCreate(ctx, customerID, s.defaultCreditLimit)
	if err != nil {
		s.LogError(ctx, err, "Failed to load credit account", slog.String("customer_id", customerID))
		return nil, err
	}

	ledgerSum, err := s.repo.SumLedger(ctx, customerID)
	if err != nil {
		s.LogWarn(ctx, "Skipping reconciliation, ledger sum unavailable",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		s.metrics.ObserveRepair("skipped")
	} else if accounting.Diverges(account.CurrentDebt, accounting.ClampNonNegative(ledgerSum), s.epsilon) {
		s.LogWarn(ctx, "Cached debt diverges from ledger, repairing",
			slog.String("customer_id", customerID),
			slog.String("cached", account.CurrentDebt.String()),
			slog.String("ledger", ledgerSum.String()))
		if repaired, ok := s.repairCachedDebt(ctx, customerID); ok {
			account.CurrentDebt = repaired
		}
	}

	now := s.now()
	overdue, err := s.repo.FindOverdue(ctx, &customerID, now)
	if err != nil {
		s.LogError(ctx, err, "Failed to load overdue transactions", slog.String("customer_id", customerID))
		return nil, err
	}

	summary := &domain.DebtSummary{
		CustomerID:      customerID,
		CurrentDebt:     account.CurrentDebt,
		CreditLimit:     account.CreditLimit,
		AvailableCredit: account.AvailableCredit(),
		OverdueAmount:   domain.SumAmounts(overdue),
		LastPaymentDate: account.LastPaymentDate,
		PaymentPattern:  s.paymentPattern(ctx, customerID, len(overdue), now),
		IsBlocked:       account.IsBlocked,
		BlockReason:     account.BlockReason,
	}

	s.LogDebug(ctx, "Retrieved debt summary",
		slog.String("customer_id", customerID),
		slog.String("current_debt", summary.CurrentDebt.String()),
		slog.String("credit_limit", summary.CreditLimit.String()))
	return summary, nil
}

// repairCachedDebt overwrites the cached balance with the clamped ledger sum. It re-locks
// the account and re-reads the sum, so a reservation committed since the unlocked read is
// never clobbered. Failures are logged and reported as !ok.
func (s *debtService) repairCachedDebt(ctx context.Context, customerID string) (decimal.Decimal, bool) {
	var (
		before   decimal.Decimal
		repaired decimal.Decimal
		changed  bool
	)
	err := s.repo.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.repo.FindOrCreateWithLock(txCtx, customerID, s.defaultCreditLimit)
		if err != nil {
			return err
		}
		ledgerSum, err := s.repo.SumLedger(txCtx, customerID)
		if err != nil {
			return err
		}

		before = account.CurrentDebt
		repaired = account.CurrentDebt
		target := accounting.ClampNonNegative(ledgerSum)
		if !accounting.Diverges(account.CurrentDebt, target, s.epsilon) {
			return nil
		}
		if err := s.repo.SetCurrentDebt(txCtx, customerID, target, domain.SystemActor); err != nil {
			return err
		}
		repaired = target
		changed = true
		return nil
	})
	if err != nil {
		s.LogWarn(ctx, "Reconciliation repair failed",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		s.metrics.ObserveRepair("failed")
		return decimal.Zero, false
	}

	if !changed {
		s.metrics.ObserveRepair("skipped")
		return repaired, true
	}

	s.metrics.ObserveRepair("repaired")
	s.LogInfo(ctx, "Repaired cached debt",
		slog.String("customer_id", customerID),
		slog.String("from", before.String()),
		slog.String("to", repaired.String()))
	s.publish(ctx, events.DebtEvent{
		Type:         events.DebtReconciled,
		CustomerID:   customerID,
		Amount:       repaired.Sub(before),
		BalanceAfter: repaired,
		ActorID:      domain.SystemActor,
		OccurredAt:   s.now(),
	})
	return repaired, true
}

// paymentPattern classifies the customer, falling back to AVERAGE when the payment
// history cannot be read.
func (s *debtService) paymentPattern(ctx context.Context, customerID string, overdueCount int, now time.Time) domain.PaymentPattern {
	payments, err := s.repo.CountPaymentsSince(ctx, customerID, now.Add(-s.patternWindow))
	if err != nil {
		s.LogWarn(ctx, "Payment pattern unavailable, defaulting to AVERAGE",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		s.metrics.IncPatternFallback()
		return domain.PaymentPatternAverage
	}
	return classifyPaymentPattern(overdueCount, payments)
}

func classifyPaymentPattern(overdueCount, recentPayments int) domain.PaymentPattern {
	switch {
	case overdueCount == 0 && recentPayments >= goodPatternMinPayments:
		return domain.PaymentPatternGood
	case overdueCount > poorPatternMaxOverdue || recentPayments == 0:
		return domain.PaymentPatternPoor
	default:
		return domain.PaymentPatternAverage
	}
}

// GetDebtHistory returns a page of the customer's ledger, newest first.
func (s *debtService) GetDebtHistory(ctx context.Context, customerID string, filter domain.HistoryFilter) ([]domain.LedgerTransaction, *string, error) {
	if err := validateCustomerID(customerID); err != nil {
		return nil, nil, err
	}
	if filter.TransactionType != nil && !filter.TransactionType.IsValid() {
		return nil, nil, fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrValidation, *filter.TransactionType)
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, nil, fmt.Errorf("%w: start date must not be after end date", apperrors.ErrValidation)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultHistoryLimit
	case filter.Limit > maxHistoryLimit:
		filter.Limit = maxHistoryLimit
	}

	txns, nextToken, err := s.repo.ListTransactions(ctx, customerID, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to list debt history", slog.String("customer_id", customerID))
		return nil, nil, err
	}
	s.LogDebug(ctx, "Retrieved debt history", slog.String("customer_id", customerID), slog.Int("count", len(txns)))
	return txns, nextToken, nil
}

// ListOverdue returns unpaid, past-due ledger rows across all customers.
func (s *debtService) ListOverdue(ctx context.Context) ([]domain.LedgerTransaction, error) {
	txns, err := s.repo.FindOverdue(ctx, nil, s.now())
	if err != nil {
		s.LogError(ctx, err, "Failed to list overdue transactions")
		return nil, err
	}
	return txns, nil
}

// GetCreditLimitHistory returns the limit audit trail of an existing account.
func (s *debtService) GetCreditLimitHistory(ctx context.Context, customerID string) ([]domain.CreditLimitChange, error) {
	if err := validateCustomerID(customerID); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByCustomerID(ctx, customerID); err != nil {
		return nil, err
	}
	changes, err := s.repo.ListCreditLimitChanges(ctx, customerID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list credit limit changes", slog.String("customer_id", customerID))
		return nil, err
	}
	return changes, nil
}

// UpdateCreditLimit changes the limit of an existing account and records the change.
// It never creates an account.
func (s *debtService) UpdateCreditLimit(ctx context.Context, customerID string, newLimit decimal.Decimal, changedBy string, reason string) (*domain.CreditAccount, error) {
	if err := validateCustomerID(customerID); err != nil {
		return nil, err
	}
	if newLimit.IsNegative() {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, domain.ErrNegativeCreditLimit)
	}
	if err := validateMoneyScale("credit limit", newLimit); err != nil {
		return nil, err
	}
	if changedBy == "" {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, domain.ErrActorRequired)
	}

	var (
		updated *domain.CreditAccount
		change  domain.CreditLimitChange
	)
	err := s.repo.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.lockExisting(txCtx, customerID)
		if err != nil {
			return err
		}
		change, err = account.ChangeCreditLimit(newLimit, changedBy, reason, s.now())
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		if err := s.repo.UpdateCreditLimit(txCtx, *account, change); err != nil {
			return fmt.Errorf("failed to persist credit limit: %w", err)
		}
		updated = account
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to update credit limit", slog.String("customer_id", customerID))
		return nil, err
	}

	s.LogInfo(ctx, "Updated credit limit",
		slog.String("customer_id", customerID),
		slog.String("previous_limit", change.PreviousLimit.String()),
		slog.String("new_limit", change.NewLimit.String()),
		slog.String("changed_by", changedBy))
	s.publish(ctx, events.DebtEvent{
		Type:         events.CreditLimitChanged,
		CustomerID:   customerID,
		Amount:       change.NewLimit.Sub(change.PreviousLimit),
		BalanceAfter: updated.CurrentDebt,
		ActorID:      changedBy,
		OccurredAt:   change.ChangedAt,
	})
	return updated, nil
}

// SetBlockStatus blocks or unblocks an existing account. Requesting the state the
// account is already in is a conflict.
func (s *debtService) SetBlockStatus(ctx context.Context, customerID string, blocked bool, reason string, actorID string) (*domain.CreditAccount, error) {
	if err := validateCustomerID(customerID); err != nil {
		return nil, err
	}
	if actorID == "" {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, domain.ErrActorRequired)
	}

	var updated *domain.CreditAccount
	err := s.repo.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.lockExisting(txCtx, customerID)
		if err != nil {
			return err
		}
		if account.IsBlocked == blocked {
			return fmt.Errorf("%w: customer %s already has blocked=%t", apperrors.ErrConflict, customerID, blocked)
		}
		if blocked {
			account.Block(reason, actorID, s.now())
		} else {
			account.Unblock(actorID, s.now())
		}
		if err := s.repo.UpdateBlockStatus(txCtx, *account); err != nil {
			return fmt.Errorf("failed to persist block status: %w", err)
		}
		updated = account
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to set block status", slog.String("customer_id", customerID))
		return nil, err
	}

	s.LogInfo(ctx, "Updated block status",
		slog.String("customer_id", customerID),
		slog.Bool("blocked", blocked),
		slog.String("actor_id", actorID))
	s.publish(ctx, events.DebtEvent{
		Type:         events.BlockStatusChanged,
		CustomerID:   customerID,
		BalanceAfter: updated.CurrentDebt,
		ActorID:      actorID,
		OccurredAt:   updated.LastUpdatedAt,
	})
	return updated, nil
}

// lockExisting locks an account that must already exist. FindOrCreateWithLock only
// takes the lock here because the existence check has already passed.
func (s *debtService) lockExisting(txCtx context.Context, customerID string) (*domain.CreditAccount, error) {
	if _, err := s.repo.FindByCustomerID(txCtx, customerID); err != nil {
		return nil, err
	}
	account, err := s.repo.FindOrCreateWithLock(txCtx, customerID, s.defaultCreditLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to lock credit account: %w", err)
	}
	return account, nil
}

// ReconcileAll runs the summary reconciliation for every customer. It keeps going past
// individual failures and returns them joined.
func (s *debtService) ReconcileAll(ctx context.Context) (int, error) {
	customerIDs, err := s.repo.ListCustomerIDs(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to list customers for reconciliation")
		return 0, err
	}

	var errs []error
	processed := 0
	for _, customerID := range customerIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.GetCustomerDebt(ctx, customerID); err != nil {
			errs = append(errs, fmt.Errorf("customer %s: %w", customerID, err))
			continue
		}
		processed++
	}

	s.LogInfo(ctx, "Reconciliation finished",
		slog.Int("customers", len(customerIDs)),
		slog.Int("processed", processed),
		slog.Int("failed", len(errs)))
	return processed, errors.Join(errs...)
}

// publish delivers an event after commit. Delivery failures never fail the operation.
func (s *debtService) publish(ctx context.Context, event events.DebtEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.IncPublishFailure()
		s.LogWarn(ctx, "Failed to publish debt event",
			slog.String("type", string(event.Type)),
			slog.String("customer_id", event.CustomerID),
			slog.String("error", err.Error()))
	}
}
