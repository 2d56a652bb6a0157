package store

import (
	"context"
	"errors"

	"campus-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrOperationNotFound     = errors.New("replenishment operation not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrDuplicateConfirmation = errors.New("payment already confirmed")
	ErrUnderpayment          = errors.New("paid amount is below the requested amount")
	ErrTransactionFailure    = errors.New("store transaction failed")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidOrderState     = errors.New("invalid order state")
	ErrOrderNotReserved      = errors.New("order funds are not reserved")
	ErrAlreadyReserved       = errors.New("order funds are already reserved")
)

// IsNotFound reports whether err means the referenced entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrOperationNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsDuplicate reports whether err means the confirmation was already applied.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateConfirmation)
}

// IsRetryable reports whether the same request may be retried unchanged.
// Only store failures qualify; every core operation rolls back completely on them.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailure)
}

// Ledger holds the balance primitives. Both are single conditional statements.
type Ledger interface {
	Credit(ctx context.Context, userId int64, amount decimal.Decimal) error
	DebitIfSufficient(ctx context.Context, userId int64, amount decimal.Decimal) (bool, error)
	GetUserBalance(ctx context.Context, userId int64) (*models.UserBalance, error)
}

// ReplenishmentStore tracks top-up operations and applies provider confirmations.
type ReplenishmentStore interface {
	CreateReplenishment(ctx context.Context, userId int64, amount decimal.Decimal) (int64, error)
	CreateOrderReplenishment(ctx context.Context, userId, orderId int64, amount decimal.Decimal) (int64, error)
	LookupAmount(ctx context.Context, operationId int64) (decimal.Decimal, error)
	GetOperation(ctx context.Context, operationId int64) (*models.ReplenishmentOperation, error)
	FindAwaitingOperation(ctx context.Context, orderId int64) (*models.ReplenishmentOperation, error)
	EnsureOrderReplenishment(ctx context.Context, userId, orderId int64, shortfall decimal.Decimal) (*models.ReplenishmentOperation, bool, error)
	ConfirmPayment(ctx context.Context, operationId int64, totalPaid decimal.Decimal) (*models.ConfirmationResult, error)
	ListFlaggedOperations(ctx context.Context, limit int) ([]models.ReplenishmentOperation, error)
}

// OrderStore places orders and moves them through funding states.
type OrderStore interface {
	PlaceOrder(ctx context.Context, draft models.OrderDraft, mode models.FundingMode) (*models.OrderPlacement, error)
	FundOrder(ctx context.Context, orderId int64, mode models.FundingMode) (*models.OrderPlacement, error)
	GetOrder(ctx context.Context, orderId int64) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerId int64, limit, offset int) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderId int64, from, to string) (*models.Order, error)
	CancelOrder(ctx context.Context, orderId int64) (*models.Order, error)
}

// EscrowStore moves order funds between spendable and reserved balances.
type EscrowStore interface {
	Reserve(ctx context.Context, customerId, orderId int64, amount decimal.Decimal) (bool, error)
	Release(ctx context.Context, customerId, orderId int64, amount decimal.Decimal) error
	Complete(ctx context.Context, customerId, executorId, orderId int64, amount decimal.Decimal) error
}

// FundingStore is everything the order funding coordinator needs.
type FundingStore interface {
	OrderStore
	EscrowStore
	EnsureOrderReplenishment(ctx context.Context, userId, orderId int64, shortfall decimal.Decimal) (*models.ReplenishmentOperation, bool, error)
}

// LedgerStore defines the contract that every backend must satisfy.
type LedgerStore interface {
	Ledger
	ReplenishmentStore
	OrderStore
	EscrowStore

	// --- Users ---
	EnsureUser(ctx context.Context, userId int64, name, groupName string) (*models.User, error)
	GetUserById(ctx context.Context, userId int64) (*models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)

	// --- Audit ---
	GetTransactionHistory(ctx context.Context, userId int64, limit, offset int) ([]models.Transaction, error)
	ReconcileUser(ctx context.Context, userId int64) (*models.UserReconciliation, error)
	CheckEscrowInvariant(ctx context.Context) (*models.EscrowReport, error)

	// --- Lifecycle ---
	Close()
}
