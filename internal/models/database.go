package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundingMode selects how an order is paid for at submission time.
type FundingMode string

const (
	FundingModeDirect FundingMode = "direct"
	FundingModeEscrow FundingMode = "escrow"
)

// Replenishment operation statuses
const (
	OperationStatusAwaitingPayment = "awaiting_payment"
	OperationStatusPaid            = "paid"
)

// Order statuses
const (
	OrderStatusAwaitingPayment   = "awaiting_payment"
	OrderStatusPendingModeration = "pending_moderation"
	OrderStatusPublished         = "published"
	OrderStatusCompleted         = "completed"
	OrderStatusCancelled         = "cancelled"
)

// Transaction kinds recorded in the audit trail
const (
	TransactionKindReplenishment = "replenishment"
	TransactionKindPayment       = "payment"
	TransactionKindReserve       = "reserve"
	TransactionKindRelease       = "release"
	TransactionKindIncome        = "income"
)

// User represents a bot user and their wallet
type User struct {
	Id              int64           `db:"id"`
	Name            string          `db:"name"`
	GroupName       string          `db:"group_name"`
	Role            string          `db:"role"`
	Balance         decimal.Decimal `db:"balance"`
	ReservedBalance decimal.Decimal `db:"reserved_balance"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// ReplenishmentOperation is a top-up request awaiting confirmation from the payment provider.
// Its id is the invoice payload and the idempotency key for confirmations.
type ReplenishmentOperation struct {
	Id               int64               `db:"id"`
	UserId           int64               `db:"user_id"`
	OrderId          *int64              `db:"order_id"`
	Amount           decimal.Decimal     `db:"amount"`
	Tips             decimal.Decimal     `db:"tips"`
	Status           string              `db:"status"`
	SettledAmount    decimal.NullDecimal `db:"settled_amount"`
	ProviderChargeId string              `db:"provider_charge_id"`
	ReviewReason     string              `db:"review_reason"`
	CreatedAt        time.Time           `db:"created_at"`
	PaidAt           *time.Time          `db:"paid_at"`
}

// Order is a customer's request for work, funded from their balance
type Order struct {
	Id          int64           `db:"id"`
	CustomerId  int64           `db:"customer_id"`
	ExecutorId  *int64          `db:"executor_id"`
	Title       string          `db:"title"`
	WorkType    string          `db:"work_type"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	Status      string          `db:"status"`
	Reserved    bool            `db:"reserved"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// Transaction is an append-only audit row. Amount is signed by its effect on the
// spendable balance of UserId.
type Transaction struct {
	Id            string          `db:"id"`
	UserId        int64           `db:"user_id"`
	Kind          string          `db:"kind"`
	Amount        decimal.Decimal `db:"amount"`
	OrderId       *int64          `db:"order_id"`
	RelatedUserId *int64          `db:"related_user_id"`
	OperationId   *int64          `db:"operation_id"`
	Reference     string          `db:"reference"`
	CreatedAt     time.Time       `db:"created_at"`
}
