/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order submission outcomes
const (
	SubmissionPublished    = "published"
	SubmissionNeedsPayment = "needs_payment"
)

// UserBalance represents a user's spendable and reserved balance
type UserBalance struct {
	UserId   int64           `json:"user_id"`
	Balance  decimal.Decimal `json:"balance"`
	Reserved decimal.Decimal `json:"reserved"`
}

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id          string          `json:"id"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	OrderId     *int64          `json:"order_id,omitempty"`
	OperationId *int64          `json:"operation_id,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// OrderDraft is the customer's input for a new order
type OrderDraft struct {
	CustomerId  int64
	Title       string
	WorkType    string
	Description string
	Price       decimal.Decimal
}

// OrderPlacement is the store-level result of an attempt to fund an order.
// Balance is the customer's spendable balance observed in the same transaction.
type OrderPlacement struct {
	Order   Order
	Funded  bool
	Balance decimal.Decimal
}

// OrderSubmissionResult is returned to the bot after an order is submitted or re-checked
type OrderSubmissionResult struct {
	Outcome       string          `json:"outcome"`
	Order         Order           `json:"order"`
	OperationId   int64           `json:"operation_id,omitempty"`
	Shortfall     decimal.Decimal `json:"shortfall,omitempty"`
	InvoiceAmount decimal.Decimal `json:"invoice_amount,omitempty"`
}

// NeedsPayment reports whether the customer must top up before the order is funded
func (r *OrderSubmissionResult) NeedsPayment() bool {
	return r.Outcome == SubmissionNeedsPayment
}

// ConfirmationResult describes the effect of one payment confirmation
type ConfirmationResult struct {
	OperationId int64           `json:"operation_id"`
	UserId      int64           `json:"user_id"`
	OrderId     *int64          `json:"order_id,omitempty"`
	Credited    decimal.Decimal `json:"credited"`
	Tips        decimal.Decimal `json:"tips"`
	Duplicate   bool            `json:"duplicate"`
}

// TopUpResult represents the result of creating a replenishment operation
type TopUpResult struct {
	Success     bool            `json:"success"`
	OperationId int64           `json:"operation_id,omitempty"`
	UserId      int64           `json:"user_id,omitempty"`
	Amount      decimal.Decimal `json:"amount,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// PaymentResult represents the result of processing a provider confirmation
type PaymentResult struct {
	Success     bool            `json:"success"`
	Duplicate   bool            `json:"duplicate,omitempty"`
	Retryable   bool            `json:"retryable,omitempty"`
	OperationId int64           `json:"operation_id,omitempty"`
	UserId      int64           `json:"user_id,omitempty"`
	OrderId     *int64          `json:"order_id,omitempty"`
	Credited    decimal.Decimal `json:"credited,omitempty"`
	Tips        decimal.Decimal `json:"tips,omitempty"`
	NewBalance  decimal.Decimal `json:"new_balance,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// UserReconciliation compares stored balances with the sums of the audit trail
type UserReconciliation struct {
	UserId           int64           `json:"user_id"`
	Balance          decimal.Decimal `json:"balance"`
	Reserved         decimal.Decimal `json:"reserved"`
	TrailBalance     decimal.Decimal `json:"trail_balance"`
	TrailReserved    decimal.Decimal `json:"trail_reserved"`
	TransactionCount int             `json:"transaction_count"`
}

// Consistent reports whether stored balances match the audit trail
func (r *UserReconciliation) Consistent() bool {
	return r.Balance.Equal(r.TrailBalance) && r.Reserved.Equal(r.TrailReserved)
}

// EscrowReport compares the total reserved balance with the prices of reserved orders
type EscrowReport struct {
	TotalReserved  decimal.Decimal `json:"total_reserved"`
	ReservedOrders decimal.Decimal `json:"reserved_orders"`
	ReservedCount  int             `json:"reserved_count"`
}

// Consistent reports whether the escrow invariant holds
func (r *EscrowReport) Consistent() bool {
	return r.TotalReserved.Equal(r.ReservedOrders)
}
