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

package funding

import (
	"context"
	"fmt"

	"campus-wallet-go/internal/metrics"
	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Coordinator decides whether a new order is paid from the balance or needs a top-up.
// A payment confirmation never advances an order on its own: the bot calls
// FundPendingOrder after the customer has paid.
type Coordinator struct {
	store store.FundingStore
	mode  models.FundingMode
}

func NewCoordinator(s store.FundingStore, mode models.FundingMode) *Coordinator {
	if mode == "" {
		mode = models.FundingModeDirect
	}
	return &Coordinator{store: s, mode: mode}
}

func (c *Coordinator) Mode() models.FundingMode {
	return c.mode
}

// SubmitOrder places the order and funds it when the balance allows. Otherwise the
// order waits for payment and the result names the operation to invoice.
func (c *Coordinator) SubmitOrder(ctx context.Context, draft models.OrderDraft) (*models.OrderSubmissionResult, error) {
	if !draft.Price.IsPositive() {
		return nil, fmt.Errorf("%w: order price %s must be positive", store.ErrInvalidAmount, draft.Price)
	}

	zap.L().Info("Submitting order",
		zap.Int64("customer_id", draft.CustomerId),
		zap.String("price", draft.Price.String()),
		zap.String("mode", string(c.mode)))

	placement, err := c.store.PlaceOrder(ctx, draft, c.mode)
	if err != nil {
		metrics.OrderSubmissionsTotal.WithLabelValues(string(c.mode), "error").Inc()
		return nil, fmt.Errorf("unable to place order: %w", err)
	}

	return c.settle(ctx, placement)
}

// FundPendingOrder re-attempts funding for an order awaiting payment. It is safe
// to call repeatedly: a funded order is reported as published again, and a still
// short order reuses its live operation when that covers the shortfall.
func (c *Coordinator) FundPendingOrder(ctx context.Context, orderId int64) (*models.OrderSubmissionResult, error) {
	placement, err := c.store.FundOrder(ctx, orderId, c.mode)
	if err != nil {
		return nil, fmt.Errorf("unable to fund order %d: %w", orderId, err)
	}
	return c.settle(ctx, placement)
}

func (c *Coordinator) settle(ctx context.Context, placement *models.OrderPlacement) (*models.OrderSubmissionResult, error) {
	order := placement.Order

	if placement.Funded {
		if order.Reserved {
			metrics.EscrowOperationsTotal.WithLabelValues("reserve", "ok").Inc()
		}
		metrics.OrderSubmissionsTotal.WithLabelValues(string(c.mode), models.SubmissionPublished).Inc()
		zap.L().Info("Order funded",
			zap.Int64("order_id", order.Id),
			zap.Int64("customer_id", order.CustomerId),
			zap.String("status", order.Status))
		return &models.OrderSubmissionResult{Outcome: models.SubmissionPublished, Order: order}, nil
	}

	shortfall := order.Price.Sub(placement.Balance)
	operationId, invoiceAmount, err := c.replenishmentFor(ctx, order, shortfall)
	if err != nil {
		metrics.OrderSubmissionsTotal.WithLabelValues(string(c.mode), "error").Inc()
		return nil, err
	}

	metrics.OrderSubmissionsTotal.WithLabelValues(string(c.mode), models.SubmissionNeedsPayment).Inc()
	zap.L().Info("Order awaiting payment",
		zap.Int64("order_id", order.Id),
		zap.Int64("customer_id", order.CustomerId),
		zap.String("balance", placement.Balance.String()),
		zap.String("shortfall", shortfall.String()),
		zap.Int64("operation_id", operationId))

	return &models.OrderSubmissionResult{
		Outcome:       models.SubmissionNeedsPayment,
		Order:         order,
		OperationId:   operationId,
		Shortfall:     shortfall,
		InvoiceAmount: invoiceAmount,
	}, nil
}

// replenishmentFor returns the live operation for the order when it still covers
// the shortfall, or creates a new one for exactly the shortfall.
func (c *Coordinator) replenishmentFor(ctx context.Context, order models.Order, shortfall decimal.Decimal) (int64, decimal.Decimal, error) {
	op, created, err := c.store.EnsureOrderReplenishment(ctx, order.CustomerId, order.Id, shortfall)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("unable to prepare replenishment for order %d: %w", order.Id, err)
	}
	if created {
		metrics.ReplenishmentsCreatedTotal.Inc()
	} else {
		zap.L().Debug("Reusing awaiting replenishment",
			zap.Int64("order_id", order.Id),
			zap.Int64("operation_id", op.Id),
			zap.String("amount", op.Amount.String()))
	}
	return op.Id, op.Amount, nil
}

// IsOrderFunded reports whether the order has left awaiting_payment through funding
func (c *Coordinator) IsOrderFunded(ctx context.Context, orderId int64) (bool, error) {
	order, err := c.store.GetOrder(ctx, orderId)
	if err != nil {
		return false, err
	}
	return order.Status != models.OrderStatusAwaitingPayment && order.Status != models.OrderStatusCancelled, nil
}

// ApproveOrder publishes an order after moderation
func (c *Coordinator) ApproveOrder(ctx context.Context, orderId int64) (*models.Order, error) {
	return c.store.UpdateOrderStatus(ctx, orderId, models.OrderStatusPendingModeration, models.OrderStatusPublished)
}

// CancelOrder cancels an order, returning reserved funds to the customer
func (c *Coordinator) CancelOrder(ctx context.Context, orderId int64) (*models.Order, error) {
	before, err := c.store.GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}

	order, err := c.store.CancelOrder(ctx, orderId)
	if before.Reserved {
		metrics.EscrowOperationsTotal.WithLabelValues("release", metrics.Result(err)).Inc()
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CompleteOrder pays the executor from the customer's reserved funds
func (c *Coordinator) CompleteOrder(ctx context.Context, orderId, executorId int64) (*models.Order, error) {
	order, err := c.store.GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	if !order.Reserved {
		return nil, fmt.Errorf("%w: order %d", store.ErrOrderNotReserved, orderId)
	}

	err = c.store.Complete(ctx, order.CustomerId, executorId, order.Id, order.Price)
	metrics.EscrowOperationsTotal.WithLabelValues("complete", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	return c.store.GetOrder(ctx, orderId)
}

// ListCustomerOrders returns a page of the customer's orders
func (c *Coordinator) ListCustomerOrders(ctx context.Context, customerId int64, limit, offset int) ([]models.Order, error) {
	return c.store.ListCustomerOrders(ctx, customerId, limit, offset)
}
