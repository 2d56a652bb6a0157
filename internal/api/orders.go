package api

import (
	"context"
	"fmt"

	"campus-wallet-go/internal/models"

	"go.uber.org/zap"
)

// SubmitOrder places a customer's order and funds it from the balance when possible
func (s *LedgerService) SubmitOrder(ctx context.Context, draft models.OrderDraft) (*models.OrderSubmissionResult, error) {
	if draft.CustomerId <= 0 {
		return nil, fmt.Errorf("customer_id is required")
	}

	result, err := s.orders.SubmitOrder(ctx, draft)
	if err != nil {
		zap.L().Error("Order submission failed", zap.Int64("customer_id", draft.CustomerId), zap.Error(err))
		return nil, err
	}

	s.cache.invalidate(draft.CustomerId)
	return result, nil
}

// FundPendingOrder is called after the customer paid the invoice for an order
func (s *LedgerService) FundPendingOrder(ctx context.Context, orderId int64) (*models.OrderSubmissionResult, error) {
	result, err := s.orders.FundPendingOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}

	s.cache.invalidate(result.Order.CustomerId)
	return result, nil
}

// IsOrderFunded reports whether an order has been paid for
func (s *LedgerService) IsOrderFunded(ctx context.Context, orderId int64) (bool, error) {
	return s.orders.IsOrderFunded(ctx, orderId)
}

// ApproveOrder publishes a moderated order
func (s *LedgerService) ApproveOrder(ctx context.Context, orderId int64) (*models.Order, error) {
	return s.orders.ApproveOrder(ctx, orderId)
}

// CancelOrder cancels an order and returns reserved funds
func (s *LedgerService) CancelOrder(ctx context.Context, orderId int64) (*models.Order, error) {
	order, err := s.orders.CancelOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}

	s.cache.invalidate(order.CustomerId)
	return order, nil
}

// CompleteOrder pays the executor for a reserved order
func (s *LedgerService) CompleteOrder(ctx context.Context, orderId, executorId int64) (*models.Order, error) {
	order, err := s.orders.CompleteOrder(ctx, orderId, executorId)
	if err != nil {
		return nil, err
	}

	s.cache.invalidate(order.CustomerId, executorId)
	return order, nil
}

// ListCustomerOrders returns a page of a customer's orders
func (s *LedgerService) ListCustomerOrders(ctx context.Context, customerId int64, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.orders.ListCustomerOrders(ctx, customerId, limit, offset)
}
