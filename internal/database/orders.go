package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"go.uber.org/zap"
)

// manualTransitions lists the status changes allowed outside the funding and escrow paths.
var manualTransitions = map[string][]string{
	models.OrderStatusPendingModeration: {models.OrderStatusPublished},
	models.OrderStatusPublished:         {models.OrderStatusCompleted},
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var price int64
	var executorId sql.NullInt64

	err := row.Scan(&order.Id, &order.CustomerId, &executorId, &order.Title, &order.WorkType, &order.Description,
		&price, &order.Status, &order.Reserved, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	order.ExecutorId = idPtr(executorId)
	order.Price = fromMinor(price)
	return &order, nil
}

func getOrder(ctx context.Context, q querier, orderId int64) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, queryGetOrder, orderId))
	if err != nil {
		return nil, wrapNotFound(err, store.ErrOrderNotFound, orderId, "get order")
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderId int64) (*models.Order, error) {
	return getOrder(ctx, s.db, orderId)
}

// ListCustomerOrders returns a customer's orders, newest first
func (s *Service) ListCustomerOrders(ctx context.Context, customerId int64, limit, offset int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, queryListCustomerOrders, customerId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to list orders", zap.Int64("customer_id", customerId), zap.Error(err))
		return nil, storeFailure("list customer orders", err)
	}
	defer closeRows(rows)

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, storeFailure("scan order", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure("iterate order rows", err)
	}

	return orders, nil
}

// PlaceOrder inserts an order and tries to fund it in the same transaction.
// A funded order moves to moderation; an unfunded one stays awaiting payment and
// the placement carries the balance observed in that transaction.
func (s *Service) PlaceOrder(ctx context.Context, draft models.OrderDraft, mode models.FundingMode) (*models.OrderPlacement, error) {
	priceMinor, err := positiveMinor(draft.Price)
	if err != nil {
		return nil, err
	}
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	var placement *models.OrderPlacement
	now := s.now()

	err = s.withTx(ctx, "place order", func(tx *sql.Tx) error {
		if _, _, err := readBalance(ctx, tx, draft.CustomerId); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, queryInsertOrder, draft.CustomerId, draft.Title, draft.WorkType, draft.Description,
			priceMinor, models.OrderStatusAwaitingPayment, now, now)
		if err != nil {
			return storeFailure("insert order", err)
		}
		orderId, err := result.LastInsertId()
		if err != nil {
			return storeFailure("order id", err)
		}

		funded, err := fundInTx(ctx, tx, draft.CustomerId, orderId, priceMinor, mode, now)
		if err != nil {
			return err
		}

		placement, err = loadPlacement(ctx, tx, orderId, funded)
		return err
	})
	if err != nil {
		zap.L().Error("Failed to place order", zap.Int64("customer_id", draft.CustomerId), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Order placed",
		zap.Int64("order_id", placement.Order.Id),
		zap.Int64("customer_id", draft.CustomerId),
		zap.String("price", draft.Price.String()),
		zap.String("mode", string(mode)),
		zap.Bool("funded", placement.Funded),
		zap.String("balance", placement.Balance.String()))

	return placement, nil
}

// FundOrder retries funding for an order awaiting payment. Orders that already
// left awaiting_payment are reported as funded without any change.
func (s *Service) FundOrder(ctx context.Context, orderId int64, mode models.FundingMode) (*models.OrderPlacement, error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	var placement *models.OrderPlacement
	now := s.now()

	err := s.withTx(ctx, "fund order", func(tx *sql.Tx) error {
		order, err := getOrder(ctx, tx, orderId)
		if err != nil {
			return err
		}

		switch order.Status {
		case models.OrderStatusCancelled:
			return fmt.Errorf("%w: order %d is cancelled", store.ErrInvalidOrderState, orderId)
		case models.OrderStatusAwaitingPayment:
		default:
			placement, err = loadPlacement(ctx, tx, orderId, true)
			return err
		}

		// Funds were reserved separately; only the status is behind.
		if order.Reserved {
			if err := moveToModeration(ctx, tx, orderId, now); err != nil {
				return err
			}
			placement, err = loadPlacement(ctx, tx, orderId, true)
			return err
		}

		priceMinor, err := toMinor(order.Price)
		if err != nil {
			return err
		}

		funded, err := fundInTx(ctx, tx, order.CustomerId, orderId, priceMinor, mode, now)
		if err != nil {
			return err
		}

		placement, err = loadPlacement(ctx, tx, orderId, funded)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Order funding checked",
		zap.Int64("order_id", orderId),
		zap.String("status", placement.Order.Status),
		zap.Bool("funded", placement.Funded))

	return placement, nil
}

// fundInTx debits or reserves the order price and, when that succeeds, moves the
// order to moderation. Nothing is written when the balance does not cover the price.
func fundInTx(ctx context.Context, tx *sql.Tx, customerId, orderId, priceMinor int64, mode models.FundingMode, now time.Time) (bool, error) {
	var funded bool
	var err error

	switch mode {
	case models.FundingModeEscrow:
		funded, err = reserveInTx(ctx, tx, customerId, orderId, priceMinor, now)
		if err != nil || !funded {
			return false, err
		}
	default:
		funded, err = debitIfSufficient(ctx, tx, customerId, priceMinor, now)
		if err != nil || !funded {
			return false, err
		}
		_, err = recordTransaction(ctx, tx, transactionParams{
			UserId:    customerId,
			Kind:      models.TransactionKindPayment,
			Amount:    -priceMinor,
			OrderId:   &orderId,
			Reference: orderRef(orderId),
		}, now)
		if err != nil {
			return false, err
		}
	}

	if err := moveToModeration(ctx, tx, orderId, now); err != nil {
		return false, err
	}
	return true, nil
}

func moveToModeration(ctx context.Context, tx *sql.Tx, orderId int64, now time.Time) error {
	result, err := tx.ExecContext(ctx, queryUpdateOrderStatus, models.OrderStatusPendingModeration, now, orderId, models.OrderStatusAwaitingPayment)
	if err != nil {
		return storeFailure("move order to moderation", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeFailure("move order to moderation rows affected", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: order %d is no longer awaiting payment", store.ErrInvalidOrderState, orderId)
	}
	return nil
}

func loadPlacement(ctx context.Context, q querier, orderId int64, funded bool) (*models.OrderPlacement, error) {
	order, err := getOrder(ctx, q, orderId)
	if err != nil {
		return nil, err
	}
	balance, _, err := readBalance(ctx, q, order.CustomerId)
	if err != nil {
		return nil, err
	}
	return &models.OrderPlacement{Order: *order, Funded: funded, Balance: balance}, nil
}

// UpdateOrderStatus applies a manual status change if the order is still in from
func (s *Service) UpdateOrderStatus(ctx context.Context, orderId int64, from, to string) (*models.Order, error) {
	if !transitionAllowed(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s is not allowed", store.ErrInvalidOrderState, from, to)
	}

	var order *models.Order
	err := s.withTx(ctx, "update order status", func(tx *sql.Tx) error {
		current, err := getOrder(ctx, tx, orderId)
		if err != nil {
			return err
		}
		if current.Status != from {
			return fmt.Errorf("%w: order %d is %s, expected %s", store.ErrInvalidOrderState, orderId, current.Status, from)
		}
		if to == models.OrderStatusCompleted && current.Reserved {
			return fmt.Errorf("%w: order %d holds reserved funds and must be settled", store.ErrInvalidOrderState, orderId)
		}

		if _, err := tx.ExecContext(ctx, queryUpdateOrderStatus, to, s.now(), orderId, from); err != nil {
			return storeFailure("update order status", err)
		}

		order, err = getOrder(ctx, tx, orderId)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Order status updated", zap.Int64("order_id", orderId), zap.String("from", from), zap.String("to", to))
	return order, nil
}

// CancelOrder cancels an unfunded order, or a reserved one after releasing its funds.
// Orders paid by direct debit cannot be cancelled here.
func (s *Service) CancelOrder(ctx context.Context, orderId int64) (*models.Order, error) {
	var order *models.Order
	now := s.now()

	err := s.withTx(ctx, "cancel order", func(tx *sql.Tx) error {
		current, err := getOrder(ctx, tx, orderId)
		if err != nil {
			return err
		}

		cancellable := current.Status == models.OrderStatusAwaitingPayment ||
			current.Status == models.OrderStatusPendingModeration ||
			current.Status == models.OrderStatusPublished

		switch {
		case cancellable && current.Reserved:
			priceMinor, err := toMinor(current.Price)
			if err != nil {
				return err
			}
			if err := releaseInTx(ctx, tx, current.CustomerId, orderId, priceMinor, now); err != nil {
				return err
			}
		case current.Status == models.OrderStatusAwaitingPayment:
		default:
			return fmt.Errorf("%w: order %d is %s and cannot be cancelled", store.ErrInvalidOrderState, orderId, current.Status)
		}

		if _, err := tx.ExecContext(ctx, queryUpdateOrderStatus, models.OrderStatusCancelled, now, orderId, current.Status); err != nil {
			return storeFailure("cancel order", err)
		}

		order, err = getOrder(ctx, tx, orderId)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Order cancelled", zap.Int64("order_id", orderId), zap.Int64("customer_id", order.CustomerId))
	return order, nil
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range manualTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func validateMode(mode models.FundingMode) error {
	switch mode {
	case models.FundingModeDirect, models.FundingModeEscrow:
		return nil
	default:
		return fmt.Errorf("unknown funding mode %q", mode)
	}
}
