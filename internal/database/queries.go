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

package database

const (
	// User queries
	queryGetUsers = `
		SELECT id, name, group_name, role, balance, reserved_balance, created_at, updated_at
		FROM users
		ORDER BY id`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, group_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, group_name, role, balance, reserved_balance, created_at, updated_at
		FROM users
		WHERE id = ?`

	queryUserExists = `SELECT 1 FROM users WHERE id = ?`

	// Balance queries
	queryGetUserBalance = `
		SELECT balance, reserved_balance
		FROM users
		WHERE id = ?`

	queryCreditBalance = `
		UPDATE users
		SET balance = balance + ?, updated_at = ?
		WHERE id = ?`

	queryDebitIfSufficient = `
		UPDATE users
		SET balance = balance - ?, updated_at = ?
		WHERE id = ? AND balance >= ?`

	queryReserveFunds = `
		UPDATE users
		SET balance = balance - ?, reserved_balance = reserved_balance + ?, updated_at = ?
		WHERE id = ? AND balance >= ?`

	queryReleaseFunds = `
		UPDATE users
		SET balance = balance + ?, reserved_balance = reserved_balance - ?, updated_at = ?
		WHERE id = ? AND reserved_balance >= ?`

	querySettleReserved = `
		UPDATE users
		SET reserved_balance = reserved_balance - ?, updated_at = ?
		WHERE id = ? AND reserved_balance >= ?`

	// Replenishment queries
	operationColumns = `id, user_id, order_id, amount, tips, status, settled_amount, provider_charge_id, review_reason, created_at, paid_at`

	queryInsertOperation = `
		INSERT INTO replenishment_operations (user_id, order_id, amount, status, created_at)
		VALUES (?, ?, ?, 'awaiting_payment', ?)`

	queryGetOperation = `
		SELECT ` + operationColumns + `
		FROM replenishment_operations
		WHERE id = ?`

	queryFindAwaitingOperation = `
		SELECT ` + operationColumns + `
		FROM replenishment_operations
		WHERE order_id = ? AND status = 'awaiting_payment'
		ORDER BY id DESC
		LIMIT 1`

	queryMarkOperationPaid = `
		UPDATE replenishment_operations
		SET status = 'paid', tips = ?, settled_amount = ?, provider_charge_id = ?, review_reason = '', paid_at = ?
		WHERE id = ? AND status = 'awaiting_payment'`

	queryFlagOperation = `
		UPDATE replenishment_operations
		SET settled_amount = ?, provider_charge_id = ?, review_reason = ?
		WHERE id = ? AND status = 'awaiting_payment'`

	queryListFlaggedOperations = `
		SELECT ` + operationColumns + `
		FROM replenishment_operations
		WHERE status = 'awaiting_payment' AND review_reason != ''
		ORDER BY id
		LIMIT ?`

	// Order queries
	orderColumns = `id, customer_id, executor_id, title, work_type, description, price, status, reserved, created_at, updated_at`

	queryInsertOrder = `
		INSERT INTO orders (customer_id, title, work_type, description, price, status, reserved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`

	queryGetOrder = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = ?`

	queryListCustomerOrders = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	queryUpdateOrderStatus = `
		UPDATE orders
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	queryMarkOrderReserved = `
		UPDATE orders
		SET reserved = 1, updated_at = ?
		WHERE id = ? AND customer_id = ? AND price = ? AND reserved = 0
		  AND status IN ('awaiting_payment', 'pending_moderation', 'published')`

	queryMarkOrderReleased = `
		UPDATE orders
		SET reserved = 0, updated_at = ?
		WHERE id = ? AND customer_id = ? AND price = ? AND reserved = 1`

	queryMarkOrderCompleted = `
		UPDATE orders
		SET status = 'completed', reserved = 0, executor_id = ?, updated_at = ?
		WHERE id = ? AND customer_id = ? AND price = ? AND reserved = 1`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO transactions (id, user_id, kind, amount, order_id, related_user_id, operation_id, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, user_id, kind, amount, order_id, related_user_id, operation_id, reference, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	// Escrow payments carry the executor in related_user_id and draw on the
	// reserved balance, so they are counted there instead of in the spendable trail.
	queryTrailTotals = `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN kind = 'payment' AND related_user_id IS NOT NULL THEN 0 ELSE amount END), 0),
			COALESCE(SUM(CASE
				WHEN kind IN ('reserve', 'release') THEN -amount
				WHEN kind = 'payment' AND related_user_id IS NOT NULL THEN amount
				ELSE 0 END), 0)
		FROM transactions
		WHERE user_id = ?`

	queryEscrowTotals = `
		SELECT
			(SELECT COALESCE(SUM(reserved_balance), 0) FROM users),
			(SELECT COALESCE(SUM(price), 0) FROM orders WHERE reserved = 1),
			(SELECT COUNT(*) FROM orders WHERE reserved = 1)`
)
