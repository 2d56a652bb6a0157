package common

import (
	"context"
	"fmt"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"go.uber.org/zap"
)

// InitializeUsers retrieves users based on an optional id filter.
// If userIdFilter is positive, returns the single user with that Telegram id.
// Otherwise returns all users.
func InitializeUsers(ctx context.Context, dbService store.LedgerStore, userIdFilter int64, logger *zap.Logger) ([]models.User, error) {
	var users []models.User

	if userIdFilter > 0 {
		logger.Info("Looking up user by id", zap.Int64("user_id", userIdFilter))
		user, err := dbService.GetUserById(ctx, userIdFilter)
		if err != nil {
			return nil, fmt.Errorf("user lookup failed: %w", err)
		}
		users = append(users, *user)
	} else {
		allUsers, err := dbService.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		users = allUsers
	}

	logger.Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}
