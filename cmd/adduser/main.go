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

package main

import (
	"context"
	"flag"
	"fmt"
	"regexp"
	"strings"

	"campus-wallet-go/internal/common"
	"campus-wallet-go/internal/config"

	"go.uber.org/zap"
)

var groupRegex = regexp.MustCompile(`^[\p{L}0-9]{1,8}(-[\p{L}0-9]{1,8}){0,2}$`)

func validateUserId(userId int64) error {
	if userId <= 0 {
		return fmt.Errorf("telegram user id must be positive, got %d", userId)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len([]rune(name)) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func validateGroup(group string) error {
	if group == "" {
		return nil
	}
	if !groupRegex.MatchString(group) {
		return fmt.Errorf("invalid study group format: %s", group)
	}
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	idFlag := flag.Int64("id", 0, "User's Telegram id (required)")
	nameFlag := flag.String("name", "", "User's full name (required)")
	groupFlag := flag.String("group", "", "User's study group (optional)")
	flag.Parse()

	name := strings.TrimSpace(*nameFlag)
	group := strings.ToUpper(strings.TrimSpace(*groupFlag))

	if err := validateUserId(*idFlag); err != nil {
		zap.L().Fatal("Invalid user id", zap.Error(err))
	}
	if err := validateName(name); err != nil {
		zap.L().Fatal("Invalid name", zap.Error(err))
	}
	if err := validateGroup(group); err != nil {
		zap.L().Fatal("Invalid group", zap.Error(err))
	}

	zap.L().Info("Starting user registration",
		zap.Int64("id", *idFlag),
		zap.String("name", name),
		zap.String("group", group))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	// Registration is idempotent: an existing user is returned unchanged
	user, err := dbService.EnsureUser(ctx, *idFlag, name, group)
	if err != nil {
		zap.L().Fatal("Failed to register user", zap.Error(err))
	}

	fmt.Println()
	common.PrintHeader("USER REGISTERED", common.DefaultWidth)
	fmt.Printf("ID:       %d\n", user.Id)
	fmt.Printf("Name:     %s\n", user.Name)
	fmt.Printf("Group:    %s\n", user.GroupName)
	fmt.Printf("Role:     %s\n", user.Role)
	fmt.Printf("Balance:  %s\n", common.FormatAmount(user.Balance, ""))
	fmt.Printf("Created:  %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	if user.Name != name {
		zap.L().Warn("User already existed, stored profile kept",
			zap.Int64("id", user.Id),
			zap.String("stored_name", user.Name))
	}

	zap.L().Info("User registered successfully", zap.Int64("id", user.Id))
}
