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

import "github.com/shopspring/decimal"

// MaxMinorUnitDigits is the number of fractional digits the ledger stores.
// Provider currencies with finer units cannot be settled exactly.
const MaxMinorUnitDigits int32 = 2

// PaymentsConfig describes the payment provider settings loaded from payments.yaml
type PaymentsConfig struct {
	Currency        string            `yaml:"currency"`
	MinorUnitDigits int32             `yaml:"minor_unit_digits"`
	MinTopUp        decimal.Decimal   `yaml:"min_top_up"`
	MaxTopUp        decimal.Decimal   `yaml:"max_top_up"`
	MaxTip          decimal.Decimal   `yaml:"max_tip"`
	SuggestedTips   []decimal.Decimal `yaml:"suggested_tips"`
	Invoice         InvoiceConfig     `yaml:"invoice"`
}

// InvoiceConfig holds the texts shown on top-up invoices
type InvoiceConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Label       string `yaml:"label"`
	StartParam  string `yaml:"start_parameter"`
}

// SuccessfulPayment is a provider receipt extracted from a Telegram update
type SuccessfulPayment struct {
	UserId                  int64
	ChatId                  int64
	Currency                string
	TotalAmount             int
	InvoicePayload          string
	TelegramPaymentChargeId string
	ProviderPaymentChargeId string
}

// PreCheckout is a provider pre-checkout query extracted from a Telegram update
type PreCheckout struct {
	QueryId        string
	UserId         int64
	Currency       string
	TotalAmount    int
	InvoicePayload string
}
