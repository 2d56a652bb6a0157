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

package telegram

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"campus-wallet-go/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

type Service struct {
	bot           *tgbotapi.BotAPI
	payments      models.PaymentsConfig
	providerToken string
}

func NewService(cfg models.TelegramConfig, payments models.PaymentsConfig) (*Service, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, &httpClient)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to telegram bot api: %w", err)
	}
	bot.Debug = cfg.Debug

	zap.L().Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &Service{
		bot:           bot,
		payments:      payments,
		providerToken: cfg.PaymentToken,
	}, nil
}

func createCustomHttpClient() (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 90 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	// Long polling holds a request open for the poll timeout, so the client
	// timeout must stay above it.
	return http.Client{
		Transport: tr,
		Timeout:   120 * time.Second,
	}, nil
}

// Bot returns the underlying Bot API client
func (s *Service) Bot() *tgbotapi.BotAPI {
	return s.bot
}

// SendTopUpInvoice sends an invoice whose payload is the replenishment operation id
func (s *Service) SendTopUpInvoice(chatId, operationId int64, amount decimal.Decimal) error {
	invoice, err := BuildInvoice(chatId, operationId, amount, s.payments, s.providerToken)
	if err != nil {
		return err
	}

	if _, err := s.bot.Send(invoice); err != nil {
		return fmt.Errorf("unable to send invoice for operation %d: %w", operationId, err)
	}

	zap.L().Info("Top-up invoice sent",
		zap.Int64("chat_id", chatId),
		zap.Int64("operation_id", operationId),
		zap.String("amount", amount.String()),
		zap.String("currency", s.payments.Currency))
	return nil
}

// BuildInvoice prepares a Telegram invoice for a replenishment operation
func BuildInvoice(chatId, operationId int64, amount decimal.Decimal, payments models.PaymentsConfig, providerToken string) (tgbotapi.InvoiceConfig, error) {
	price, err := ToMinorUnits(amount, payments.MinorUnitDigits)
	if err != nil {
		return tgbotapi.InvoiceConfig{}, err
	}

	invoice := tgbotapi.NewInvoice(
		chatId,
		payments.Invoice.Title,
		payments.Invoice.Description,
		FormatPayload(operationId),
		providerToken,
		payments.Invoice.StartParam,
		payments.Currency,
		[]tgbotapi.LabeledPrice{{Label: payments.Invoice.Label, Amount: price}},
	)

	invoice.SuggestedTipAmounts = []int{}
	if payments.MaxTip.IsPositive() {
		maxTip, err := ToMinorUnits(payments.MaxTip, payments.MinorUnitDigits)
		if err != nil {
			return tgbotapi.InvoiceConfig{}, err
		}
		invoice.MaxTipAmount = maxTip

		for _, tip := range payments.SuggestedTips {
			minor, err := ToMinorUnits(tip, payments.MinorUnitDigits)
			if err != nil {
				return tgbotapi.InvoiceConfig{}, err
			}
			if minor > 0 && minor <= maxTip {
				invoice.SuggestedTipAmounts = append(invoice.SuggestedTipAmounts, minor)
			}
		}
	}

	return invoice, nil
}

// FormatPayload encodes an operation id as an invoice payload
func FormatPayload(operationId int64) string {
	return strconv.FormatInt(operationId, 10)
}

// ParsePayload decodes an invoice payload back into an operation id
func ParsePayload(payload string) (int64, error) {
	operationId, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || operationId <= 0 {
		return 0, fmt.Errorf("invalid invoice payload %q", payload)
	}
	return operationId, nil
}

// ToMinorUnits converts an amount to the provider's integer minor units
func ToMinorUnits(amount decimal.Decimal, digits int32) (int, error) {
	minor := amount.Shift(digits)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d fractional digits", amount, digits)
	}
	if !minor.BigInt().IsInt64() || minor.IntPart() > int64(^uint32(0)>>1) {
		return 0, fmt.Errorf("amount %s is out of range", amount)
	}
	return int(minor.IntPart()), nil
}

// FromMinorUnits converts provider minor units to an amount
func FromMinorUnits(total int, digits int32) decimal.Decimal {
	return decimal.New(int64(total), -digits)
}
