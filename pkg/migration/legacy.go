// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package migration

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/log"
)

// State is the decoded legacy rewards state
type State struct {
	Transactions []ledger.Transaction
	Payments     []Payment
}

type legacyState struct {
	TransactionHistory struct {
		Transactions []json.RawMessage `json:"transactions"`
	} `json:"transaction_history"`
	AdsRewards struct {
		Payments []json.RawMessage `json:"payments"`
	} `json:"ads_rewards"`
}

type legacyTransaction struct {
	ID                       string           `json:"id"`
	TimestampInSeconds       string           `json:"timestamp_in_seconds"`
	EstimatedRedemptionValue *decimal.Decimal `json:"estimated_redemption_value"`
	Value                    *decimal.Decimal `json:"value"`
	ConfirmationType         string           `json:"confirmation_type"`
	RedeemedAt               string           `json:"redeemed_at"`
}

type legacyPayment struct {
	Balance          decimal.Decimal `json:"balance"`
	Month            string          `json:"month"`
	TransactionCount json.Number     `json:"transaction_count"`
}

// ParseLegacyState decodes the legacy JSON state. Unreadable transactions are
// skipped and unreadable payments contribute nothing; both are logged.
func ParseLegacyState(r io.Reader, logger log.Logger) (State, error) {
	var raw legacyState
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return State{}, fmt.Errorf("failed to decode legacy state: %w", err)
	}

	state := State{
		Transactions: make([]ledger.Transaction, 0, len(raw.TransactionHistory.Transactions)),
		Payments:     make([]Payment, 0, len(raw.AdsRewards.Payments)),
	}

	seen := make(map[ids.ID]struct{}, len(raw.TransactionHistory.Transactions))
	for i, msg := range raw.TransactionHistory.Transactions {
		tx, err := parseLegacyTransaction(i, msg)
		if err != nil {
			logger.Warn("skipping unreadable legacy transaction", log.Int("index", i), log.Error(err))
			continue
		}
		if _, ok := seen[tx.ID]; ok {
			logger.Warn("skipping repeated legacy transaction", log.Int("index", i), log.String("id", tx.ID.String()))
			continue
		}
		seen[tx.ID] = struct{}{}
		state.Transactions = append(state.Transactions, tx)
	}

	for i, msg := range raw.AdsRewards.Payments {
		payment, err := parseLegacyPayment(msg)
		if err != nil {
			logger.Warn("skipping unreadable legacy payment", log.Int("index", i), log.Error(err))
			continue
		}
		state.Payments = append(state.Payments, payment)
	}

	ledger.SortByCreatedAt(state.Transactions)
	return state, nil
}

// parseLegacyTransaction decodes the transaction at index. Entries without an
// id get one derived from their position and timestamp so that re-reading the
// same file yields the same ids.
func parseLegacyTransaction(index int, msg json.RawMessage) (ledger.Transaction, error) {
	var lt legacyTransaction
	if err := json.Unmarshal(msg, &lt); err != nil {
		return ledger.Transaction{}, err
	}

	createdAt, err := parseSeconds(lt.TimestampInSeconds)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("timestamp_in_seconds: %w", err)
	}
	if createdAt.IsZero() {
		return ledger.Transaction{}, fmt.Errorf("missing timestamp_in_seconds")
	}

	confirmationType, err := core.ParseConfirmationType(lt.ConfirmationType)
	if err != nil {
		return ledger.Transaction{}, err
	}

	id := ids.FromName(fmt.Sprintf("legacy-rewards/transaction/%d/%s", index, lt.TimestampInSeconds))
	if lt.ID != "" {
		if id, err = ids.FromString(lt.ID); err != nil {
			return ledger.Transaction{}, err
		}
	}

	tx := ledger.Transaction{
		ID:               id,
		CreatedAt:        createdAt,
		Value:            decimal.Zero,
		ConfirmationType: confirmationType,
	}
	switch {
	case lt.EstimatedRedemptionValue != nil:
		tx.Value = *lt.EstimatedRedemptionValue
	case lt.Value != nil:
		tx.Value = *lt.Value
	}

	redeemedAt, err := parseSeconds(lt.RedeemedAt)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("redeemed_at: %w", err)
	}
	if !redeemedAt.IsZero() {
		tx.RedeemedAt = &redeemedAt
	}

	return tx, tx.Validate()
}

func parseLegacyPayment(msg json.RawMessage) (Payment, error) {
	var lp legacyPayment
	if err := json.Unmarshal(msg, &lp); err != nil {
		return Payment{}, err
	}
	if _, err := time.Parse("2006-01", lp.Month); err != nil {
		return Payment{}, fmt.Errorf("month %q: %w", lp.Month, err)
	}

	payment := Payment{Balance: lp.Balance, Month: lp.Month}
	if lp.TransactionCount != "" {
		n, err := strconv.Atoi(lp.TransactionCount.String())
		if err != nil {
			return Payment{}, fmt.Errorf("transaction_count: %w", err)
		}
		payment.TransactionCount = n
	}
	return payment, nil
}

// parseSeconds reads a decimal seconds-since-epoch string. "" and "0" mean
// unset and yield the zero time.
func parseSeconds(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	secs, err := decimal.NewFromString(s)
	if err != nil {
		return time.Time{}, err
	}
	if secs.IsZero() {
		return time.Time{}, nil
	}

	nanos := secs.Mul(decimal.NewFromInt(int64(time.Second))).IntPart()
	return time.Unix(0, nanos).UTC(), nil
}
