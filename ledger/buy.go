// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/blinklabs-io/fonodao/extcall"
	"github.com/shopspring/decimal"
)

type buyArgs struct {
	RootID string `json:"root_id"`
}

// Buy starts a purchase of a priced asset. The payment must equal the price
// exactly. The payment stays escrowed until the purchase call completes.
func (l *Ledger) Buy(
	txn *database.Txn,
	buyer string,
	contract string,
	rootID string,
	payment decimal.Decimal,
	now time.Time,
) (extcall.Call, error) {
	if !ValidAccountID(buyer) {
		return extcall.Call{}, fmt.Errorf("%w: %q", ErrInvalidAccountID, buyer)
	}
	handle, err := l.Handle(txn, contract, rootID)
	if err != nil {
		return extcall.Call{}, err
	}
	record, err := l.store().GetIncomeRecord(handle, txn.Metadata())
	if err != nil {
		return extcall.Call{}, err
	}
	if !record.Price.Valid {
		return extcall.Call{}, ErrPriceNotSet
	}
	price := record.Price.Decimal
	if !payment.Equal(price) {
		return extcall.Call{}, fmt.Errorf(
			"%w: attached %s, price %s",
			ErrWrongPayment,
			payment.String(),
			price.String(),
		)
	}
	args, err := json.Marshal(buyArgs{RootID: rootID})
	if err != nil {
		return extcall.Call{}, err
	}
	handleRef := handle
	call, err := l.config.Orchestrator.Schedule(
		txn,
		extcall.Call{
			Purpose:  extcall.PurposeBuy,
			Receiver: contract,
			Method:   extcall.BuyMethod,
			Args:     args,
			Deposit:  price.Add(extcall.BuyStorageSurcharge),
			Gas:      extcall.BuyGas,
			Handle:   &handleRef,
			Payer:    buyer,
			Owner:    record.Owner,
			Amount:   price,
		},
		now,
	)
	if err != nil {
		return extcall.Call{}, err
	}
	l.metrics.purchasesStarted.Inc()
	l.logger().Info(
		"purchase started",
		"component", "ledger",
		"handle", handle,
		"buyer", buyer,
		"price", price.String(),
		"call_id", call.ID,
	)
	return call, nil
}

// BuyOutcome describes how a purchase completion was applied
type BuyOutcome struct {
	Handle   uint64
	Buyer    string
	Amount   decimal.Decimal
	Refunded bool
	Refund   *extcall.Call
}

// CompleteBuy applies the result of a purchase call. On success the price
// is credited to the asset's income. On failure the payment is refunded to
// the buyer.
func (l *Ledger) CompleteBuy(
	txn *database.Txn,
	call *models.PendingCall,
	success bool,
	now time.Time,
) (*BuyOutcome, error) {
	if call.Handle == nil || call.Payer == "" {
		return nil, fmt.Errorf("%w: buy call %s", ErrMissingCallContext, call.ID)
	}
	ret := &BuyOutcome{
		Handle: *call.Handle,
		Buyer:  call.Payer,
		Amount: call.Amount,
	}
	if !success {
		ret.Refunded = true
		l.metrics.purchasesRefunded.Inc()
		l.logger().Warn(
			"purchase failed, refunding buyer",
			"component", "ledger",
			"handle", *call.Handle,
			"buyer", call.Payer,
			"amount", call.Amount.String(),
		)
		if call.Amount.IsZero() {
			return ret, nil
		}
		refund, err := l.SendTransfer(
			txn,
			TransferRequest{
				Kind:        models.TransferKindRefund,
				Beneficiary: call.Payer,
				Amount:      call.Amount,
				Handle:      call.Handle,
			},
			now,
		)
		if err != nil {
			return nil, err
		}
		ret.Refund = &refund
		return ret, nil
	}
	record, err := l.store().GetIncomeRecord(*call.Handle, txn.Metadata())
	if err != nil {
		return nil, err
	}
	record.TotalIncome = record.TotalIncome.Add(call.Amount)
	record.CurrentBalance = record.CurrentBalance.Add(call.Amount)
	if err := l.store().SetIncomeRecord(record, txn.Metadata()); err != nil {
		return nil, err
	}
	l.metrics.purchasesCommitted.Inc()
	l.logger().Info(
		"purchase committed",
		"component", "ledger",
		"handle", *call.Handle,
		"buyer", call.Payer,
		"amount", call.Amount.String(),
	)
	return ret, nil
}
