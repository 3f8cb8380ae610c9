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

package extcall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/blinklabs-io/fonodao/database"
	"github.com/blinklabs-io/fonodao/database/models"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1000
)

// Caller delivers a call to the external system and returns its outcome
type Caller interface {
	Call(context.Context, Call) (Result, error)
}

// CompletionFunc receives the outcome of a dispatched call
type CompletionFunc func(ctx context.Context, callID string, result Result) error

type OrchestratorConfig struct {
	Logger       *slog.Logger
	DB           *database.Database
	PromRegistry prometheus.Registerer
	// Caller delivers dispatched calls. When nil, calls stay pending until
	// they are completed through the API.
	Caller    Caller
	Workers   int
	QueueSize int
}

// Orchestrator keeps a durable record of every outbound call, delivers calls
// through a worker pool once the scheduling transaction has committed, and
// lets each call complete exactly once
type Orchestrator struct {
	config       OrchestratorConfig
	metrics      orchestratorMetrics
	completeFunc CompletionFunc
	queue        chan Call
	wg           sync.WaitGroup
	mu           sync.Mutex
	cancel       context.CancelFunc
	running      bool
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	o := &Orchestrator{
		config: cfg,
	}
	o.metrics.init(cfg.PromRegistry)
	return o
}

// SetCompletionFunc sets the function that receives call outcomes
func (o *Orchestrator) SetCompletionFunc(fn CompletionFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completeFunc = fn
}

// Start launches the worker pool and re-dispatches calls left pending by a
// previous run
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}
	if o.config.Caller == nil {
		o.mu.Unlock()
		o.config.Logger.Info(
			"no external caller configured, calls will wait for manual completion",
			"component", "extcall",
		)
		return nil
	}
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.queue = make(chan Call, o.config.QueueSize)
	o.running = true
	for range o.config.Workers {
		o.wg.Add(1)
		go o.worker(workerCtx, o.queue)
	}
	o.mu.Unlock()
	// Resume delivery of calls that never completed
	txn := o.config.DB.Transaction(false)
	pending, err := o.Pending(txn)
	txn.Release()
	if err != nil {
		return fmt.Errorf("load pending calls: %w", err)
	}
	o.metrics.pending.Set(float64(len(pending)))
	calls := make([]Call, 0, len(pending))
	for _, tmpCall := range pending {
		calls = append(calls, callFromModel(tmpCall))
	}
	o.Dispatch(calls...)
	return nil
}

// Stop shuts down the worker pool. Undelivered calls remain pending.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.cancel()
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) worker(ctx context.Context, queue <-chan Call) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case call := <-queue:
			o.deliver(ctx, call)
		}
	}
}

func (o *Orchestrator) deliver(ctx context.Context, call Call) {
	result, err := o.config.Caller.Call(ctx, call)
	if err != nil {
		// The external system may or may not have seen the call, so it
		// stays pending until it reports a completion
		o.metrics.dispatchErrors.Inc()
		o.config.Logger.Error(
			"failed to deliver external call",
			"component", "extcall",
			"call_id", call.ID,
			"purpose", call.Purpose,
			"error", err,
		)
		return
	}
	o.mu.Lock()
	completeFunc := o.completeFunc
	o.mu.Unlock()
	if completeFunc == nil {
		o.config.Logger.Warn(
			"no completion handler, leaving call pending",
			"component", "extcall",
			"call_id", call.ID,
		)
		return
	}
	if err := completeFunc(ctx, call.ID, result); err != nil {
		o.config.Logger.Error(
			"failed to complete external call",
			"component", "extcall",
			"call_id", call.ID,
			"purpose", call.Purpose,
			"error", err,
		)
	}
}

// Schedule records call as pending inside txn. Delivery happens only when
// the caller passes the returned call to Dispatch after txn commits.
func (o *Orchestrator) Schedule(
	txn *database.Txn,
	call Call,
	now time.Time,
) (Call, error) {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	tmpCall := callToModel(call, now)
	if err := o.config.DB.Metadata().AddPendingCall(&tmpCall, txn.Metadata()); err != nil {
		return Call{}, fmt.Errorf("record external call: %w", err)
	}
	txn.OnCommit(func() {
		o.metrics.scheduled.WithLabelValues(call.Purpose).Inc()
		o.metrics.pending.Inc()
	})
	o.config.Logger.Debug(
		"scheduled external call",
		"component", "extcall",
		"call_id", call.ID,
		"purpose", call.Purpose,
		"receiver", call.Receiver,
		"method", call.Method,
	)
	return call, nil
}

// Dispatch queues calls for delivery. It never blocks: calls that don't fit
// in the queue stay pending and are picked up again on the next Start.
func (o *Orchestrator) Dispatch(calls ...Call) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	for _, call := range calls {
		select {
		case o.queue <- call:
		default:
			o.metrics.dispatchErrors.Inc()
			o.config.Logger.Warn(
				"external call queue full, leaving call pending",
				"component", "extcall",
				"call_id", call.ID,
			)
		}
	}
}

// Complete marks a pending call as completed inside txn and returns its
// record. A call can only be completed once.
func (o *Orchestrator) Complete(
	txn *database.Txn,
	id string,
	success bool,
	now time.Time,
) (*models.PendingCall, error) {
	metadata := o.config.DB.Metadata()
	ok, err := metadata.CompletePendingCall(id, success, now, txn.Metadata())
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := metadata.GetPendingCall(id, txn.Metadata()); err != nil {
			if errors.Is(err, models.ErrPendingCallNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrCallNotFound, id)
			}
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrCallAlreadyCompleted, id)
	}
	tmpCall, err := metadata.GetPendingCall(id, txn.Metadata())
	if err != nil {
		return nil, err
	}
	txn.OnCommit(func() {
		o.metrics.completed.WithLabelValues(
			tmpCall.Purpose,
			strconv.FormatBool(success),
		).Inc()
		o.metrics.pending.Dec()
	})
	return tmpCall, nil
}

// Pending returns the calls still awaiting completion
func (o *Orchestrator) Pending(txn *database.Txn) ([]models.PendingCall, error) {
	return o.config.DB.Metadata().GetPendingCalls(txn.Metadata())
}

func callToModel(call Call, now time.Time) models.PendingCall {
	return models.PendingCall{
		ID:         call.ID,
		Purpose:    call.Purpose,
		Receiver:   call.Receiver,
		Method:     call.Method,
		Args:       call.Args,
		Deposit:    call.Deposit,
		Gas:        call.Gas,
		ProposalId: call.ProposalID,
		DraftId:    call.DraftID,
		Handle:     call.Handle,
		TransferId: call.TransferID,
		Payer:      call.Payer,
		Owner:      call.Owner,
		Amount:     call.Amount,
		State:      models.CallStatePending,
		CreatedAt:  now,
	}
}

func callFromModel(tmpCall models.PendingCall) Call {
	return Call{
		ID:         tmpCall.ID,
		Purpose:    tmpCall.Purpose,
		Receiver:   tmpCall.Receiver,
		Method:     tmpCall.Method,
		Args:       tmpCall.Args,
		Deposit:    tmpCall.Deposit,
		Gas:        tmpCall.Gas,
		ProposalID: tmpCall.ProposalId,
		DraftID:    tmpCall.DraftId,
		Handle:     tmpCall.Handle,
		TransferID: tmpCall.TransferId,
		Payer:      tmpCall.Payer,
		Owner:      tmpCall.Owner,
		Amount:     tmpCall.Amount,
	}
}

// CallFromRecord converts a stored call record back into a Call
func CallFromRecord(tmpCall models.PendingCall) Call {
	return callFromModel(tmpCall)
}
