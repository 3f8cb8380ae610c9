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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const (
	defaultHTTPCallerTimeout = 30 * time.Second
	maxResponseBodySize      = 1 << 20
	tracerName               = "github.com/blinklabs-io/fonodao/extcall"
)

type httpCallRequest struct {
	ID       string          `json:"id"`
	Receiver string          `json:"receiver_id"`
	Method   string          `json:"method_name"`
	Args     json.RawMessage `json:"args"`
	Deposit  string          `json:"deposit"`
	Gas      uint64          `json:"gas"`
}

// HTTPCaller delivers calls by POSTing them as JSON to an external service.
// The service answers with a Result document.
type HTTPCaller struct {
	url    string
	client *http.Client
}

func NewHTTPCaller(url string, timeout time.Duration) *HTTPCaller {
	if timeout <= 0 {
		timeout = defaultHTTPCallerTimeout
	}
	return &HTTPCaller{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPCaller) Call(ctx context.Context, call Call) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "extcall.Call")
	defer span.End()
	span.SetAttributes(
		attribute.String("call.id", call.ID),
		attribute.String("call.receiver", call.Receiver),
		attribute.String("call.method", call.Method),
	)
	result, err := c.call(ctx, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.Bool("call.success", result.Success))
	return result, nil
}

func (c *HTTPCaller) call(ctx context.Context, call Call) (Result, error) {
	args := json.RawMessage(call.Args)
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	reqBody, err := json.Marshal(
		httpCallRequest{
			ID:       call.ID,
			Receiver: call.Receiver,
			Method:   call.Method,
			Args:     args,
			Deposit:  call.Deposit.String(),
			Gas:      call.Gas,
		},
	)
	if err != nil {
		return Result{}, fmt.Errorf("encode call: %w", err)
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.url,
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf(
			"external service returned status %d: %s",
			resp.StatusCode,
			string(respBody),
		)
	}
	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Result{}, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}
