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

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/fonodao/dao"
	"github.com/go-chi/chi/v5"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	// AccountHeader carries the caller's account id
	AccountHeader = "X-Account-Id"

	DefaultPageLimit = 50
	MaxPageLimit     = 500
	maxBodyBytes     = 1 << 20
)

type API struct {
	config   APIConfig
	router   chi.Router
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

type APIConfig struct {
	Logger *slog.Logger
	DAO    *dao.DAO
	Host   string
	Port   uint
}

func NewAPI(cfg APIConfig) *API {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "api")
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	a := &API{
		config: cfg,
	}
	a.router = a.routes()
	return a
}

// Handler returns the HTTP handler serving the API
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api/v1", func(r chi.Router) {
		// Entry points
		r.Post("/proposals", a.handleAddProposal)
		r.Post("/proposals/{id}/actions", a.handleActProposal)
		r.Post("/buy", a.handleBuy)
		r.Post("/calls/{id}/complete", a.handleCompleteCall)
		// Queries
		r.Get("/policy", a.handlePolicy)
		r.Get("/config", a.handleConfig)
		r.Get("/locked-amount", a.handleLockedAmount)
		r.Get("/proposals", a.handleProposals)
		r.Get("/proposals/last", a.handleLastProposalID)
		r.Get("/proposals/{id}", a.handleProposal)
		r.Get("/drafts", a.handleDrafts)
		r.Get("/catalogues/{artist}", a.handleCatalogue)
		r.Get("/income", a.handleIncomeRecords)
		r.Get("/income/{handle}", a.handleIncomeRecord)
		r.Get("/price", a.handlePrice)
		r.Get("/handles", a.handleHandles)
		r.Get("/handles/count", a.handleHandleCount)
		r.Get("/handles/lookup", a.handleHandleLookup)
		r.Get("/failed-transactions", a.handleFailedTransactions)
		r.Get("/calls", a.handlePendingCalls)
		r.Get("/calls/{id}", a.handlePendingCall)
	})
	return r
}

// Start opens the listener and serves the API in the background
func (a *API) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return errors.New("API server already started")
	}
	addr := net.JoinHostPort(a.config.Host, fmt.Sprintf("%d", a.config.Port))
	listenConfig := net.ListenConfig{
		Control: socketControl,
	}
	listener, err := listenConfig.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to open API listener: %w", err)
	}
	a.listener = listener
	a.server = &http.Server{
		// Use h2c so we can serve HTTP/2 without TLS
		Handler:           h2c.NewHandler(a.router, &http2.Server{}),
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.config.Logger.Info(
		"starting API listener on " + listener.Addr().String(),
	)
	server := a.server
	go func() {
		if err := server.Serve(listener); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.config.Logger.Error(
				"API server failed",
				"error", err,
			)
		}
	}()
	return nil
}

// Addr returns the listening address once started
func (a *API) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

func (a *API) Stop(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.server = nil
	a.listener = nil
	a.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
