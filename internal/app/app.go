package app

import (
	"context"
	"sync"

	"github.com/percyitchy/xleaderboard/internal/backend"
	"github.com/percyitchy/xleaderboard/internal/orders"
	"github.com/percyitchy/xleaderboard/internal/storage"
	"github.com/percyitchy/xleaderboard/internal/trade"
	"github.com/percyitchy/xleaderboard/pkg/cache"
	"github.com/percyitchy/xleaderboard/pkg/config"
	"github.com/percyitchy/xleaderboard/pkg/healthprobe"
	"github.com/percyitchy/xleaderboard/pkg/httpserver"
	"github.com/percyitchy/xleaderboard/pkg/wallet"
	"github.com/percyitchy/xleaderboard/pkg/websocket"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	hub           *websocket.Hub
	backend       *backend.Client
	prices        cache.Cache
	session       *wallet.Session
	positions     *wallet.PositionsClient
	controller    *trade.Controller
	orders        *orders.Manager
	storage       storage.Storage
	unsubscribe   func()
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	shutdownOnce  sync.Once
}

// Options holds application options.
type Options struct {
	// Approve is asked before every signature. Nil approves everything.
	Approve wallet.ApproveFunc
}

// Controller returns the trade dialog controller.
func (a *App) Controller() *trade.Controller {
	return a.controller
}

// Orders returns the resting-order manager.
func (a *App) Orders() *orders.Manager {
	return a.orders
}

// Positions returns the Data API positions client.
func (a *App) Positions() *wallet.PositionsClient {
	return a.positions
}

// Session returns the wallet session.
func (a *App) Session() *wallet.Session {
	return a.session
}

// Backend returns the trading API client.
func (a *App) Backend() *backend.Client {
	return a.backend
}

// Storage returns the execution history store.
func (a *App) Storage() storage.Storage {
	return a.storage
}
