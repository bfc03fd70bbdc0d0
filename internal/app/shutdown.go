package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. It is safe to call more
// than once.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(a.shutdown)
	return nil
}

func (a *App) shutdown() {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Close dialogs first so no new sessions start. Running sessions are
	// detached and finish on their own.
	a.controller.CloseAll()
	a.unsubscribe()

	// Cancel context to signal all components
	a.cancel()

	// Shutdown components in dependency order
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Disconnect dashboard clients
	a.hub.Close()

	// Close storage
	err = a.storage.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.prices.Close()
	a.session.Disconnect()

	// Wait for all goroutines
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")
}
