package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/fx"
)

// Logger defines the logging operations the metrics server needs.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// FXModule provides *Metrics and serves the registry while the app runs.
var FXModule = fx.Module("metrics",
	fx.Provide(NewMetrics),
	fx.Invoke(RegisterMetricsLifecycle),
)

// RegisterMetricsLifecycle binds the metrics listener on start, so a busy
// port fails startup, and shuts the server down on stop.
func RegisterMetricsLifecycle(lc fx.Lifecycle, cfg Config, m *Metrics, logger Logger) {
	if !cfg.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", m.Server.Addr)
			if err != nil {
				return err
			}
			logger.Info("metrics server listening", nil, map[string]interface{}{"address": ln.Addr().String()})
			go func() {
				if err := m.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server stopped", err, nil)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping metrics server...", nil, nil)
			return m.Server.Shutdown(ctx)
		},
	})
}
