package server

import (
	"context"
	"net"

	"go.uber.org/fx"
)

// CheckGroup is the fx value group readiness checks are collected from.
const CheckGroup = `group:"readiness_checks"`

// FXModule provides the HTTP server and serves it for the application
// lifetime. Readiness checks are gathered from the "readiness_checks" group.
var FXModule = fx.Module("server",
	fx.Provide(
		NewReadinessFromParams,
		NewHandler,
		NewServerFromParams,
	),
	fx.Invoke(RegisterServerLifecycle),
)

type ReadinessParams struct {
	fx.In

	Config Config
	Checks []Check `group:"readiness_checks"`
}

func NewReadinessFromParams(p ReadinessParams) *Readiness {
	return NewReadiness(p.Checks, p.Config.ReadinessTimeout)
}

type ServerParams struct {
	fx.In

	Config     Config
	Handler    *Handler
	Logger     Logger
	Propagator Propagator `optional:"true"`
}

func NewServerFromParams(p ServerParams) *Server {
	return NewServer(p.Config, p.Handler, p.Logger, p.Propagator)
}

// RegisterServerLifecycle binds the listener on start so address errors
// abort startup, serves in the background and shuts down gracefully on
// stop.
func RegisterServerLifecycle(lc fx.Lifecycle, s *Server, logger Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", s.cfg.Address)
			if err != nil {
				logger.Error("failed to bind http listener", err, map[string]interface{}{
					"address": s.cfg.Address,
				})
				return err
			}
			logger.Info("http server listening", nil, map[string]interface{}{
				"address": ln.Addr().String(),
			})
			go func() {
				if err := s.App.Listener(ln); err != nil {
					logger.Error("http server stopped", err, nil)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down http server", nil, nil)
			return s.App.ShutdownWithContext(ctx)
		},
	})
}
