package server

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Check verifies one dependency at startup.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Readiness runs its checks once per process and remembers the outcome.
type Readiness struct {
	checks  []Check
	timeout time.Duration

	once sync.Once
	err  error
}

func NewReadiness(checks []Check, timeout time.Duration) *Readiness {
	return &Readiness{checks: checks, timeout: timeout}
}

// Check returns the cached result, running the checks on first use. The
// checks run detached from ctx so a cancelled first caller cannot poison
// the cached outcome.
func (r *Readiness) Check(ctx context.Context) error {
	r.once.Do(func() {
		runCtx := context.WithoutCancel(ctx)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, r.timeout)
			defer cancel()
		}
		for _, c := range r.checks {
			if err := c.Run(runCtx); err != nil {
				r.err = fmt.Errorf("%s check failed: %w", c.Name, err)
				return
			}
		}
	})
	return r.err
}
