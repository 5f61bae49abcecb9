package blacklist

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Enforcer answers the join-time question: is this user on the blacklist?
// Registry outages fail open — a member join is never blocked because the
// registry was unreachable.
type Enforcer struct {
	registry Registry
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func NewEnforcer(registry Registry, checksPerSecond float64, burst int, logger *zap.Logger) *Enforcer {
	if checksPerSecond <= 0 {
		checksPerSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Enforcer{
		registry: registry,
		limiter:  rate.NewLimiter(rate.Limit(checksPerSecond), burst),
		logger:   logger,
	}
}

// Evaluate reports whether the user should be banned on join and with what
// reason. Join bursts (raids, mass invites) are throttled so the registry is
// not hammered with one request per join event.
func (e *Enforcer) Evaluate(ctx context.Context, userID string) (string, bool) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", false
	}

	status, err := e.registry.Check(ctx, userID)
	if err != nil {
		e.logger.Warn("registry check failed, allowing join",
			zap.String("user_id", userID),
			zap.Error(err))
		return "", false
	}
	if !status.Blacklisted {
		return "", false
	}

	reason := status.Reason
	if reason == "" {
		reason = "blacklisted"
	}
	return reason, true
}
