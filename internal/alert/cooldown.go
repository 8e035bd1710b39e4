package alert

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCooldown is the minimum gap between two delivered notifications.
const DefaultCooldown = 3 * time.Second

// CooldownNotifier drops notifications that arrive within the cooldown of
// the last delivered one.
type CooldownNotifier struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewCooldownNotifier wraps next. A non-positive cooldown uses DefaultCooldown.
func NewCooldownNotifier(next Notifier, cooldown time.Duration) *CooldownNotifier {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CooldownNotifier{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(cooldown), 1),
	}
}

// Notify forwards to the wrapped notifier unless the cooldown is active,
// in which case it returns nil without delivering.
func (n *CooldownNotifier) Notify(ctx context.Context, title, body string) error {
	if !n.limiter.Allow() {
		return nil
	}
	return n.next.Notify(ctx, title, body)
}
