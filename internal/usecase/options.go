package usecase

import (
	"time"
)

const (
	defaultLockTimeout = 2 * time.Second
	defaultActor       = "admin"
	auditWriteTimeout  = 2 * time.Second
)

type options struct {
	now         func() time.Time
	guard       *StoreGuard
	lockTimeout time.Duration
	actor       string
}

type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithGuard shares one circuit breaker between services that use the same store.
func WithGuard(g *StoreGuard) Option {
	return func(o *options) { o.guard = g }
}

func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

func WithActor(actor string) Option {
	return func(o *options) { o.actor = actor }
}

func buildOptions(opts []Option) options {
	o := options{
		now:         time.Now,
		lockTimeout: defaultLockTimeout,
		actor:       defaultActor,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.guard == nil {
		o.guard = NewStoreGuard("coupon-store", 5, 10*time.Second)
	}
	return o
}
