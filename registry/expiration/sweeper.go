package expiration

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/go-co-op/gocron/v2"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/metrics"
	"github.com/plgd-dev/nmos-registry/registry/registration"
	"github.com/plgd-dev/nmos-registry/registry/subscription"
)

// Sweeper periodically removes expired resources and idle subscriptions.
type Sweeper struct {
	config        Config
	engine        *registration.Engine
	subscriptions *subscription.Manager
	clock         clock.Clock
	logger        log.Logger
	scheduler     gocron.Scheduler
	done          chan struct{}
}

func New(config Config, engine *registration.Engine, subscriptions *subscription.Manager, clk clock.Clock, logger log.Logger) (*Sweeper, error) {
	s := &Sweeper{
		config:        config,
		engine:        engine,
		subscriptions: subscriptions,
		clock:         clk,
		logger:        logger,
		done:          make(chan struct{}),
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("cannot create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(gocron.DurationJob(config.Interval),
		gocron.NewTask(func() {
			s.Sweep()
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("cannot create sweep job: %w", err)
	}
	s.scheduler = scheduler
	return s, nil
}

// Sweep removes the expired resources through the registration engine, which
// checks the deadline again at the moment of removal. It returns the number of
// removed resources.
func (s *Sweeper) Sweep() int {
	now := s.clock.Now()
	removed := 0
	for _, id := range s.engine.ExpiryCandidates(now) {
		r, ok := s.engine.Expire(id, now)
		if !ok {
			continue
		}
		removed++
		metrics.Expirations.Inc()
		s.logger.Infof("%v('%v') expired", r.Type, r.ID)
	}
	if s.subscriptions != nil {
		for _, id := range s.subscriptions.ExpireIdle(now, s.config.SubscriptionIdleTimeout) {
			s.logger.Debugf("subscription('%v') expired", id)
		}
	}
	return removed
}

// Serve starts the scheduler and blocks until Close is called.
func (s *Sweeper) Serve() error {
	s.scheduler.Start()
	<-s.done
	return nil
}

// Close stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Close() error {
	err := s.scheduler.Shutdown()
	close(s.done)
	if err != nil {
		return fmt.Errorf("cannot stop expiration sweeper: %w", err)
	}
	return nil
}
