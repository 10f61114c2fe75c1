package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/auth"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/driver"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/config"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/lifecycle"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/location"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/push"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/realtime"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/restapi"
)

const producer = "driver-agent"

// ErrAlreadyOnline is returned by GoOnline while a broadcast loop is live.
var ErrAlreadyOnline = errors.New("driver is already online")

// Agent is the driver session: one credential, one realtime connection, one
// order controller, and an optional push channel, with the location loop
// started and stopped by GoOnline/GoOffline.
type Agent struct {
	cfg      *config.Config
	log      *logger.Logger
	creds    *auth.Credentials
	api      *restapi.Client
	rt       *realtime.Client
	ctrl     *lifecycle.Controller
	bridge   *push.Bridge
	provider location.Provider

	mu           sync.Mutex
	availability driver.Availability
	stopLoc      context.CancelFunc
	locDone      chan struct{}
}

// New wires an agent. broker may be nil (push disabled); confirm decides
// every order transition.
func New(cfg *config.Config, log *logger.Logger, creds *auth.Credentials,
	broker push.Broker, confirm lifecycle.Confirmer, provider location.Provider) *Agent {

	api := restapi.New(cfg.Server.BaseURL, log, creds)
	rt := realtime.NewClient(realtime.Config{
		URL:                  cfg.Realtime.URL,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		ReconnectDelay:       cfg.Realtime.ReconnectDelay,
		ReconnectDelayCap:    cfg.Realtime.ReconnectDelayCap,
	}, log, creds, producer)

	ctrl := lifecycle.NewController(api, log, confirm, creds.DriverID(), cfg.Dispatchd.DefaultRadiusKm)

	a := &Agent{
		cfg:          cfg,
		log:          log,
		creds:        creds,
		api:          api,
		rt:           rt,
		ctrl:         ctrl,
		provider:     provider,
		availability: driver.Offline,
	}
	a.bridge = push.NewBridge(log, broker, api, creds.DriverID(), func(ctx context.Context, orderID string) {
		if err := ctrl.Refresh(ctx); err != nil {
			log.Warn(ctx, "push_refresh_failed", "re-fetch after notification failed",
				map[string]string{"error": err.Error()})
		}
	})
	return a
}

// Controller exposes the order lifecycle operations.
func (a *Agent) Controller() *lifecycle.Controller { return a.ctrl }

// Realtime exposes the transport client (listener registration, state).
func (a *Agent) Realtime() *realtime.Client { return a.rt }

// Start connects the realtime channel, binds the order listeners, primes
// the caches, and registers for push. Fatal only when the credential is
// unusable or the initial realtime dial fails.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.rt.Connect(ctx, a.creds.DriverID()); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	a.ctrl.Bind(a.rt)

	if err := a.ctrl.Refresh(ctx); err != nil {
		a.log.Warn(ctx, "initial_refresh_failed", "starting with empty order caches",
			map[string]string{"error": err.Error()})
	}

	if a.bridge.Register(ctx) != "" {
		go func() {
			if err := a.bridge.Run(ctx); err != nil {
				a.log.Warn(ctx, "push_consumer_stopped", "push channel closed",
					map[string]string{"error": err.Error()})
			}
		}()
	}

	a.log.Info(ctx, "agent_started", "driver agent is up", map[string]string{
		"driver_id": a.creds.DriverID(),
	})
	return nil
}

// GoOnline flips the driver available server-side and starts the location
// broadcast loop.
func (a *Agent) GoOnline(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopLoc != nil {
		return ErrAlreadyOnline
	}

	av, err := a.api.SetAvailability(ctx, a.creds.DriverID(), true)
	if err != nil {
		return err
	}
	a.availability = av

	b := location.NewBroadcaster(location.Config{
		MinInterval:     a.cfg.Location.MinInterval,
		MinDisplacement: a.cfg.Location.MinDisplacement,
	}, a.log, a.provider, a.api, a.rt, a.creds.DriverID(), producer,
		a.ctrl.ActiveOrderID, a.currentAvailability)

	locCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	a.stopLoc = cancel
	a.locDone = done

	go func() {
		defer close(done)
		if err := b.Run(locCtx); err != nil {
			a.log.Error(locCtx, "location_loop_failed", "broadcast loop terminated", err, nil)
		}
	}()

	a.log.Info(ctx, "driver_online", "driver is online", map[string]string{"status": av.String()})
	return nil
}

// GoOffline stops the broadcast loop (waiting for it to wind down) and
// flips the driver offline server-side.
func (a *Agent) GoOffline(ctx context.Context) error {
	a.mu.Lock()
	stop, done := a.stopLoc, a.locDone
	a.stopLoc, a.locDone = nil, nil
	a.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	av, err := a.api.SetAvailability(ctx, a.creds.DriverID(), false)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.availability = av
	a.mu.Unlock()

	a.log.Info(ctx, "driver_offline", "driver is offline", nil)
	return nil
}

// Stop winds the whole session down: location loop, availability, order
// listeners, realtime connection.
func (a *Agent) Stop(ctx context.Context) {
	if err := a.GoOffline(ctx); err != nil {
		a.log.Warn(ctx, "offline_on_stop_failed", "could not flip offline during shutdown",
			map[string]string{"error": err.Error()})
	}
	a.ctrl.Unbind()
	a.rt.Disconnect()
	a.log.Info(ctx, "agent_stopped", "driver agent shut down", nil)
}

func (a *Agent) currentAvailability() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.availability.String()
}
