package agentservice

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/agent"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/auth"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/config"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/rabbitmq"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/lifecycle"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/location"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/push"
)

// Options are the agent-mode command line knobs.
type Options struct {
	AutoAccept bool    // accept every offered transition without prompting
	Lat        float64 // simulated GPS start latitude
	Lng        float64 // simulated GPS start longitude
	StepMeters float64 // simulated GPS step per fix
}

// Run boots the driver agent and keeps it online until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	log := logger.New("agent-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile("./config/config.yaml")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	creds, err := auth.Load(cfg.Credentials.TokenFile)
	if err != nil {
		log.Error(ctx, "credential_load_failed", "No usable driver credential", err, nil)
		return err
	}

	// push is optional; without a broker the agent runs realtime-only
	var broker push.Broker
	if cfg.RabbitMQ.Host != "" {
		rmq, err := rabbitmq.Connect(ctx, cfg, log)
		if err != nil {
			log.Warn(ctx, "rabbitmq_connection_failed", "Starting without push notifications",
				map[string]string{"error": err.Error()})
		} else {
			defer rmq.Close()
			broker = rmq
		}
	}

	var confirm lifecycle.Confirmer
	if opts.AutoAccept {
		confirm = agent.AutoConfirmer(true)
	} else {
		confirm = &agent.PromptConfirmer{In: os.Stdin, Out: os.Stdout}
	}

	provider := &location.Walker{
		Start:      geo.Point{Latitude: opts.Lat, Longitude: opts.Lng},
		StepMeters: opts.StepMeters,
		Interval:   5 * time.Second,
	}

	a := agent.New(cfg, log, creds, broker, confirm, provider)

	if err := a.Start(ctx); err != nil {
		log.Error(ctx, "agent_start_failed", "Could not start the driver agent", err, nil)
		return err
	}
	if err := a.GoOnline(ctx); err != nil {
		log.Error(ctx, "go_online_failed", "Could not flip the driver online", err, nil)
		a.Stop(context.WithoutCancel(ctx))
		return err
	}

	<-ctx.Done()

	// the run context is gone; shut down on a fresh deadline
	shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	a.Stop(shCtx)

	return nil
}
