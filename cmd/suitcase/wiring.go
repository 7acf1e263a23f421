package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"suitcase-link/internal/adapter/gateway"
	"suitcase-link/internal/adapter/history"
	"suitcase-link/internal/adapter/network"
	"suitcase-link/internal/adapter/notify"
	"suitcase-link/internal/adapter/peripheral"
	"suitcase-link/internal/domain"
	"suitcase-link/internal/infra/config"
	"suitcase-link/internal/infra/logger"
	"suitcase-link/internal/infra/middleware"
	"suitcase-link/internal/usecase/eventbus"
	"suitcase-link/internal/usecase/scheduling"
	"suitcase-link/internal/usecase/session"
)

// app holds the long-lived components shared by run and monitor.
type app struct {
	bus     *eventbus.Bus
	session *session.Session
	gateway *gateway.Server // nil when disabled
	history *history.Store  // nil when disabled

	cleanups []func()
}

// close tears components down in reverse order of construction.
func (a *app) close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}

// buildApp wires the event bus, transports, session, notifiers, history
// and gateway.
func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}

	a.bus = eventbus.New(logger.Component(log, "eventbus"))
	a.cleanups = append(a.cleanups, a.bus.Close)

	sources, err := buildSources(cfg, log)
	if err != nil {
		a.close()
		return nil, err
	}

	class, err := domain.ParseClassOfTravel(cfg.Session.Class)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("session class: %w", err)
	}
	a.session = session.New(sources, a.bus, class, logger.Component(log, "session"))
	a.cleanups = append(a.cleanups, a.session.Close)

	dispatcher := notify.NewDispatcher(buildNotifier(cfg.Alerts, log), cfg.Alerts.Timeout, logger.Component(log, "notify"))
	a.cleanups = append(a.cleanups, dispatcher.Attach(a.bus))

	if cfg.History.Enabled {
		if err := a.attachHistory(ctx, cfg.History, log); err != nil {
			a.close()
			return nil, err
		}
	}

	if cfg.Gateway.Enabled {
		var hist gateway.HistoryReader
		if a.history != nil {
			hist = a.history
		}
		a.gateway, err = buildGateway(ctx, cfg.Gateway, a.session, a.bus, hist, log)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	if cfg.Session.Transport != "" {
		kind, err := domain.ParseTransportKind(cfg.Session.Transport)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("session transport: %w", err)
		}
		if err := a.session.SelectTransport(ctx, kind); err != nil {
			a.close()
			return nil, fmt.Errorf("select %s transport: %w", kind, err)
		}
	}

	return a, nil
}

// attachHistory opens the trip log, records bus events into it and schedules
// retention pruning.
func (a *app) attachHistory(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) error {
	histLog := logger.Component(log, "history")
	store, err := history.Open(cfg.Path)
	if err != nil {
		return err
	}
	a.history = store
	a.cleanups = append(a.cleanups, func() {
		if err := store.Close(); err != nil {
			histLog.Warn("close history db", "error", err)
		}
	})
	a.cleanups = append(a.cleanups, store.Attach(a.bus, histLog))

	if cfg.Retention <= 0 {
		return nil
	}
	sched := scheduling.NewScheduler(logger.Component(log, "scheduler"))
	if err := sched.AddTask(scheduling.Task{
		Name:     "history_retention",
		Schedule: cfg.PruneSchedule,
		Run:      pruneHistory(store, cfg.Retention, histLog),
	}); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.cleanups = append(a.cleanups, sched.Stop)
	return nil
}

func pruneHistory(store *history.Store, retention time.Duration, log *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := store.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("history pruned", "rows", n, "retention", retention)
		}
		return nil
	}
}

// buildSources creates the measurement sources. A missing Bluetooth adapter
// only drops the peripheral transport.
func buildSources(cfg *config.Config, log *slog.Logger) ([]domain.MeasurementSource, error) {
	var sources []domain.MeasurementSource

	periphLog := logger.Component(log, "peripheral")
	radio, err := peripheral.NewBluetoothRadio(periphLog)
	if err != nil {
		log.Warn("bluetooth unavailable, peripheral transport disabled", "error", err)
	} else {
		sources = append(sources, peripheral.New(radio, peripheral.Config{
			ServiceUUID:        cfg.Peripheral.ServiceUUID,
			CharacteristicUUID: cfg.Peripheral.CharacteristicUUID,
			ConnectTimeout:     cfg.Peripheral.ConnectTimeout,
			RSSIInterval:       cfg.Peripheral.RSSIInterval,
		}, periphLog))
	}

	netLog := logger.Component(log, "network")
	resolver, err := buildResolver(cfg.Network, netLog)
	if err != nil {
		return nil, err
	}
	sources = append(sources, network.New(resolver, nil, network.Config{
		Interval: cfg.Network.Interval,
		Timeout:  cfg.Network.Timeout,
		Breaker: network.BreakerConfig{
			MaxFailures: cfg.Network.Breaker.MaxFailures,
			Timeout:     cfg.Network.Breaker.Timeout,
		},
	}, netLog))

	return sources, nil
}

func buildResolver(cfg config.NetworkConfig, log *slog.Logger) (network.Resolver, error) {
	if cfg.Discovery.Enabled {
		return buildDiscoveryResolver(cfg.Discovery, log)
	}
	r, err := network.NewStaticResolver(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("network endpoint: %w", err)
	}
	return r, nil
}

// buildNotifier always logs alerts and, when a webhook is configured, also
// posts them to Slack under the alert throttle.
func buildNotifier(cfg config.AlertsConfig, log *slog.Logger) domain.Notifier {
	notifyLog := logger.Component(log, "notify")
	notifiers := notify.Multi{notify.NewLogNotifier(notifyLog)}
	if cfg.Slack.WebhookURL != "" {
		slack := notify.NewSlackNotifier(cfg.Slack.WebhookURL, cfg.Slack.Channel)
		notifiers = append(notifiers, notify.NewThrottled(slack, cfg.ThrottlePer, cfg.ThrottleBurst, notifyLog))
	}
	return notifiers
}

func buildGateway(ctx context.Context, cfg config.GatewayConfig, sess *session.Session, bus domain.EventBus, hist gateway.HistoryReader, log *slog.Logger) (*gateway.Server, error) {
	gwLog := logger.Component(log, "gateway")

	var auth gateway.Authenticator
	switch cfg.Auth.Type {
	case "static":
		entries := make([]gateway.TokenEntry, 0, len(cfg.Auth.Tokens))
		for _, t := range cfg.Auth.Tokens {
			entries = append(entries, gateway.TokenEntry{Token: t.Token, Name: t.Name})
		}
		auth = gateway.NewStaticTokenAuth(entries)
	case "none", "":
		gwLog.Warn("gateway authentication disabled", "addr", cfg.Addr)
		auth = gateway.OpenAuth{}
	default:
		return nil, fmt.Errorf("unknown gateway auth type: %s", cfg.Auth.Type)
	}

	srv := gateway.NewServer(bus, auth, cfg.Addr, gwLog)
	srv.Use(middleware.SecurityHeaders)
	srv.Use(middleware.RateLimit(ctx, middleware.RateLimitConfig{
		PerSecond: cfg.RateLimit,
		Burst:     max(int(cfg.RateLimit*2), 1),
		IdleTTL:   3 * time.Minute,
	}))

	deps := gateway.HandlerDeps{Session: sess, Bus: bus, History: hist, Logger: gwLog}
	gateway.RegisterDefaultHandlers(srv, deps)
	gateway.RegisterRESTHandlers(srv, deps)
	return srv, nil
}
