package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"suitcase-link/internal/adapter/tui/monitor"
	"suitcase-link/internal/domain"
	"suitcase-link/internal/infra/config"
	"suitcase-link/internal/infra/logger"
	"suitcase-link/internal/infra/tracer"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "run":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	case "monitor":
		if err := runMonitor(); err != nil {
			fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	case "encrypt":
		if err := runEncrypt(); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'suitcase --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`suitcase - smart suitcase weight monitor

USAGE:
    suitcase [COMMAND] [FLAGS]

COMMANDS:
    run         Run headless: transports, alerts and the gateway (default)
    monitor     Launch the interactive luggage monitor
    doctor      Run health checks on your setup
    encrypt     Encrypt a secret for config.yaml (reads SUITCASE_CONFIG_KEY)

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml (optional; defaults apply when missing)
    Environment: SUITCASE_* variables override config

EXAMPLES:
    suitcase monitor
    SUITCASE_TRANSPORT=network SUITCASE_NETWORK_ENDPOINT=http://10.0.0.7/weight suitcase
    SUITCASE_CONFIG_KEY=... suitcase encrypt https://hooks.slack.com/services/...`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("SUITCASE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Session, transports, notifiers, gateway
	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	gatewayErr := make(chan error, 1)
	if a.gateway != nil {
		go func() { gatewayErr <- a.gateway.Start(ctx) }()
	}

	log.Info("suitcase starting",
		"class", cfg.Session.Class,
		"transport", cfg.Session.Transport,
		"gateway", cfg.Gateway.Enabled,
		"slack", cfg.Alerts.Slack.WebhookURL != "",
		"history", cfg.History.Enabled,
	)

	select {
	case <-ctx.Done():
	case err := <-gatewayErr:
		if err != nil {
			return err
		}
		<-ctx.Done()
	}

	log.Info("suitcase shutting down")
	if a.gateway != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := a.gateway.Stop(shutdownCtx); err != nil {
			log.Error("gateway shutdown error", "error", err)
		}
	}
	return nil
}

func runMonitor() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Log lines would tear the alt screen, so terminal output is discarded
	// while the monitor owns it.
	logCfg := cfg.Logger
	if logger.OnTerminal(logCfg.Output) {
		logCfg.Output = "discard"
	}
	log, logCloser, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if a.gateway != nil {
		go func() {
			if err := a.gateway.Start(ctx); err != nil {
				log.Error("gateway server error", "error", err)
			}
		}()
	}

	unit, err := domain.ParseDisplayUnit(cfg.Session.DisplayUnit)
	if err != nil {
		unit = domain.DisplayPounds
	}

	model := monitor.New(monitor.Deps{
		Session: a.session,
		Bus:     a.bus,
		Unit:    unit,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	model.SetProgramSender(func(msg tea.Msg) { p.Send(msg) })

	_, err = p.Run()
	return err
}

// runEncrypt prints the enc: form of a secret for use in config.yaml.
func runEncrypt() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: suitcase encrypt <secret>")
	}
	key := os.Getenv("SUITCASE_CONFIG_KEY")
	if key == "" {
		return fmt.Errorf("SUITCASE_CONFIG_KEY must be set")
	}
	enc, err := config.EncryptValue(os.Args[2], key)
	if err != nil {
		return err
	}
	fmt.Println("enc:" + enc)
	return nil
}
