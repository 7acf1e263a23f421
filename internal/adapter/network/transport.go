// Package network implements the polled local-network measurement source.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"suitcase-link/internal/domain"
	"suitcase-link/internal/infra/tracer"
)

// Default poll settings.
const (
	defaultInterval = 2 * time.Second
	defaultTimeout  = 5 * time.Second

	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 10 * time.Second
)

// maxResponseBody bounds how much of a response is read.
const maxResponseBody = 4096

// BreakerConfig configures the poll circuit breaker. While open, polls fail
// fast without touching the network.
type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
}

// Config holds poll timing.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Breaker  BreakerConfig
}

type weightResponse struct {
	Weight *float64 `json:"weight"`
}

// Transport is a domain.MeasurementSource that polls GET <endpoint> for
// {"weight": <kg>}. It has no discovery or connect phase.
type Transport struct {
	resolver Resolver
	client   *http.Client
	cfg      Config
	breaker  *gobreaker.CircuitBreaker[float64]
	logger   *slog.Logger

	mu     sync.Mutex
	sink   domain.SourceSink
	cancel context.CancelFunc
	gen    uint64
	state  domain.ConnectionState
	wg     sync.WaitGroup
}

// New creates a polled transport. client may be nil.
func New(resolver Resolver, client *http.Client, cfg Config, logger *slog.Logger) *Transport {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	openFor := cfg.Breaker.Timeout
	if openFor == 0 {
		openFor = defaultBreakerTimeout
	}

	cb := gobreaker.NewCircuitBreaker[float64](gobreaker.Settings{
		Name:        "network:poll",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			// Polls abandoned by End are not endpoint failures.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Transport{
		resolver: resolver,
		client:   client,
		cfg:      cfg,
		breaker:  cb,
		logger:   logger,
		state:    domain.Idle(),
	}
}

// NewHTTPClient returns a client sized for a single LAN host.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          2,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       30 * time.Second,
		},
		Timeout: timeout,
	}
}

// Kind implements domain.MeasurementSource.
func (t *Transport) Kind() domain.TransportKind { return domain.TransportNetwork }

// Begin implements domain.MeasurementSource. The first poll is issued
// immediately.
func (t *Transport) Begin(sink domain.SourceSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sink != nil {
		return
	}
	t.gen++
	gen := t.gen
	ctx, cancel := context.WithCancel(context.Background())
	t.sink = sink
	t.cancel = cancel
	t.state = domain.Idle()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.loop(ctx, gen)
	}()
	t.logger.Info("network transport started", "interval", t.cfg.Interval)
}

// End implements domain.MeasurementSource. A poll in flight is cancelled and
// its result dropped.
func (t *Transport) End() {
	t.mu.Lock()
	if t.sink == nil {
		t.mu.Unlock()
		return
	}
	t.cancel()
	t.sink = nil
	t.state = domain.Idle()
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("network transport stopped")
}

// BreakerState reports the poll breaker state.
func (t *Transport) BreakerState() gobreaker.State {
	return t.breaker.State()
}

func (t *Transport) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	var endpoint string
	for {
		if endpoint == "" {
			ep, err := t.resolver.Resolve(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				t.report(gen, "", 0, fmt.Errorf("resolve endpoint: %w", err))
			} else {
				endpoint = ep
				t.markConnecting(gen, endpoint)
			}
		}

		if endpoint != "" {
			kg, err := t.poll(ctx, endpoint)
			if ctx.Err() != nil {
				return
			}
			t.report(gen, endpoint, kg, err)
			if err != nil {
				// Re-resolve after a failure; the suitcase may have moved.
				endpoint = ""
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *Transport) poll(ctx context.Context, endpoint string) (float64, error) {
	ctx, span := tracer.StartSpan(ctx, "network.poll")
	span.SetAttributes(tracer.StringAttr("endpoint", endpoint))
	defer span.End()

	kg, err := t.breaker.Execute(func() (float64, error) {
		reqCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
		return t.fetch(reqCtx, endpoint)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("endpoint circuit open: %w", err)
		}
		tracer.RecordError(span, err)
		return 0, err
	}
	span.SetAttributes(tracer.Float64Attr("weight.kg", kg))
	tracer.SetOK(span)
	return kg, nil
}

func (t *Transport) fetch(ctx context.Context, endpoint string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return 0, domain.NewDomainError("network.Poll", domain.ErrTimeout, t.cfg.Timeout.String())
		}
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, domain.NewDomainError("network.Poll", domain.ErrEndpointResponse,
			fmt.Sprintf("status %d", resp.StatusCode))
	}

	var wr weightResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return 0, domain.NewDomainError("network.Poll", domain.ErrEndpointResponse, "malformed body")
	}
	if wr.Weight == nil {
		return 0, domain.NewDomainError("network.Poll", domain.ErrEndpointResponse, `missing "weight" field`)
	}
	return *wr.Weight, nil
}

// markConnecting announces the endpoint about to be polled.
func (t *Transport) markConnecting(gen uint64, endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || t.sink == nil || !t.state.Is(domain.StateIdle) {
		return
	}
	t.setStateLocked(domain.Connecting(endpointDevice(endpoint)))
}

// report turns one poll outcome into events. Results of a superseded
// generation are dropped.
func (t *Transport) report(gen uint64, endpoint string, kg float64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || t.sink == nil {
		return
	}

	if err != nil {
		reason := err.Error()
		if endpoint != "" {
			reason = fmt.Sprintf("poll %s: %v", endpoint, err)
		}
		t.logger.Warn("network poll failed", "error", err)
		t.sink(domain.ConnectionFailed{Reason: reason})
		if !t.state.Is(domain.StateIdle) {
			t.setStateLocked(domain.Idle())
		}
		return
	}

	if !t.state.Is(domain.StateConnected) {
		t.setStateLocked(domain.Connected(endpointDevice(endpoint)))
	}
	t.logger.Debug("network reading", "kg", kg)
	t.sink(domain.ReadingReceived{Reading: domain.NewReading(kg, domain.UnitKilograms, domain.TransportNetwork)})
}

func (t *Transport) setStateLocked(s domain.ConnectionState) {
	t.state = s
	t.sink(domain.LinkStateChanged{State: s})
}

// endpointDevice names the polled endpoint the way a discovered peripheral
// would be named.
func endpointDevice(endpoint string) domain.Device {
	d := domain.Device{ID: endpoint}
	if u, err := url.Parse(endpoint); err == nil {
		d.Name = u.Host
	}
	return d
}

// Compile-time interface check.
var _ domain.MeasurementSource = (*Transport)(nil)
