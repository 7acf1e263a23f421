package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"suitcase-link/internal/adapter/history"
	"suitcase-link/internal/domain"
	"suitcase-link/internal/usecase/session"
)

// SessionAPI is the part of the connectivity session the gateway drives.
type SessionAPI interface {
	SelectTransport(ctx context.Context, kind domain.TransportKind) error
	RequestScan(ctx context.Context) error
	Connect(ctx context.Context, deviceID string) error
	Disconnect(ctx context.Context) error
	SetClassOfTravel(ctx context.Context, class domain.ClassOfTravel) error
	Snapshot() session.Snapshot
}

// HistoryReader serves the stored trip log.
type HistoryReader interface {
	Readings(ctx context.Context, limit int) ([]history.ReadingRecord, error)
	Alerts(ctx context.Context, limit int) ([]domain.Alert, error)
}

// HandlerDeps holds dependencies needed by RPC and REST handlers.
type HandlerDeps struct {
	Session SessionAPI
	Bus     domain.EventBus // can be nil; metrics counters stay at zero
	History HistoryReader   // can be nil; history routes are not registered
	Logger  *slog.Logger
}

// RegisterDefaultHandlers registers the session RPC methods. Every mutating
// method replies with the snapshot taken after the intent was applied.
func RegisterDefaultHandlers(s *Server, deps HandlerDeps) {
	s.RegisterHandler("session.status", sessionStatusHandler(deps))
	s.RegisterHandler("session.select_transport", selectTransportHandler(deps))
	s.RegisterHandler("session.scan", scanHandler(deps))
	s.RegisterHandler("session.connect", connectHandler(deps))
	s.RegisterHandler("session.disconnect", disconnectHandler(deps))
	s.RegisterHandler("session.set_class", setClassHandler(deps))
	if deps.History != nil {
		s.RegisterHandler("history.recent", historyRecentHandler(deps))
	}
}

// RegisterRESTHandlers registers the HTTP status, health and metrics routes.
func RegisterRESTHandlers(s *Server, deps HandlerDeps) *Metrics {
	startTime := time.Now()
	metrics := NewMetrics(deps.Bus, deps.Session, startTime)

	authMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if _, err := s.auth.Authenticate(tokenFromRequest(r)); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	s.RegisterHTTPRoute("/healthz", healthHandler(startTime))
	s.RegisterHTTPRoute("/status", authMiddleware(statusHandler(deps)))
	s.RegisterHTTPRoute("/metrics", authMiddleware(metricsHandler(metrics)))
	if deps.History != nil {
		s.RegisterHTTPRoute("/history", authMiddleware(historyHandler(deps)))
	}

	return metrics
}

func snapshotResult(deps HandlerDeps) (json.RawMessage, error) {
	return json.Marshal(deps.Session.Snapshot())
}

// decodeRequest validates an RPC payload against its method schema and
// unmarshals it, mapping any failure to ErrRPCInvalidPayload.
func decodeRequest(op string, payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return domain.NewDomainError(op, domain.ErrRPCInvalidPayload, "empty payload")
	}
	if err := validatePayload(op, payload); err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return domain.NewDomainError(op, domain.ErrRPCInvalidPayload, err.Error())
	}
	return nil
}

func sessionStatusHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return snapshotResult(deps)
	}
}

type selectTransportRequest struct {
	Transport string `json:"transport"`
}

func selectTransportHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req selectTransportRequest
		if err := decodeRequest("session.select_transport", payload, &req); err != nil {
			return nil, err
		}
		kind, err := domain.ParseTransportKind(req.Transport)
		if err != nil {
			return nil, err
		}
		deps.Logger.Info("transport requested", "client", client.Name, "transport", string(kind))
		if err := deps.Session.SelectTransport(ctx, kind); err != nil {
			return nil, err
		}
		return snapshotResult(deps)
	}
}

func scanHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		if err := deps.Session.RequestScan(ctx); err != nil {
			return nil, err
		}
		return snapshotResult(deps)
	}
}

type connectRequest struct {
	DeviceID string `json:"device_id"`
}

func connectHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req connectRequest
		if err := decodeRequest("session.connect", payload, &req); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.DeviceID) == "" {
			return nil, domain.NewDomainError("session.connect", domain.ErrRPCInvalidPayload, "device_id is required")
		}
		deps.Logger.Info("connect requested", "client", client.Name, "device_id", req.DeviceID)
		if err := deps.Session.Connect(ctx, req.DeviceID); err != nil {
			return nil, err
		}
		return snapshotResult(deps)
	}
}

func disconnectHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		if err := deps.Session.Disconnect(ctx); err != nil {
			return nil, err
		}
		return snapshotResult(deps)
	}
}

type setClassRequest struct {
	Class string `json:"class"`
}

func setClassHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req setClassRequest
		if err := decodeRequest("session.set_class", payload, &req); err != nil {
			return nil, err
		}
		if err := deps.Session.SetClassOfTravel(ctx, domain.ClassOfTravel(req.Class)); err != nil {
			return nil, err
		}
		return snapshotResult(deps)
	}
}

type historyRequest struct {
	Limit int `json:"limit"`
}

func historyRecentHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req historyRequest
		if len(payload) > 0 {
			if err := decodeRequest("history.recent", payload, &req); err != nil {
				return nil, err
			}
		}
		resp, err := loadHistory(ctx, deps.History, req.Limit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}
}
