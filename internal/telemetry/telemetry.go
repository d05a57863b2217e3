// Package telemetry turns ledger operation callbacks into logs and metrics.
package telemetry

import (
	"context"

	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const metricsNamespace = "gameserver"

// ZapOperationLogger writes one structured entry per ledger operation.
type ZapOperationLogger struct {
	logger *zap.Logger
}

func NewZapOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapOperationLogger{logger: logger.Named("ledger")}
}

func (operationLogger *ZapOperationLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.Uint("account_id", entry.AccountID),
		zap.Int64("amount", entry.Amount),
		zap.Duration("duration", entry.Duration),
	}
	if entry.CounterpartyAccountID != 0 {
		fields = append(fields, zap.Uint("counterparty_account_id", entry.CounterpartyAccountID))
	}
	if entry.PlayerID != 0 {
		fields = append(fields, zap.Uint("player_id", entry.PlayerID))
	}
	if entry.Reason != ledger.DeclineNone {
		fields = append(fields, zap.String("reason", string(entry.Reason)))
	}
	switch entry.Status {
	case ledger.OperationStatusError:
		fields = append(fields, zap.Error(entry.Error))
		if cause := ledger.DiagnosticCause(entry.Error); cause != entry.Error {
			fields = append(fields, zap.NamedError("cause", cause))
		}
		operationLogger.logger.Warn("ledger operation failed", fields...)
	default:
		operationLogger.logger.Info("ledger operation", fields...)
	}
}

// Metrics counts ledger operations and the money they move.
type Metrics struct {
	operations *prometheus.CounterVec
	volume     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewMetrics registers the ledger collectors with registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by operation and status.",
		}, []string{"operation", "status"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ledger",
			Name:      "moved_amount_total",
			Help:      "Money moved by approved ledger operations.",
		}, []string{"operation"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, collector := range []prometheus.Collector{metrics.operations, metrics.volume, metrics.latency} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return metrics, nil
}

func (metrics *Metrics) LogOperation(_ context.Context, entry ledger.OperationLog) {
	metrics.operations.WithLabelValues(entry.Operation, entry.Status).Inc()
	metrics.latency.WithLabelValues(entry.Operation).Observe(entry.Duration.Seconds())
	if entry.Status == ledger.OperationStatusOK && entry.Amount > 0 {
		metrics.volume.WithLabelValues(entry.Operation).Add(float64(entry.Amount))
	}
}

// Fanout forwards every entry to each logger in order.
type Fanout []ledger.OperationLogger

func (loggers Fanout) LogOperation(ctx context.Context, entry ledger.OperationLog) {
	for _, logger := range loggers {
		if logger != nil {
			logger.LogOperation(ctx, entry)
		}
	}
}
