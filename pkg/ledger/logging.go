package ledger

import (
	"context"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation             string
	AccountID             uint
	CounterpartyAccountID uint
	PlayerID              uint
	Amount                int64
	Status                string
	Reason                DeclineReason
	Duration              time.Duration
	Error                 error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithAccountNumberGenerator replaces the random account number source.
func WithAccountNumberGenerator(generator AccountNumberGenerator) ServiceOption {
	return func(service *Service) {
		if generator != nil {
			service.accountNumbers = generator
		}
	}
}

// WithAccountNumberAttempts bounds account number generation.
func WithAccountNumberAttempts(attempts int) ServiceOption {
	return func(service *Service) {
		if attempts > 0 {
			service.accountNumberAttempts = attempts
		}
	}
}

// WithStaleRetries bounds how often a money movement is replayed after a
// concurrent modification of one of its accounts.
func WithStaleRetries(retries int) ServiceOption {
	return func(service *Service) {
		if retries > 0 {
			service.staleRetries = retries
		}
	}
}

// WithDefaultHistoryLimit sets the limit used when a history request asks for none.
func WithDefaultHistoryLimit(limit int) ServiceOption {
	return func(service *Service) {
		if limit > 0 && limit <= maxHistoryLimit {
			service.historyLimit = limit
		}
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	switch {
	case entry.Error != nil:
		entry.Status = OperationStatusError
	case entry.Reason != DeclineNone:
		entry.Status = OperationStatusDeclined
	default:
		entry.Status = OperationStatusOK
	}
	service.logger.LogOperation(ctx, entry)
}
