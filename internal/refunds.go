package internal

import (
	"context"
	"fmt"

	"windcave/entity"
	"windcave/services"
)

// StatusSubscriber reacts to payment state transitions driven by the order
// store's own state machine. Gateway failures are logged and swallowed: the
// state transition must never be blocked, and there is no automatic retry.
// A failed refund or void needs operator follow-up.
type StatusSubscriber struct {
	payments services.Payments
	logger   services.LogHandler
}

func NewStatusSubscriber(payments services.Payments) *StatusSubscriber {
	return &StatusSubscriber{payments: payments}
}

func (s *StatusSubscriber) SetLogger(logger services.LogHandler) {
	s.logger = logger
}

// OnTransition dispatches refund and void on the transitions that require
// them; every other transition is ignored.
func (s *StatusSubscriber) OnTransition(ctx context.Context, event services.TransitionEvent) {
	switch {
	case event.ToState == entity.StateRefunded &&
		(event.FromState == entity.StatePaid || event.FromState == entity.StatePartiallyPaid):
		s.refund(ctx, event.TransactionId)
	case event.FromState == entity.StateAuthorized && event.ToState == entity.StateCancelled:
		s.void(ctx, event.TransactionId)
	}
}

func (s *StatusSubscriber) refund(ctx context.Context, transactionId string) {
	s.logger.Info(fmt.Sprintf("processing refund for transaction %s", transactionId))

	result, err := s.payments.Refund(ctx, transactionId)
	if err != nil {
		s.logger.Error(fmt.Sprintf("refund transaction %s", transactionId), err)
		return
	}
	if !result.Success {
		s.logger.Error(fmt.Sprintf("refund transaction %s declined", transactionId), fmt.Errorf("%s", result.Message))
	}
}

func (s *StatusSubscriber) void(ctx context.Context, transactionId string) {
	s.logger.Info(fmt.Sprintf("processing void for transaction %s", transactionId))

	result, err := s.payments.Void(ctx, transactionId)
	if err != nil {
		s.logger.Error(fmt.Sprintf("void transaction %s", transactionId), err)
		return
	}
	if !result.Success {
		s.logger.Error(fmt.Sprintf("void transaction %s declined", transactionId), fmt.Errorf("%s", result.Message))
	}
}
