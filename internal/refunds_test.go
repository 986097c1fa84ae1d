package internal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"windcave/entity"
	"windcave/services"
)

func TestOnTransition_Dispatch(t *testing.T) {
	tests := []struct {
		name        string
		event       services.TransitionEvent
		wantRefunds []string
		wantVoids   []string
	}{
		{
			name:        "paid to refunded",
			event:       services.TransitionEvent{TransactionId: "tx-1", FromState: entity.StatePaid, ToState: entity.StateRefunded},
			wantRefunds: []string{"tx-1"},
		},
		{
			name:        "partially paid to refunded",
			event:       services.TransitionEvent{TransactionId: "tx-2", FromState: entity.StatePartiallyPaid, ToState: entity.StateRefunded},
			wantRefunds: []string{"tx-2"},
		},
		{
			name:      "authorized to cancelled",
			event:     services.TransitionEvent{TransactionId: "tx-3", FromState: entity.StateAuthorized, ToState: entity.StateCancelled},
			wantVoids: []string{"tx-3"},
		},
		{
			name:  "pending to cancelled ignored",
			event: services.TransitionEvent{TransactionId: "tx-4", FromState: entity.StatePending, ToState: entity.StateCancelled},
		},
		{
			name:  "pending to paid ignored",
			event: services.TransitionEvent{TransactionId: "tx-5", FromState: entity.StatePending, ToState: entity.StatePaid},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payments := &mockPayments{
				refundResult: &entity.GatewayResult{Success: true},
			}
			subscriber := NewStatusSubscriber(payments)
			subscriber.SetLogger(&testLogger{})

			subscriber.OnTransition(context.Background(), tc.event)

			assert.Equal(t, tc.wantRefunds, payments.refundCalls)
			assert.Equal(t, tc.wantVoids, payments.voidCalls)
		})
	}
}

func TestOnTransition_FailuresNeverPropagate(t *testing.T) {
	payments := &mockPayments{refundErr: fmt.Errorf("gateway down")}
	subscriber := NewStatusSubscriber(payments)
	subscriber.SetLogger(&testLogger{})

	event := services.TransitionEvent{TransactionId: "tx-1", FromState: entity.StatePaid, ToState: entity.StateRefunded}
	// must not panic; the transition itself already happened
	subscriber.OnTransition(context.Background(), event)
	assert.Equal(t, []string{"tx-1"}, payments.refundCalls)
}

func TestOnTransition_DeclineLoggedOnly(t *testing.T) {
	payments := &mockPayments{
		refundResult: &entity.GatewayResult{Success: false, Message: "DECLINED"},
	}
	subscriber := NewStatusSubscriber(payments)
	subscriber.SetLogger(&testLogger{})

	event := services.TransitionEvent{TransactionId: "tx-1", FromState: entity.StateAuthorized, ToState: entity.StateCancelled}
	subscriber.OnTransition(context.Background(), event)
	assert.Equal(t, []string{"tx-1"}, payments.voidCalls)
}
