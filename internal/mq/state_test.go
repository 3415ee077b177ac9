package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from       State
		event      Event
		wantState  State
		wantAction Action
	}{
		{StateDisconnected, EventStart, StateConnecting, ActionDial},
		{StateDisconnected, EventRetryElapsed, StateConnecting, ActionDial},
		{StateConnecting, EventConnectFailed, StateDisconnected, ActionWait},
		{StateConnecting, EventTopologyReady, StateBound, ActionConsume},
		{StateBound, EventConsumeStarted, StateConsuming, ActionProcess},
		{StateBound, EventConsumeFailed, StateBound, ActionWait},
		{StateBound, EventRetryElapsed, StateBound, ActionConsume},
		{StateBound, EventChannelClosed, StateDisconnected, ActionShutdown},
		{StateConsuming, EventConsumeFailed, StateBound, ActionConsume},
		{StateConsuming, EventChannelClosed, StateDisconnected, ActionShutdown},

		// Отмена из любого состояния
		{StateDisconnected, EventCancelled, StateDisconnected, ActionStop},
		{StateConsuming, EventCancelled, StateDisconnected, ActionStop},

		// Неопределённые переходы
		{StateDisconnected, EventConsumeStarted, StateDisconnected, ActionNone},
		{StateConsuming, EventTopologyReady, StateConsuming, ActionNone},
		{StateConnecting, EventChannelClosed, StateConnecting, ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.event.String(), func(t *testing.T) {
			state, action := Next(tt.from, tt.event)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantAction, action)
		})
	}
}

func TestNext_ConsumingNeverReconnects(t *testing.T) {
	// После начала потребления соединение не пересоздаётся
	for _, e := range []Event{EventConsumeFailed, EventChannelClosed, EventRetryElapsed} {
		_, action := Next(StateConsuming, e)
		assert.NotEqual(t, ActionDial, action, e.String())
	}
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "consuming", StateConsuming.String())
	assert.Equal(t, "dial", ActionDial.String())
	assert.Equal(t, "channel_closed", EventChannelClosed.String())
}
