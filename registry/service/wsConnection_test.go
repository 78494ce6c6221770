package service

import (
	"errors"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/broadcast"
	"github.com/plgd-dev/nmos-registry/registry/subscription"
	"github.com/stretchr/testify/require"
)

func TestWSConnectionSendIsBounded(t *testing.T) {
	c := newWSConnection("sub", nil, WebSocketConfig{QueueSize: 2}, log.Get())
	require.NotEmpty(t, c.ID())
	require.NoError(t, c.Send(&subscription.Grain{Sequence: 1}))
	require.NoError(t, c.Send(&subscription.Grain{Sequence: 2}))
	require.ErrorIs(t, c.Send(&subscription.Grain{Sequence: 3}), subscription.ErrConnectionFull)

	<-c.writeCh
	require.NoError(t, c.Send(&subscription.Grain{Sequence: 3}))

	c.Close(broadcast.ErrSlowConsumer)
	c.Close(subscription.ErrShutdown)
	require.ErrorIs(t, c.reason, broadcast.ErrSlowConsumer)
	require.ErrorIs(t, c.Send(&subscription.Grain{Sequence: 4}), subscription.ErrConnectionClosed)
}

func TestCloseCode(t *testing.T) {
	tests := []struct {
		reason error
		want   int
	}{
		{reason: subscription.ErrShutdown, want: websocket.CloseGoingAway},
		{reason: broadcast.ErrSlowConsumer, want: websocket.CloseTryAgainLater},
		{reason: subscription.ErrSubscriptionDeleted, want: websocket.CloseNormalClosure},
		{reason: errors.New("write failed"), want: websocket.CloseInternalServerErr},
	}
	for _, tt := range tests {
		t.Run(tt.reason.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, closeCode(tt.reason))
		})
	}
}
