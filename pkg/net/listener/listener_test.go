package listener_test

import (
	"testing"

	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/pkg/net/listener"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     listener.Config
		wantErr bool
	}{
		{name: "empty", cfg: listener.Config{}, wantErr: true},
		{name: "no port", cfg: listener.Config{Addr: "localhost"}, wantErr: true},
		{name: "valid", cfg: listener.Config{Addr: "localhost:3210"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewAndClose(t *testing.T) {
	l, err := listener.New(listener.Config{Addr: "127.0.0.1:0"}, log.Get())
	require.NoError(t, err)
	var closed bool
	l.AddCloseFunc(func() { closed = true })
	require.NoError(t, l.Close())
	require.True(t, closed)
}
