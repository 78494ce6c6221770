package registration

import (
	"testing"
	"time"

	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/stretchr/testify/require"
)

func TestHealthDeadline(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ttl := time.Second * 12
	sender, ok := resource.Sender.Kind()
	require.True(t, ok)

	tests := []struct {
		name string
		kind resource.Kind
		want time.Time
	}{
		{name: "tracked", kind: sender, want: now.Add(ttl)},
		{name: "exempt", kind: resource.Kind{Type: resource.Sender}, want: time.Time{}},
		{name: "unknown", kind: resource.Kind{}, want: time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, healthDeadline(tt.kind, now, ttl))
		})
	}
}

func TestRegisteredKindsAreHealthTracked(t *testing.T) {
	for _, typ := range resource.Types {
		kind, ok := typ.Kind()
		require.True(t, ok)
		require.True(t, kind.HealthTracked, typ)
	}
}
