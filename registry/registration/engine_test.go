package registration_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/registration"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/store"
	"github.com/plgd-dev/nmos-registry/registry/test"
	"github.com/stretchr/testify/require"
)

type settings struct {
	lenient bool
}

func (s *settings) Lenient() bool {
	return s.lenient
}

func newEngine(lenient bool) (*registration.Engine, *store.Store, *clock.Mock) {
	s := store.New()
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	return registration.New(s, registration.DefaultConfig(), clk, &settings{lenient: lenient}, log.Get()), s, clk
}

func registerNodeAndDevice(t *testing.T, e *registration.Engine) {
	_, err := e.Register(resource.Node, test.NodeBody("n1", "node"), test.Version)
	require.NoError(t, err)
	_, err = e.Register(resource.Device, test.DeviceBody("d1", "n1", "device"), test.Version)
	require.NoError(t, err)
}

func TestRegisterCreatesThenUpdates(t *testing.T) {
	e, _, _ := newEngine(false)
	registerNodeAndDevice(t, e)

	res, err := e.Register(resource.Sender, test.SenderBody("s1", "d1", "cam1"), test.Version)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, uint64(1), res.Resource.Version)

	res, err = e.Register(resource.Sender, test.SenderBody("s1", "d1", "cam2"), test.Version)
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, uint64(2), res.Resource.Version)

	res, err = e.Register(resource.Sender, test.SenderBody("s1", "d1", "cam3"), test.Version)
	require.NoError(t, err)
	require.Equal(t, uint64(3), res.Resource.Version)

	got, err := e.Get(resource.Sender, "s1")
	require.NoError(t, err)
	require.Equal(t, "cam3", got.Label())
	require.Equal(t, uint64(3), got.Version)
}

func TestRegisterConflictOnTypeChange(t *testing.T) {
	e, _, _ := newEngine(true)
	_, err := e.Register(resource.Sender, test.SenderBody("x1", "d1", "sender"), test.Version)
	require.NoError(t, err)
	_, err = e.Register(resource.Receiver, test.ReceiverBody("x1", "d1", "receiver"), test.Version)
	require.ErrorIs(t, err, resource.ErrConflict)
}

func TestRegisterInvalidBody(t *testing.T) {
	e, s, _ := newEngine(false)
	_, err := e.Register(resource.Node, []byte(`{"id":"n1"}`), test.Version)
	require.ErrorIs(t, err, resource.ErrInvalidBody)
	s.Read(func(tx *store.Txn) {
		require.Equal(t, 0, tx.Len())
	})
}

func TestRegisterMissingParent(t *testing.T) {
	tests := []struct {
		name    string
		lenient bool
		wantErr error
	}{
		{name: "strict", lenient: false, wantErr: resource.ErrMissingParent},
		{name: "lenient", lenient: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newEngine(tt.lenient)
			_, err := e.Register(resource.Device, test.DeviceBody("d1", "absent", "device"), test.Version)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				_, err = e.Get(resource.Device, "d1")
				require.ErrorIs(t, err, resource.ErrNotFound)
				return
			}
			require.NoError(t, err)
			_, err = e.Get(resource.Device, "d1")
			require.NoError(t, err)
		})
	}
}

// Parents are checked when a resource is created only: an update pointing to
// an unknown parent is accepted.
func TestUpdateDoesNotRecheckParents(t *testing.T) {
	e, _, _ := newEngine(false)
	registerNodeAndDevice(t, e)
	res, err := e.Register(resource.Device, test.DeviceBody("d1", "absent", "device"), test.Version)
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, []string{"absent"}, res.Resource.ParentRefs)
}

func TestUpdate(t *testing.T) {
	e, _, _ := newEngine(false)
	registerNodeAndDevice(t, e)
	updated, err := e.Update(resource.Device, "d1", test.DeviceBody("d1", "n1", "renamed"), test.Version)
	require.NoError(t, err)
	require.Equal(t, uint64(2), updated.Version)
	_, err = e.Update(resource.Device, "d2", test.DeviceBody("d2", "n1", "renamed"), test.Version)
	require.ErrorIs(t, err, resource.ErrNotFound)
	_, err = e.Update(resource.Device, "d2", test.DeviceBody("d1", "n1", "renamed"), test.Version)
	require.ErrorIs(t, err, resource.ErrInvalidBody)
	_, err = e.Update(resource.Node, "d1", test.NodeBody("d1", "renamed"), test.Version)
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestHeartbeatRefreshesDeadlineOnly(t *testing.T) {
	e, _, clk := newEngine(false)
	registerNodeAndDevice(t, e)
	before, err := e.Get(resource.Node, "n1")
	require.NoError(t, err)
	beforeDevice, err := e.Get(resource.Device, "d1")
	require.NoError(t, err)

	clk.Add(time.Second * 10)
	r, err := e.Heartbeat("n1")
	require.NoError(t, err)
	require.Equal(t, before.Version, r.Version)
	require.Equal(t, before.Data, r.Data)
	require.Equal(t, before.HealthDeadline.Add(time.Second*10), r.HealthDeadline)

	device, err := e.Get(resource.Device, "d1")
	require.NoError(t, err)
	require.Equal(t, beforeDevice.Version, device.Version)
	require.Equal(t, r.HealthDeadline, device.HealthDeadline)

	health, err := e.Health("n1")
	require.NoError(t, err)
	require.Equal(t, clk.Now(), health)
}

func TestHeartbeatUnknownOrExpired(t *testing.T) {
	e, _, clk := newEngine(false)
	_, err := e.Heartbeat("n1")
	require.ErrorIs(t, err, resource.ErrNotFound)

	registerNodeAndDevice(t, e)
	cfg := e.Config()
	clk.Add(cfg.HealthTTL + cfg.HeartbeatInterval + time.Millisecond)
	_, err = e.Heartbeat("n1")
	require.ErrorIs(t, err, resource.ErrNotFound)
	_, err = e.Get(resource.Node, "n1")
	require.ErrorIs(t, err, resource.ErrNotFound)
	_, err = e.Health("n1")
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestHeartbeatWithinGrace(t *testing.T) {
	e, _, clk := newEngine(false)
	registerNodeAndDevice(t, e)
	cfg := e.Config()
	clk.Add(cfg.HealthTTL + cfg.HeartbeatInterval)
	_, err := e.Heartbeat("n1")
	require.NoError(t, err)
}

func TestDeleteDoesNotCascade(t *testing.T) {
	e, _, _ := newEngine(false)
	registerNodeAndDevice(t, e)
	_, err := e.Delete(resource.Device, "n1")
	require.ErrorIs(t, err, resource.ErrNotFound)
	removed, err := e.Delete(resource.Node, "n1")
	require.NoError(t, err)
	require.Equal(t, "n1", removed.ID)
	_, err = e.Get(resource.Device, "d1")
	require.NoError(t, err)
	_, err = e.Delete(resource.Node, "n1")
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestExpire(t *testing.T) {
	e, _, clk := newEngine(false)
	registerNodeAndDevice(t, e)
	cfg := e.Config()

	require.Empty(t, e.ExpiryCandidates(clk.Now()))
	clk.Add(cfg.HealthTTL + cfg.HeartbeatInterval + time.Second)
	now := clk.Now()
	require.ElementsMatch(t, []string{"n1", "d1"}, e.ExpiryCandidates(now))

	removed, ok := e.Expire("d1", now)
	require.True(t, ok)
	require.Equal(t, "d1", removed.ID)
	_, ok = e.Expire("d1", now)
	require.False(t, ok)
}

// A resource renewed between the scan and the removal is kept.
func TestExpireRechecksDeadline(t *testing.T) {
	e, _, clk := newEngine(false)
	_, err := e.Register(resource.Node, test.NodeBody("n1", "node"), test.Version)
	require.NoError(t, err)
	cfg := e.Config()
	clk.Add(cfg.HealthTTL + cfg.HeartbeatInterval + time.Second)
	scanTime := clk.Now()
	require.Equal(t, []string{"n1"}, e.ExpiryCandidates(scanTime))

	_, err = e.Register(resource.Node, test.NodeBody("n1", "node"), test.Version)
	require.NoError(t, err)

	_, ok := e.Expire("n1", scanTime)
	require.False(t, ok)
	_, err = e.Get(resource.Node, "n1")
	require.NoError(t, err)
}

func TestListAndGetLiveSkipExpired(t *testing.T) {
	e, _, clk := newEngine(false)
	registerNodeAndDevice(t, e)
	_, err := e.Register(resource.Node, test.NodeBody("n2", "node 2"), test.Version)
	require.NoError(t, err)
	nodes := e.List(resource.Node)
	require.Len(t, nodes, 2)
	require.Equal(t, "n1", nodes[0].ID)
	require.Equal(t, "n2", nodes[1].ID)

	cfg := e.Config()
	clk.Add(cfg.HealthTTL)
	_, err = e.Heartbeat("n2")
	require.NoError(t, err)
	clk.Add(cfg.HeartbeatInterval + time.Second)

	nodes = e.List(resource.Node)
	require.Len(t, nodes, 1)
	require.Equal(t, "n2", nodes[0].ID)
	_, err = e.GetLive(resource.Node, "n1")
	require.ErrorIs(t, err, resource.ErrNotFound)
	_, err = e.Get(resource.Node, "n1")
	require.NoError(t, err)
	_, err = e.GetLive(resource.Node, "n2")
	require.NoError(t, err)
}

func TestConcurrentRegistrations(t *testing.T) {
	const n = 50
	e, s, _ := newEngine(true)
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := e.Register(resource.Sender, test.SenderBody(fmt.Sprintf("s%v", i), "d1", "sender"), test.Version)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	s.Read(func(tx *store.Txn) {
		snapshot := tx.Snapshot(resource.Sender)
		require.Len(t, snapshot, n)
		ids := make(map[string]int)
		for _, r := range snapshot {
			ids[r.ID]++
		}
		for i := 0; i < n; i++ {
			require.Equal(t, 1, ids[fmt.Sprintf("s%v", i)])
		}
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := registration.DefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.HealthTTL = 0
	require.Error(t, cfg.Validate())
	cfg = registration.DefaultConfig()
	cfg.HeartbeatInterval = -time.Second
	require.Error(t, cfg.Validate())
}
