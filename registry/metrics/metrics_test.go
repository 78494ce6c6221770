package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/plgd-dev/nmos-registry/registry/metrics"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/store"
	"github.com/plgd-dev/nmos-registry/registry/test"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStoreObserver(t *testing.T) {
	s := store.New()
	s.AddObserver(metrics.StoreObserver{})
	before := testutil.ToFloat64(metrics.Resources.WithLabelValues("receiver"))
	created := testutil.ToFloat64(metrics.Mutations.WithLabelValues("receiver", "created"))

	r, err := resource.Parse(resource.Receiver, test.ReceiverBody("r1", "d1", "monitor"), test.Version)
	require.NoError(t, err)
	require.NoError(t, s.Mutate(func(tx *store.Txn) error {
		_, err := tx.Insert(r)
		return err
	}))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.Resources.WithLabelValues("receiver")))
	require.Equal(t, created+1, testutil.ToFloat64(metrics.Mutations.WithLabelValues("receiver", "created")))

	require.NoError(t, s.Mutate(func(tx *store.Txn) error {
		_, err := tx.Remove("r1")
		return err
	}))
	require.Equal(t, before, testutil.ToFloat64(metrics.Resources.WithLabelValues("receiver")))
}

func TestHandler(t *testing.T) {
	metrics.Grains.Inc()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "nmos_registry_grains_total")
}
