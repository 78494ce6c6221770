package service_test

import (
	"net/http"
	"net/url"
	"testing"

	kitNetHttp "github.com/plgd-dev/nmos-registry/pkg/net/http"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/service"
	"github.com/plgd-dev/nmos-registry/registry/test"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func logURL(s *service.Service, path string) string {
	return "http://" + s.Addr("logging") + path
}

func TestLoggingAPI(t *testing.T) {
	s, _, tearDown := test.New(t, test.MakeConfig(t))
	defer tearDown()

	resp := do(t, http.MethodGet, logURL(s, "/log/"), nil, nil)
	require.Equal(t, http.StatusOK, resp.code)
	require.JSONEq(t, `["events/"]`, string(resp.body))

	params := url.Values{}
	params.Set("message", "registry node*serves*")
	params.Set("level", "0")
	resp = do(t, http.MethodGet, logURL(s, "/log/events?"+params.Encode()), nil, nil)
	require.Equal(t, http.StatusOK, resp.code, string(resp.body))
	events := gjson.ParseBytes(resp.body).Array()
	require.Len(t, events, 1)
	require.Equal(t, "info", events[0].Get("level_name").String())
	require.Equal(t, "100", resp.header.Get(kitNetHttp.PagingLimitHeaderKey))

	id := events[0].Get("id").String()
	resp = do(t, http.MethodGet, logURL(s, "/log/events/"+id), nil, nil)
	require.Equal(t, http.StatusOK, resp.code, string(resp.body))
	require.Equal(t, id, gjson.GetBytes(resp.body, "id").String())

	resp = do(t, http.MethodGet, logURL(s, "/log/events/0"), nil, nil)
	require.Equal(t, http.StatusNotFound, resp.code)

	resp = do(t, http.MethodGet, logURL(s, "/log/events?paging.limit=x"), nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.code)

	resp = do(t, http.MethodGet, logURL(s, "/log/events?message=no+such+message"), nil, nil)
	require.Equal(t, http.StatusOK, resp.code)
	require.JSONEq(t, `[]`, string(resp.body))
}

func TestLoggingAPIRecordsRuntimeLevel(t *testing.T) {
	s, _, tearDown := test.New(t, test.MakeConfig(t))
	defer tearDown()
	defer log.Get().SetSeverity(log.SeverityInfo)

	resp := do(t, http.MethodPatch, "http://"+s.Addr("settings")+"/settings/all", []byte(`{"logging_level":-40}`), nil)
	require.Equal(t, http.StatusOK, resp.code, string(resp.body))

	resp = register(t, s, "node", test.NodeBody("n1", "node 1"))
	require.Equal(t, http.StatusCreated, resp.code, string(resp.body))
	resp = do(t, http.MethodGet, logURL(s, "/log/events?level_name=debug&message=registered+node*"), nil, nil)
	require.Equal(t, http.StatusOK, resp.code)
	require.Len(t, gjson.ParseBytes(resp.body).Array(), 1)
}
