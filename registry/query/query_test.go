package query_test

import (
	"fmt"
	"testing"

	"github.com/plgd-dev/nmos-registry/registry/query"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/test"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, typ resource.Type, data []byte) *resource.Resource {
	r, err := resource.Parse(typ, data, test.Version)
	require.NoError(t, err)
	return r
}

func TestNewFilter(t *testing.T) {
	f, err := query.NewFilter("/senders", map[string]string{
		"label":              "cam1",
		"query.ids_only":     "true",
		"query.downgrade":    "v1.0",
		"paging.limit":       "10",
		"transport":          "urn:x-nmos:transport:rtp",
		"tags.location":      "studio 1",
		"query.unknown_flag": "x",
	})
	require.NoError(t, err)
	require.Equal(t, resource.Sender, f.Type)
	require.True(t, f.IDsOnly)
	require.Equal(t, []query.Constraint{
		{Path: "label", Value: "cam1"},
		{Path: "tags.location", Value: "studio 1"},
		{Path: "transport", Value: "urn:x-nmos:transport:rtp"},
	}, f.Constraints)

	_, err = query.NewFilter("/grains", nil)
	require.ErrorIs(t, err, resource.ErrInvalidBody)
	_, err = query.NewFilter("/senders", map[string]string{"query.ids_only": "maybe"})
	require.ErrorIs(t, err, resource.ErrInvalidBody)
}

func TestFilterMatch(t *testing.T) {
	sender := mustParse(t, resource.Sender, test.SenderBody("s1", "d1", "Camera 1"))
	receiver := mustParse(t, resource.Receiver, test.ReceiverBody("r1", "d1", "Monitor"))
	tests := []struct {
		name   string
		path   string
		params map[string]string
		r      *resource.Resource
		want   bool
	}{
		{name: "type only", path: "/senders", r: sender, want: true},
		{name: "other type", path: "/receivers", r: sender, want: false},
		{name: "case insensitive", path: "/senders", params: map[string]string{"label": "camera 1"}, r: sender, want: true},
		{name: "different label", path: "/senders", params: map[string]string{"label": "camera 2"}, r: sender, want: false},
		{name: "wildcard", path: "/senders", params: map[string]string{"label": "cam*"}, r: sender, want: true},
		{name: "array element", path: "/senders", params: map[string]string{"tags.location": "Studio 2"}, r: sender, want: true},
		{name: "array no element", path: "/senders", params: map[string]string{"tags.location": "studio 3"}, r: sender, want: false},
		{name: "nested array", path: "/receivers", params: map[string]string{"caps.media_types": "video/raw"}, r: receiver, want: true},
		{name: "absent attribute", path: "/senders", params: map[string]string{"missing": "x"}, r: sender, want: false},
		{name: "absent attribute empty constraint", path: "/senders", params: map[string]string{"missing": ""}, r: sender, want: true},
		{name: "null attribute", path: "/senders", params: map[string]string{"flow_id": "x"}, r: sender, want: false},
		{name: "boolean", path: "/receivers", params: map[string]string{"subscription.active": "False"}, r: receiver, want: true},
		{name: "object attribute", path: "/senders", params: map[string]string{"tags": "x"}, r: sender, want: false},
		{name: "all constraints", path: "/senders", params: map[string]string{"label": "camera 1", "device_id": "d2"}, r: sender, want: false},
		{name: "flags ignored", path: "/senders", params: map[string]string{"paging.since": "0", "query.rql": "eq(label,x)"}, r: sender, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := query.NewFilter(tt.path, tt.params)
			require.NoError(t, err)
			require.Equal(t, tt.want, f.Match(tt.r))
		})
	}
}

func TestFilterSpecialCharactersInPath(t *testing.T) {
	r := mustParse(t, resource.Node, []byte(`{"id":"n1","version":"0:0","label":"x","href":"h","hostname":"h","caps":{},"services":[],"tags":{"a*b":["v"]}}`))
	f, err := query.NewFilter("/nodes", map[string]string{"tags.a*b": "v"})
	require.NoError(t, err)
	require.True(t, f.Match(r))
}

func TestSelectAndPaging(t *testing.T) {
	var snapshot []*resource.Resource
	for i := 1; i <= 5; i++ {
		r := mustParse(t, resource.Sender, test.SenderBody(fmt.Sprintf("s%v", i), "d1", fmt.Sprintf("cam%v", i%2)))
		r.CreatedAt = uint64(i)
		snapshot = append(snapshot, r)
	}
	f, err := query.NewFilter("/senders", map[string]string{"label": "cam1"})
	require.NoError(t, err)
	matches := f.Select(snapshot)
	require.Len(t, matches, 3)

	p, err := query.ParsePaging(map[string]string{"paging.limit": "2"})
	require.NoError(t, err)
	page, info := p.Apply(matches)
	require.Len(t, page, 2)
	require.Equal(t, "s1", page[0].ID)
	require.Equal(t, "s3", page[1].ID)
	require.Equal(t, query.Page{Since: 0, Until: 3, Limit: 2}, info)

	p.Since = info.Until
	page, info = p.Apply(matches)
	require.Len(t, page, 1)
	require.Equal(t, "s5", page[0].ID)
	require.Equal(t, uint64(5), info.Until)

	p.Since = info.Until
	page, info = p.Apply(matches)
	require.Empty(t, page)
	require.Equal(t, uint64(5), info.Until)
}

func TestParsePaging(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]string
		want    query.Paging
		wantErr bool
	}{
		{name: "default", want: query.Paging{Limit: query.DefaultLimit}},
		{name: "since", params: map[string]string{"paging.since": "7"}, want: query.Paging{Since: 7, Limit: query.DefaultLimit}},
		{name: "max", params: map[string]string{"paging.limit": "5000"}, want: query.Paging{Limit: query.MaxLimit}},
		{name: "invalid limit", params: map[string]string{"paging.limit": "0"}, wantErr: true},
		{name: "invalid since", params: map[string]string{"paging.since": "yesterday"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := query.ParsePaging(tt.params)
			if tt.wantErr {
				require.ErrorIs(t, err, resource.ErrInvalidBody)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
