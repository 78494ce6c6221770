package time

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatParseVersion(t *testing.T) {
	ts := time.Unix(1700000000, 123)
	v := FormatVersion(ts)
	require.Equal(t, "1700000000:123", v)
	got, err := ParseVersion(v)
	require.NoError(t, err)
	require.True(t, ts.Equal(got))

	require.Equal(t, "0:0", FormatVersion(time.Time{}))
	got, err = ParseVersion("0:0")
	require.NoError(t, err)
	require.True(t, got.IsZero())
}

func TestParseVersionInvalid(t *testing.T) {
	for _, v := range []string{"", "1", "a:1", "1:b", "-1:0", "1:1000000000"} {
		_, err := ParseVersion(v)
		require.Error(t, err, v)
	}
}

func TestUnixNano(t *testing.T) {
	require.Equal(t, int64(0), UnixNano(time.Time{}))
	require.Equal(t, int64(5), UnixNano(time.Unix(0, 5)))
}
