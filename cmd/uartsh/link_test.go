package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePositiveInt(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"57600", 57600, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"banana", 0, true},
		{"", 0, true},
	} {
		got, err := parsePositiveInt(tc.in)
		if tc.wantErr {
			require.Errorf(t, err, "parsePositiveInt(%q)", tc.in)
			continue
		}
		require.NoErrorf(t, err, "parsePositiveInt(%q)", tc.in)
		require.Equal(t, tc.want, got)
	}
}

func TestTimeoutArg(t *testing.T) {
	d, err := timeoutArg(nil, 0)
	require.NoError(t, err)
	require.Equal(t, defaultReadTimeout, d)

	// An index past the supplied args falls back to the default.
	d, err = timeoutArg([]string{"2"}, 1)
	require.NoError(t, err)
	require.Equal(t, defaultReadTimeout, d)

	d, err = timeoutArg([]string{"250"}, 0)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, d)

	_, err = timeoutArg([]string{"soon"}, 0)
	require.ErrorContains(t, err, "invalid TIMEOUT_MS")
}
