package portscan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentify(t *testing.T) {
	cases := []struct {
		name   string
		port   uint16
		banner string
		want   string
	}{
		{"port table", 22, "", "ssh"},
		{"port table http", 80, "", "http"},
		{"banner confirms", 22, "SSH-2.0-OpenSSH_9.6", "ssh"},
		{"banner overrides port", 8080, "SSH-2.0-dropbear", "ssh"},
		{"smtp greeting", 2525, "220 mail.example.com ESMTP Postfix", "smtp"},
		{"ftp greeting", 2121, "220 ProFTPD Server ready", "ftp"},
		{"case insensitive", 6380, "-ERR unknown command", "redis"},
		{"iana fallback", 179, "", "bgp"},
		{"unknown banner falls back to port", 3306, "\x0a5.7.44", "mysql"},
		{"nothing matches", 40001, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Identify(tc.port, tc.banner))
		})
	}
}

func TestState_Text(t *testing.T) {
	for _, s := range []State{StateOpen, StateClosed, StateFiltered} {
		b, err := s.MarshalText()
		require.NoError(t, err)

		var got State
		require.NoError(t, got.UnmarshalText(b))
		require.Equal(t, s, got)
	}

	_, err := State(42).MarshalText()
	require.Error(t, err)
	require.Equal(t, "State(42)", State(42).String())

	var s State
	require.Error(t, s.UnmarshalText([]byte("half-open")))

	b, err := json.Marshal(PortResult{Port: 22, State: StateOpen})
	require.NoError(t, err)
	require.JSONEq(t, `{"port":22,"state":"open","latency":0}`, string(b))
}

func TestSummary_Visible(t *testing.T) {
	sum := Summary{
		Open: 1, Closed: 1, Filtered: 1,
		Results: []PortResult{
			{Port: 22, State: StateOpen},
			{Port: 80, State: StateClosed},
			{Port: 9999, State: StateFiltered},
		},
	}
	require.Len(t, sum.Visible(false, false), 1)
	require.Len(t, sum.Visible(false, true), 2)
	require.Len(t, sum.Visible(true, false), 2)
	require.Len(t, sum.Visible(true, true), 3)
	require.Equal(t, []uint16{22}, sum.OpenPorts())
}
