package trace

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// startEchoServer mirrors the teacher's transport_test.go harness: an
// httptest server that upgrades to a WebSocket and hands every received
// text frame to recv.
func startEchoServer(t *testing.T, recv chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			recv <- string(msg)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	return u.String()
}

func TestStreamer_PushesEveryHookAsJSON(t *testing.T) {
	recv := make(chan string, 16)
	srv := startEchoServer(t, recv)

	s, err := Dial(wsURL(t, srv), nil)
	require.NoError(t, err)
	defer s.Close()

	s.DeclareVar("cpu_load", VarKindCPULoad)
	s.SetVar(1.5, "cpu_load", "H1", 0.75)
	s.Event(2.0, "H1", "state", "running")

	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, <-recv)
	}

	assert.Contains(t, got[0], `"hook":"declare_var"`)
	assert.Contains(t, got[0], `"name":"cpu_load"`)
	assert.Contains(t, got[1], `"hook":"set_var"`)
	assert.Contains(t, got[1], `"resource":"H1"`)
	assert.Contains(t, got[2], `"hook":"event"`)

	for _, g := range got {
		assert.True(t, strings.Contains(g, `"run_id":"`), "every event carries the streamer's run id")
	}
}

func TestStreamer_WriteFailureDropsConnectionWithoutPanicking(t *testing.T) {
	recv := make(chan string, 1)
	srv := startEchoServer(t, recv)
	s, err := Dial(wsURL(t, srv), nil)
	require.NoError(t, err)

	// Close the underlying connection behind the Streamer's back so the
	// next write fails.
	require.NoError(t, s.conn.Close())

	assert.NotPanics(t, func() {
		s.SetVar(0, "x", "H1", 1)
	})
	assert.Nil(t, s.conn, "a failed write drops the sink")
}

func TestNop_SatisfiesHooksAtZeroCost(t *testing.T) {
	var h Hooks = Nop{}
	assert.NotPanics(t, func() {
		h.DeclareVar("v", VarKindCustom)
		h.SetVar(0, "v", "r", 1)
		h.AddVar(0, "v", "r", 1)
		h.SubVar(0, "v", "r", 1)
		h.Event(0, "c", "t", "v")
	})
}
