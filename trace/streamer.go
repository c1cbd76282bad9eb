package trace

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nmxmxh/simcore/internal/klog"
)

// event is the wire shape pushed to a connected dashboard: one Paje
// hook call, tagged with the run id so a dashboard consuming several
// concurrent runs can demultiplex them.
type event struct {
	RunID    string  `json:"run_id"`
	Hook     string  `json:"hook"`
	Time     float64 `json:"time,omitempty"`
	Name     string  `json:"name,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	Resource string  `json:"resource,omitempty"`
	Value    float64 `json:"value,omitempty"`
	ValueStr string  `json:"value_str,omitempty"`
	Container string `json:"container,omitempty"`
	Type     string  `json:"type,omitempty"`
}

// Streamer is an optional Hooks sink that pushes every call to a
// connected WebSocket dashboard, the way the teacher's
// WebSocketConnection (kernel/core/mesh/transport/transport_native.go)
// wraps a single *websocket.Conn behind a mutex and a byte counter.
// Every event batch is tagged with a fresh google/uuid run id so a
// dashboard can tell two simulation runs streamed to the same endpoint
// apart, per SPEC_FULL.md's domain-stack wiring for these two
// dependencies.
type Streamer struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	runID    string
	log      *klog.Logger
	messages uint64
}

// Dial connects to a WebSocket endpoint (a dashboard) and returns a
// ready Streamer. The caller owns calling Close when the run ends.
func Dial(url string, log *klog.Logger) (*Streamer, error) {
	if log == nil {
		log = klog.DefaultLogger("trace")
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &Streamer{conn: conn, runID: uuid.New().String(), log: log}, nil
}

func (s *Streamer) send(e event) {
	e.RunID = s.runID
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		s.log.Error("trace: failed to encode event", klog.Err(err))
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.log.Warn("trace: write failed, dropping sink", klog.Err(err))
		s.conn = nil
		return
	}
	s.messages++
}

func (s *Streamer) DeclareVar(name string, kind VarKind) {
	s.send(event{Hook: "declare_var", Name: name, Kind: kind.String()})
}

func (s *Streamer) SetVar(t float64, varName, resource string, value float64) {
	s.send(event{Hook: "set_var", Time: t, Name: varName, Resource: resource, Value: value})
}

func (s *Streamer) AddVar(t float64, varName, resource string, value float64) {
	s.send(event{Hook: "add_var", Time: t, Name: varName, Resource: resource, Value: value})
}

func (s *Streamer) SubVar(t float64, varName, resource string, value float64) {
	s.send(event{Hook: "sub_var", Time: t, Name: varName, Resource: resource, Value: value})
}

func (s *Streamer) Event(t float64, container, typ, value string) {
	s.send(event{Hook: "event", Time: t, Container: container, Type: typ, ValueStr: value})
}

// Close shuts down the underlying connection. Safe to call more than
// once.
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

var _ Hooks = (*Streamer)(nil)
