package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"wanbingo.sim/internal/protocol"
	"wanbingo.sim/internal/sim/runner"
)

// Server streams run progress to websocket observers. It implements
// runner.Publisher; publishing never blocks on a slow client.
type Server struct {
	log zerolog.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu     sync.Mutex
	subs   map[string]*subscriber
	info   runner.RunInfo
	latest *runner.WeekLogEntry
	done   *protocol.DoneMsg

	weeksPublished atomic.Uint64
	dropped        atomic.Uint64
}

type subscriber struct {
	out    chan []byte
	scores bool
}

func NewServer(logger zerolog.Logger) *Server {
	return &Server{
		log:  logger,
		subs: map[string]*subscriber{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// SetRun records the run being streamed, for bootstrap.
func (s *Server) SetRun(info runner.RunInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

func (s *Server) PublishWeek(e runner.WeekLogEntry) {
	s.weeksPublished.Add(1)
	var plain, full []byte
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &e
	for _, sub := range s.subs {
		var b []byte
		if sub.scores {
			if full == nil {
				full, _ = json.Marshal(protocol.NewWeekMsg(e, true))
			}
			b = full
		} else {
			if plain == nil {
				plain, _ = json.Marshal(protocol.NewWeekMsg(e, false))
			}
			b = plain
		}
		select {
		case sub.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) PublishDone(rep runner.Report, runErr error) {
	msg := protocol.NewDoneMsg(rep, runErr)
	b, _ := json.Marshal(msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = &msg
	for _, sub := range s.subs {
		select {
		case sub.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) join(sid string, sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sid] = sub
	if s.done != nil {
		b, _ := json.Marshal(s.done)
		sub.out <- b
	}
}

func (s *Server) leave(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sid)
}

func (s *Server) setScores(sid string, scores bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[sid]; ok {
		sub.scores = scores
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		s.mu.Lock()
		resp := protocol.BootstrapResponse{
			ProtocolVersion: protocol.Version,
			RunID:           s.info.RunID,
			WeeksPlanned:    s.info.Tuning.Weeks,
			TilesDigest:     s.info.TilesDigest,
			Done:            s.done,
		}
		if s.latest != nil {
			m := protocol.NewWeekMsg(*s.latest, false)
			resp.Latest = &m
		}
		s.mu.Unlock()

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 256)
		s.join(sid, &subscriber{out: out, scores: sub.IncludeScores})
		defer s.leave(sid)
		s.log.Debug().Str("session", sid).Bool("scores", sub.IncludeScores).Msg("observer joined")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := parseSubscribe(msg); ok {
				s.setScores(sid, sub.IncludeScores)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	return sub, sub.Type == protocol.TypeSubscribe && sub.ProtocolVersion == protocol.Version
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
