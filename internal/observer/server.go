package observer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/san-kum/phasecube/internal/bias"
	"github.com/san-kum/phasecube/internal/experiment"
	"github.com/san-kum/phasecube/internal/lattice"
	"github.com/san-kum/phasecube/internal/lens"
	"github.com/san-kum/phasecube/internal/swarm"
)

type Options struct {
	// Interval between ticks. Zero steps as fast as frames can be built.
	Interval time.Duration
	// Z is the initial slice depth.
	Z int
	// AllowRemote accepts connections from non-loopback addresses.
	AllowRemote bool
	// MaxTicks stops the loop after that many ticks; zero runs until ctx ends.
	MaxTicks int
}

// Server steps an experiment on its own goroutine and streams a Frame per
// tick to every websocket client. Client commands are queued and applied
// between ticks, so the swarm is only touched by the loop.
type Server struct {
	exp  *experiment.Experiment
	log  *slog.Logger
	opts Options
	hub  *Hub

	upgrader websocket.Upgrader
	commands chan Command

	mu     sync.RWMutex
	last   *Frame
	paused bool
	z      int
}

func NewServer(exp *experiment.Experiment, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		exp:      exp,
		log:      logger,
		opts:     opts,
		hub:      NewHub(16),
		commands: make(chan Command, 64),
		z:        lattice.Wrap(opts.Z, exp.Swarm().Size()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Handler serves /ws (frame stream) and /frame (latest frame as JSON).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.WSHandler())
	mux.HandleFunc("/frame", s.FrameHandler())
	return mux
}

// Latest returns the most recent frame, if any tick has run.
func (s *Server) Latest() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Frame{}, false
	}
	return *s.last, true
}

func (s *Server) FrameHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		f, ok := s.Latest()
		if !ok {
			http.Error(rw, "no frame yet", http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(f)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sw := s.exp.Swarm()
		hello := Hello{
			Type:            TypeHello,
			ProtocolVersion: Version,
			Size:            sw.Size(),
			Roles:           sw.Roles(),
			Tick:            s.tick(),
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(hello); err != nil {
			return
		}

		id, out := s.hub.Join()
		log := s.log.With("client", id, "remote", r.RemoteAddr)
		log.Info("observer connected")
		defer log.Info("observer disconnected")

		// Replies to this client share the write goroutine with frames.
		replies := make(chan []byte, 4)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				var b []byte
				var ok bool
				select {
				case <-ctx.Done():
					return
				case b, ok = <-out:
				case b, ok = <-replies:
				}
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			cmd, err := ParseCommand(msg)
			if err != nil {
				log.Debug("rejected command", "err", err)
				reply(replies, ErrorMsg{Type: TypeError, Message: err.Error()})
				continue
			}
			select {
			case s.commands <- cmd:
			default:
				reply(replies, ErrorMsg{Type: TypeError, Message: "server busy"})
			}
		}

		cancel()
		s.hub.Leave(id)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-writeDone:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func reply(ch chan<- []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case ch <- b:
	default:
	}
}

func (s *Server) tick() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return 0
	}
	return s.last.Tick + 1
}

// Run drives the tick loop until ctx ends or MaxTicks ticks have run.
func (s *Server) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.opts.Interval > 0 {
		t := time.NewTicker(s.opts.Interval)
		defer t.Stop()
		tick = t.C
	}

	ran := 0
	for s.opts.MaxTicks <= 0 || ran < s.opts.MaxTicks {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		s.drain()
		s.mu.RLock()
		paused := s.paused
		s.mu.RUnlock()
		if paused {
			if tick == nil {
				// Without a ticker a paused loop would spin.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case cmd := <-s.commands:
					s.apply(cmd)
				}
			}
			continue
		}

		rep := s.exp.Step()
		ran++
		if err := s.exp.Swarm().Validate(); err != nil {
			s.log.Error("invalid state", "tick", rep.Tick, "err", err)
			return experiment.SimError{Tick: rep.Tick, Message: "invalid state (NaN/Inf)", Err: err}
		}
		s.publish(rep)
	}
	return nil
}

func (s *Server) publish(rep swarm.Report) {
	s.mu.Lock()
	f := NewFrame(rep, s.exp.Swarm(), s.z)
	f.Paused = s.paused
	s.last = &f
	s.mu.Unlock()

	if err := s.hub.Broadcast(f); err != nil {
		s.log.Warn("broadcast failed", "tick", rep.Tick, "err", err)
	}
}

func (s *Server) drain() {
	for {
		select {
		case cmd := <-s.commands:
			s.apply(cmd)
		default:
			return
		}
	}
}

func (s *Server) apply(cmd Command) {
	sw := s.exp.Swarm()
	switch cmd.Type {
	case CmdSetWeights:
		w := lens.FromMap(cmd.Weights)
		sw.SetWeights(w)
		s.log.Info("lens weights set", "weights", w.Normalize())
	case CmdInject:
		sw.Inject(bias.Pulse{
			Center:   lattice.Coord{X: cmd.Center[0], Y: cmd.Center[1], Z: cmd.Center[2]},
			Radius:   cmd.Radius,
			Strength: cmd.Strength,
		})
		s.log.Debug("pulse queued", "center", cmd.Center)
	case CmdSlice:
		s.mu.Lock()
		s.z = lattice.Wrap(cmd.Z, sw.Size())
		s.mu.Unlock()
	case CmdPause, CmdResume:
		s.mu.Lock()
		s.paused = cmd.Type == CmdPause
		s.mu.Unlock()
		s.log.Info("observer loop", "paused", cmd.Type == CmdPause)
	}
}

func (s *Server) allowed(r *http.Request) bool {
	return s.opts.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
