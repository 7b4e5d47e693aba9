// Package server hosts the regulator's center-facing TCP endpoint and the
// local admin API. A single telemetry session is accepted at a time; frames
// from the center are dispatched to protocol handlers and spontaneous
// reports are queued on an ordered writer so acknowledgements always leave
// before the data they confirm.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/reguctl/internal/bus"
	"github.com/danmuck/reguctl/internal/config"
	"github.com/danmuck/reguctl/internal/journal"
	"github.com/danmuck/reguctl/internal/observability"
	"github.com/danmuck/reguctl/internal/regulator"
	"github.com/danmuck/reguctl/internal/report"
	"github.com/danmuck/reguctl/internal/une"
)

// ErrSessionBusy reports that a center session is already established.
var ErrSessionBusy = errors.New("server: center session already established")

const (
	tickInterval      = time.Second
	blinkInterval     = 500 * time.Millisecond
	broadcastInterval = 2 * time.Second
	scheduleInterval  = time.Minute

	writeQueueDepth = 64
	readBufferSize  = 512
)

// ServiceConfig carries the runtime settings for a regulator service.
type ServiceConfig struct {
	Name           string
	ListenAddr     string
	AdminAddr      string
	AdminToken     string
	CORSOrigins    []string
	StrictChecksum bool
	JournalPath    string
	WriteTimeout   time.Duration
}

// DefaultServiceConfig returns the baseline service settings.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:         "reguctl",
		ListenAddr:   ":19000",
		AdminAddr:    ":9180",
		JournalPath:  "reguctl.db",
		WriteTimeout: 10 * time.Second,
	}
}

// Service runs one virtual regulator: its signal state, the telemetry
// endpoint toward the center and the admin HTTP surface.
type Service struct {
	cfg     ServiceConfig
	inst    config.Installation
	state   *regulator.State
	bus     *bus.Bus
	jrnl    *journal.Journal
	started time.Time

	handlers map[handlerKey]handlerFunc
	events   chan bus.Event
	inbound  chan inboundMsg

	sessionMu sync.Mutex
	session   *session
}

// inboundMsg carries one scanner token from a session reader to the
// protocol loop.
type inboundMsg struct {
	sess *session
	tok  une.Token
}

// NewService wires a service from its configuration and installation.
func NewService(cfg ServiceConfig, inst config.Installation) (*Service, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "reguctl"
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = ":19000"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	b := bus.New()
	state, err := regulator.NewState(cfg.Name, inst, b)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:     cfg,
		inst:    inst,
		state:   state,
		bus:     b,
		started: time.Now(),
		events:  make(chan bus.Event, 128),
		inbound: make(chan inboundMsg, 64),
	}
	svc.registerHandlers()

	if err := b.Subscribe("service", svc.events); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.JournalPath) != "" {
		jrnl, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		svc.jrnl = jrnl
	}
	return svc, nil
}

// State exposes the regulator state owned by the service.
func (s *Service) State() *regulator.State { return s.state }

// Run serves telemetry and admin traffic until a signal or a fatal error.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if s.jrnl != nil {
		defer s.jrnl.Close()
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	log.Info().
		Str("regulator", s.cfg.Name).
		Str("listen_addr", ln.Addr().String()).
		Str("admin_addr", s.cfg.AdminAddr).
		Msg("service_start")

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve(ctx, ln) }()

	loopErr := make(chan error, 1)
	go func() { loopErr <- s.loop(ctx) }()

	adminErr := make(chan error, 1)
	if strings.TrimSpace(s.cfg.AdminAddr) != "" {
		go func() { adminErr <- s.serveAdmin(ctx) }()
	}

	select {
	case err := <-serveErr:
		stop()
		return err
	case err := <-loopErr:
		stop()
		return err
	case err := <-adminErr:
		stop()
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

// Serve accepts center connections on ln until ctx is cancelled. Only one
// session is admitted; extra connections are refused and closed.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	go func() {
		<-ctx.Done()
		s.closeCurrentSession()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// loop is the protocol brain. It owns the service clocks, consumes the
// tokens the session reader feeds it and turns regulator bus events into
// spontaneous reports. Running handlers and event fan-out on one
// goroutine keeps wire order deterministic: the acknowledgement and echo
// of an order are always queued before the burst the order triggered.
func (s *Service) loop(ctx context.Context) error {
	tick := time.NewTicker(tickInterval)
	defer tick.Stop()
	blink := time.NewTicker(blinkInterval)
	defer blink.Stop()
	broadcast := time.NewTicker(broadcastInterval)
	defer broadcast.Stop()
	schedule := time.NewTicker(scheduleInterval)
	defer schedule.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			s.state.Tick()
		case <-blink.C:
			s.state.ToggleBlink()
		case <-broadcast.C:
			s.broadcastGroupState()
		case <-schedule.C:
			s.state.ApplySchedule(time.Now())
		case msg := <-s.inbound:
			s.handleToken(msg.sess, msg.tok)
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

func (s *Service) broadcastGroupState() {
	sess := s.currentSession()
	if sess == nil {
		return
	}
	snap := s.state.Snapshot()
	s.sendFrame(sess, report.GroupState(snap))
}

// handleEvent turns regulator bus events into wire traffic and journal
// entries. Phase changes push the phase report plus fresh group states;
// plan and mode changes push the full status burst.
func (s *Service) handleEvent(ev bus.Event) {
	sess := s.currentSession()
	switch ev.Kind {
	case bus.KindPhaseChanged:
		observability.RecordPhaseChange(s.cfg.Name, ev.Plan)
		s.journalEvent(sessionID(sess), "phase_changed", fmt.Sprintf("phase=%d plan=%d", ev.Phase, ev.Plan))
		if sess != nil {
			snap := s.state.Snapshot()
			s.sendFrame(sess, report.PhaseChange(snap.Phase))
			s.sendFrame(sess, report.GroupState(snap))
		}
	case bus.KindPlanChanged:
		s.journalEvent(sessionID(sess), string(ev.Kind), fmt.Sprintf("plan=%d", ev.Plan))
		if sess != nil {
			s.sendBurst(sess)
		}
	case bus.KindModeChanged:
		s.journalEvent(sessionID(sess), string(ev.Kind), fmt.Sprintf("mode=%s representation=%s", ev.Mode, ev.Representation))
		if sess != nil {
			s.sendBurst(sess)
		}
	case bus.KindStartupStage:
		if sess != nil {
			s.sendFrame(sess, report.GroupState(s.state.Snapshot()))
		}
	case bus.KindAlarmsChanged:
		s.journalEvent(sessionID(sess), "alarms_changed", ev.Detail)
	case bus.KindDetectorPulse:
		if sess != nil && s.inst.Detectors.RealTime {
			s.sendFrame(sess, report.DetectorCounts(s.state.Snapshot()))
		}
	}
}

// sendBurst queues the status burst: alarms, mode report and group states.
func (s *Service) sendBurst(sess *session) {
	for _, f := range report.StatusBurst(s.state.Snapshot()) {
		s.sendFrame(sess, f)
	}
}

// handleConn runs one center session: admit, replay the power-on staging,
// announce the status burst and then dispatch inbound traffic until the
// link drops. Regulator state outlives the session.
func (s *Service) handleConn(conn net.Conn) {
	defer conn.Close()

	sess, err := s.attach(conn)
	if err != nil {
		log.Warn().
			Str("regulator", s.cfg.Name).
			Str("remote", conn.RemoteAddr().String()).
			Err(err).
			Msg("session_refused")
		return
	}
	defer s.detach(sess)

	log.Info().
		Str("regulator", s.cfg.Name).
		Str("session", sess.id).
		Str("remote", conn.RemoteAddr().String()).
		Msg("session_open")
	observability.SetSessionConnected(s.cfg.Name, true)
	s.journalEvent(sess.id, "session_open", conn.RemoteAddr().String())

	s.state.BeginStartup()
	s.sendBurst(sess)

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			sess.scanner.Append(buf[:n])
			for {
				tok, ok := sess.scanner.Next()
				if !ok {
					break
				}
				select {
				case s.inbound <- inboundMsg{sess: sess, tok: tok}:
				case <-sess.done:
					return
				}
			}
		}
		if err != nil {
			log.Info().
				Str("regulator", s.cfg.Name).
				Str("session", sess.id).
				Err(err).
				Msg("session_close")
			return
		}
	}
}

// session is one established center link with its ordered write queue.
type session struct {
	id      string
	conn    net.Conn
	out     chan []byte
	done    chan struct{}
	closeFn sync.Once
	scanner une.Scanner
}

func (sess *session) close() {
	sess.closeFn.Do(func() { close(sess.done) })
}

// enqueue hands raw bytes to the session writer. A full queue means the
// peer stopped draining; the link is dropped rather than blocking the
// protocol loop.
func (sess *session) enqueue(raw []byte) {
	select {
	case sess.out <- raw:
	default:
		sess.conn.Close()
	}
}

func (s *Service) attach(conn net.Conn) (*session, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.session != nil {
		return nil, ErrSessionBusy
	}
	sess := &session{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, writeQueueDepth),
		done: make(chan struct{}),
	}
	s.session = sess
	go s.writeLoop(sess)
	return sess, nil
}

func (s *Service) detach(sess *session) {
	s.sessionMu.Lock()
	if s.session == sess {
		s.session = nil
	}
	s.sessionMu.Unlock()
	sess.close()
	observability.SetSessionConnected(s.cfg.Name, false)
	s.journalEvent(sess.id, "session_close", "")
}

func (s *Service) currentSession() *session {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.session
}

func (s *Service) closeCurrentSession() {
	if sess := s.currentSession(); sess != nil {
		sess.conn.Close()
		sess.close()
	}
}

// writeLoop drains the session queue onto the wire in order.
func (s *Service) writeLoop(sess *session) {
	for {
		select {
		case <-sess.done:
			return
		case raw := <-sess.out:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if _, err := sess.conn.Write(raw); err != nil {
				log.Warn().
					Str("regulator", s.cfg.Name).
					Str("session", sess.id).
					Err(err).
					Msg("session_write_failed")
				sess.conn.Close()
				return
			}
		}
	}
}

// sendFrame encodes and queues a protocol frame for the session.
func (s *Service) sendFrame(sess *session, f une.Frame) {
	observability.RecordFrame(s.cfg.Name, "tx", f.Code.String())
	s.journalFrame(sess.id, "tx", f.Code, f.Data)
	sess.enqueue(une.Build(f))
}

// sendControl queues a bare control byte for the session.
func (s *Service) sendControl(sess *session, ctrl byte) {
	if ctrl == une.NAK {
		observability.RecordNAK(s.cfg.Name, "tx")
	}
	s.journalControl(sess.id, "tx", ctrl)
	sess.enqueue([]byte{ctrl})
}

func sessionID(sess *session) string {
	if sess == nil {
		return ""
	}
	return sess.id
}

const journalTimeout = 2 * time.Second

func (s *Service) journalFrame(sessID, direction string, code une.Code, data []byte) {
	if s.jrnl == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.jrnl.RecordFrame(ctx, sessID, direction, code.String(), data); err != nil {
		log.Warn().Str("regulator", s.cfg.Name).Err(err).Msg("journal_frame_failed")
	}
}

func (s *Service) journalControl(sessID, direction string, ctrl byte) {
	if s.jrnl == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.jrnl.RecordControl(ctx, sessID, direction, une.ControlName(ctrl)); err != nil {
		log.Warn().Str("regulator", s.cfg.Name).Err(err).Msg("journal_control_failed")
	}
}

func (s *Service) journalEvent(sessID, kind, detail string) {
	if s.jrnl == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.jrnl.RecordEvent(ctx, sessID, kind, detail); err != nil {
		log.Warn().Str("regulator", s.cfg.Name).Err(err).Msg("journal_event_failed")
	}
}
