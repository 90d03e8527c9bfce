package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoomeet/internal/media"
)

// Observer receives session notifications. Callbacks run on transport goroutines and
// must not block.
type Observer struct {
	OnStateChange  func(State)
	OnTranscript   func([]Turn)
	OnError        func(error)
	OnConnected    func()
	OnDisconnected func()
}

type Config struct {
	Signaler Signaler
	Capturer media.Capturer
	NewPeer  PeerFactory

	// Player renders remote audio. Optional.
	Player media.Player
	// Handoff receives the transcript when a meeting session ends. Optional.
	Handoff   Handoff
	MeetingID string
	AgentID   string

	GatherTimeout    time.Duration
	Transcription    TranscriptionConfig
	Codecs           *media.Registry
	CodecPreferences []string
	RecorderRetry    RetryPolicy

	Observer Observer
	Logger   logrus.FieldLogger
}

// Manager owns one logical voice session. Each Connect builds a fresh session; the
// pointer to it is the generation, so callbacks from a torn-down session are ignored.
type Manager struct {
	cfg Config
	log logrus.FieldLogger

	mu        sync.Mutex
	state     State
	asm       *Assembler
	conn      *session
	recording *media.Artifact
}

type session struct {
	ctx      context.Context
	abort    context.CancelFunc
	local    *media.LocalTrack
	peer     PeerConnection
	recorder *Recorder
	remote   media.Track
	stopPlay func()

	// dc is the negotiated side channel, held for teardown only. channel is set once
	// dc has opened and transcription is enabled; sends go through it.
	dc        DataChannel
	channel   DataChannel
	ready     chan struct{}
	connected bool

	releaseOnce sync.Once
}

func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.RecorderRetry.MaxAttempts == 0 {
		cfg.RecorderRetry = DefaultRetryPolicy
	}
	log := cfg.Logger.WithFields(logrus.Fields{"meeting_id": cfg.MeetingID, "agent_id": cfg.AgentID})
	return &Manager{
		cfg:   cfg,
		log:   log,
		state: State{Status: StatusIdle},
		asm:   NewAssembler(log),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Transcript() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asm.Turns()
}

// LastRecording is the artifact of the most recent stopped recording, including one
// stopped by teardown.
func (m *Manager) LastRecording() *media.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording
}

// Connect starts a new session. It is a no-op while one already exists. A failed
// attempt leaves the state failed and the manager ready for another Connect.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		m.log.Info("connect ignored: session already active")
		return nil
	}
	nctx, abort := context.WithCancel(ctx)
	s := &session{
		ctx:      nctx,
		abort:    abort,
		ready:    make(chan struct{}),
		recorder: NewRecorder(m.cfg.Codecs, m.cfg.CodecPreferences, m.log),
	}
	m.conn = s
	m.asm.Reset()
	m.recording = nil
	st := m.reduceLocked(ConnectStarted{})
	m.mu.Unlock()

	m.emitState(st)
	m.emitTranscript(nil)

	local, err := m.cfg.Capturer.Acquire(nctx)
	if err != nil {
		return m.fail(s, &MediaAcquisitionError{Err: err})
	}
	if !m.current(s, func() { s.local = local }) {
		local.Stop()
		return ErrConnectAborted
	}
	s.recorder.AttachLocal(local)

	neg := &Negotiator{
		NewPeer:       m.cfg.NewPeer,
		Signaler:      m.cfg.Signaler,
		GatherTimeout: m.cfg.GatherTimeout,
		Logger:        m.log,
	}
	link, err := neg.Negotiate(nctx, local, m.cfg.AgentID, linkHooks{
		onState:   func(st webrtc.PeerConnectionState) { m.onTransport(s, st) },
		onTrack:   func(t media.Track) { m.onRemoteTrack(s, t) },
		onOpen:    func(ch DataChannel) { m.onChannelOpen(s, ch) },
		onMessage: func(b []byte) { m.onMessage(s, b) },
	})
	if err != nil {
		return m.fail(s, err)
	}
	if !m.current(s, func() { s.peer, s.dc = link.Peer, link.Channel }) {
		_ = link.Close()
		return ErrConnectAborted
	}
	return nil
}

// WaitReady blocks until the side channel of the current session is open and
// transcription has been enabled, so SendText and Interrupt can be delivered.
func (m *Manager) WaitReady(ctx context.Context) error {
	m.mu.Lock()
	s := m.conn
	m.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}
	select {
	case <-s.ready:
		return nil
	case <-s.ctx.Done():
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect tears the session down. Safe to call any number of times in any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	s := m.conn
	if s == nil {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	st := m.reduceLocked(Disconnected{})
	turns := m.asm.Turns()
	m.mu.Unlock()

	m.release(s)
	m.emitState(st)
	if m.cfg.Observer.OnDisconnected != nil {
		m.cfg.Observer.OnDisconnected()
	}
	m.handoff(s, turns)
}

// Interrupt cancels the current response. Speaking is cleared at once without waiting
// for the upstream.
func (m *Manager) Interrupt() error {
	m.mu.Lock()
	s := m.conn
	if s == nil || s.channel == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	ch := s.channel
	st := m.reduceLocked(Interrupted{})
	m.mu.Unlock()

	m.emitState(st)
	if err := ch.SendText(string(encodeResponseCancel())); err != nil {
		m.log.WithError(err).Warn("response cancel not delivered")
		return &TransportError{Op: "send cancel", Err: err}
	}
	return nil
}

// SendText injects a typed user message and asks for a response. The user turn is
// added only once the message has been delivered to the side channel.
func (m *Manager) SendText(text string) error {
	msgs, err := encodeUserText(text)
	if err != nil {
		return err
	}
	m.mu.Lock()
	s := m.conn
	if s == nil || s.channel == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	ch := s.channel
	m.mu.Unlock()

	for _, msg := range msgs {
		if err := ch.SendText(string(msg)); err != nil {
			return &TransportError{Op: "send text", Err: err}
		}
	}

	m.mu.Lock()
	if m.conn != s {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.asm.UserUtteranceComplete(text, "")
	turns := m.asm.Turns()
	m.mu.Unlock()
	m.emitTranscript(turns)
	return nil
}

// StartRecording returns false when the session or either track is not ready.
func (m *Manager) StartRecording() bool {
	m.mu.Lock()
	s := m.conn
	m.mu.Unlock()
	if s == nil || !s.recorder.Start() {
		return false
	}

	m.mu.Lock()
	if m.conn != s {
		m.mu.Unlock()
		s.recorder.Stop()
		return false
	}
	st := m.reduceLocked(RecordingChanged{On: true})
	m.mu.Unlock()
	m.emitState(st)
	return true
}

// StartRecordingWithRetry keeps trying under the configured retry policy.
func (m *Manager) StartRecordingWithRetry(ctx context.Context) error {
	return m.cfg.RecorderRetry.Do(ctx, m.StartRecording)
}

// StopRecording flushes the recorder. It returns nil when nothing was recording.
func (m *Manager) StopRecording() *media.Artifact {
	m.mu.Lock()
	s := m.conn
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	art := s.recorder.Stop()

	m.mu.Lock()
	if art != nil {
		m.recording = art
	}
	var st State
	changed := m.conn == s && m.state.Recording
	if changed {
		st = m.reduceLocked(RecordingChanged{On: false})
	}
	m.mu.Unlock()
	if changed {
		m.emitState(st)
	}
	return art
}

func (m *Manager) onTransport(s *session, pcs webrtc.PeerConnectionState) {
	status, ok := transportStatus(pcs)
	if !ok {
		return
	}

	m.mu.Lock()
	if m.conn != s {
		m.mu.Unlock()
		return
	}
	var terr error
	var st State
	if status == StatusFailed {
		terr = &TransportError{Op: "connection", Err: errors.New("peer connection failed")}
		st = m.reduceLocked(Failed{Err: terr})
	} else {
		st = m.reduceLocked(TransportChanged{Status: status})
	}
	if status == StatusConnected {
		s.connected = true
	}
	terminal := status.Terminal()
	var turns []Turn
	if terminal {
		m.conn = nil
		turns = m.asm.Turns()
	}
	m.mu.Unlock()

	m.log.WithField("status", status).Info("transport state changed")
	m.emitState(st)

	switch {
	case status == StatusConnected:
		if m.cfg.Observer.OnConnected != nil {
			m.cfg.Observer.OnConnected()
		}
	case terminal:
		if terr != nil && m.cfg.Observer.OnError != nil {
			m.cfg.Observer.OnError(terr)
		}
		if m.cfg.Observer.OnDisconnected != nil {
			m.cfg.Observer.OnDisconnected()
		}
		// Closing the peer from inside its own callback can deadlock.
		go func() {
			m.release(s)
			m.handoff(s, turns)
		}()
	}
}

func (m *Manager) onRemoteTrack(s *session, t media.Track) {
	m.mu.Lock()
	if m.conn != s || s.remote != nil {
		m.mu.Unlock()
		return
	}
	s.remote = t
	m.mu.Unlock()

	m.log.WithField("track_id", t.ID()).Info("remote audio track received")
	s.recorder.AttachRemote(t)
	if m.cfg.Player != nil {
		stop := m.cfg.Player.Play(t)
		if !m.current(s, func() { s.stopPlay = stop }) {
			stop()
		}
	}
}

// onChannelOpen enables transcription before the channel is published, so the
// session.update is always the first message on the wire.
func (m *Manager) onChannelOpen(s *session, ch DataChannel) {
	if !m.current(s, func() {}) {
		return
	}
	msg, err := encodeSessionUpdate(m.cfg.Transcription)
	if err != nil {
		m.log.WithError(err).Error("encode session update")
		return
	}
	if err := ch.SendText(string(msg)); err != nil {
		m.log.WithError(err).Warn("session update not delivered")
		return
	}
	published := m.current(s, func() {
		if s.channel == nil {
			s.channel = ch
			close(s.ready)
		}
	})
	if published {
		m.log.Debug("side channel open; transcription enabled")
	}
}

func (m *Manager) onMessage(s *session, raw []byte) {
	ev, err := Decode(raw)
	if err != nil {
		m.log.WithError(err).Warn("malformed side channel message dropped")
		return
	}
	if ev.Kind == KindUnknown {
		m.log.WithField("event_type", ev.Type).Debug("unhandled event type")
		return
	}

	m.mu.Lock()
	if m.conn != s {
		m.mu.Unlock()
		return
	}
	changed := m.asm.Apply(ev)
	var turns []Turn
	if changed {
		turns = m.asm.Turns()
	}
	prev := m.state
	st := m.reduceLocked(EventReceived{Event: ev})
	m.mu.Unlock()

	if st != prev {
		m.emitState(st)
	}
	if changed {
		m.emitTranscript(turns)
	}
	if ev.Kind == KindError && ev.Err != nil {
		m.log.WithField("code", ev.Err.Code).Warn(ev.Err.Error())
		if m.cfg.Observer.OnError != nil {
			m.cfg.Observer.OnError(ev.Err)
		}
	}
}

// fail moves a still-current session to failed and releases it.
func (m *Manager) fail(s *session, err error) error {
	m.mu.Lock()
	if m.conn != s {
		m.mu.Unlock()
		m.release(s)
		return ErrConnectAborted
	}
	m.conn = nil
	st := m.reduceLocked(Failed{Err: err})
	m.mu.Unlock()

	m.log.WithError(err).Error("connect failed")
	m.release(s)
	m.emitState(st)
	if m.cfg.Observer.OnError != nil {
		m.cfg.Observer.OnError(err)
	}
	return err
}

// release stops the recorder, playback, side channel, transport and local track in
// that order. Every step tolerates a resource that was never created.
func (m *Manager) release(s *session) {
	s.releaseOnce.Do(func() {
		s.abort()

		m.mu.Lock()
		ch, peer, local, stopPlay := s.dc, s.peer, s.local, s.stopPlay
		if ch == nil {
			ch = s.channel
		}
		s.dc, s.channel, s.peer, s.local, s.stopPlay, s.remote = nil, nil, nil, nil, nil, nil
		m.mu.Unlock()

		if art := s.recorder.Stop(); art != nil {
			m.mu.Lock()
			m.recording = art
			m.mu.Unlock()
		}
		if stopPlay != nil {
			stopPlay()
		}
		if ch != nil {
			if err := ch.Close(); err != nil {
				m.log.WithError(err).Warn("close side channel")
			}
		}
		if peer != nil {
			if err := peer.Close(); err != nil {
				m.log.WithError(err).Warn("close peer connection")
			}
		}
		if local != nil {
			local.Stop()
		}
	})
}

// handoff sends the transcript of a session that reached connected. It does not wait.
func (m *Manager) handoff(s *session, turns []Turn) {
	if m.cfg.Handoff == nil || m.cfg.MeetingID == "" || !s.connected {
		return
	}
	records := RecordsFromTurns(turns)
	if len(records) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.cfg.Handoff.Handoff(ctx, m.cfg.MeetingID, records); err != nil {
			m.log.WithError(err).Warn("transcript handoff failed")
			return
		}
		m.log.WithField("records", len(records)).Info("transcript handed off")
	}()
}

func (m *Manager) reduceLocked(a Action) State {
	m.state = Reduce(m.state, a)
	return m.state
}

// current runs fn under the lock if s is still the active session.
func (m *Manager) current(s *session, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != s {
		return false
	}
	fn()
	return true
}

func (m *Manager) emitState(st State) {
	if m.cfg.Observer.OnStateChange != nil {
		m.cfg.Observer.OnStateChange(st)
	}
}

func (m *Manager) emitTranscript(turns []Turn) {
	if m.cfg.Observer.OnTranscript != nil {
		m.cfg.Observer.OnTranscript(turns)
	}
}
