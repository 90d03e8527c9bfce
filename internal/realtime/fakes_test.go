package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/yoockh/yoomeet/internal/media"
)

type fakeChannel struct {
	mu      sync.Mutex
	sent    []string
	onOpen  func()
	onMsg   func([]byte)
	closed  int
	sendErr error
}

func (c *fakeChannel) OnOpen(fn func())          { c.mu.Lock(); c.onOpen = fn; c.mu.Unlock() }
func (c *fakeChannel) OnMessage(fn func([]byte)) { c.mu.Lock(); c.onMsg = fn; c.mu.Unlock() }

func (c *fakeChannel) SendText(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, s)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) open() {
	c.mu.Lock()
	fn := c.onOpen
	c.mu.Unlock()
	fn()
}

func (c *fakeChannel) deliver(raw string) {
	c.mu.Lock()
	fn := c.onMsg
	c.mu.Unlock()
	fn([]byte(raw))
}

func (c *fakeChannel) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakePeer struct {
	mu      sync.Mutex
	channel *fakeChannel
	local   media.Track
	onState func(webrtc.PeerConnectionState)
	onTrack func(media.Track)
	remote  string
	closed  int

	offerErr error
	// stalled peers never finish candidate gathering.
	stalled bool
}

func (p *fakePeer) AddLocalTrack(t media.Track) error { p.local = t; return nil }

func (p *fakePeer) CreateDataChannel(label string) (DataChannel, error) {
	if label != DataChannelLabel {
		return nil, errors.New("unexpected label " + label)
	}
	p.channel = &fakeChannel{}
	return p.channel, nil
}

func (p *fakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

func (p *fakePeer) OnTrack(fn func(media.Track)) {
	p.mu.Lock()
	p.onTrack = fn
	p.mu.Unlock()
}

func (p *fakePeer) CreateOffer() (string, error) {
	if p.offerErr != nil {
		return "", p.offerErr
	}
	return "v=0 offer", nil
}

func (p *fakePeer) SetLocalDescription(string) error { return nil }

func (p *fakePeer) GatheringComplete() <-chan struct{} {
	ch := make(chan struct{})
	if !p.stalled {
		close(ch)
	}
	return ch
}

func (p *fakePeer) LocalDescription() string {
	if p.stalled {
		return "v=0 partial offer"
	}
	return "v=0 offer with candidates"
}

func (p *fakePeer) SetRemoteDescription(sdp string) error {
	p.mu.Lock()
	p.remote = sdp
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) setState(st webrtc.PeerConnectionState) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	fn(st)
}

func (p *fakePeer) addRemote(t media.Track) {
	p.mu.Lock()
	fn := p.onTrack
	p.mu.Unlock()
	fn(t)
}

func (p *fakePeer) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// peerQueue hands out a fresh fake peer for every connect.
type peerQueue struct {
	mu    sync.Mutex
	peers []*fakePeer
}

func (q *peerQueue) factory() (PeerConnection, error) {
	p := &fakePeer{}
	q.mu.Lock()
	q.peers = append(q.peers, p)
	q.mu.Unlock()
	return p, nil
}

func (q *peerQueue) last() *fakePeer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.peers[len(q.peers)-1]
}

type fakeSignaler struct {
	mu     sync.Mutex
	errs   []error
	offers []string
	agents []string
}

func (s *fakeSignaler) Exchange(_ context.Context, offer, agentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = append(s.offers, offer)
	s.agents = append(s.agents, agentID)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "v=0 answer", nil
}

type fakeCapturer struct {
	mu     sync.Mutex
	err    error
	tracks []*media.LocalTrack
}

func (c *fakeCapturer) Acquire(context.Context) (*media.LocalTrack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	t := media.NewLocalTrack("mic", nil)
	c.tracks = append(c.tracks, t)
	return t, nil
}

func (c *fakeCapturer) last() *media.LocalTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks[len(c.tracks)-1]
}

type fakeHandoff struct {
	got chan []Record
}

func (h *fakeHandoff) Handoff(_ context.Context, _ string, records []Record) error {
	h.got <- records
	return nil
}
