package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoomeet/internal/media"
)

// PeerConnection is the part of a WebRTC peer the session needs. Descriptions are raw
// SDP text.
type PeerConnection interface {
	AddLocalTrack(t media.Track) error
	CreateDataChannel(label string) (DataChannel, error)
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	OnTrack(fn func(media.Track))
	CreateOffer() (string, error)
	SetLocalDescription(sdp string) error
	GatheringComplete() <-chan struct{}
	LocalDescription() string
	SetRemoteDescription(sdp string) error
	Close() error
}

// DataChannel is the ordered, reliable side channel.
type DataChannel interface {
	OnOpen(fn func())
	OnMessage(fn func([]byte))
	SendText(s string) error
	Close() error
}

type PeerFactory func() (PeerConnection, error)

var DefaultICEServers = []string{"stun:stun.l.google.com:19302"}

type PionConfig struct {
	ICEServers []string
	NewEncoder func() (media.PacketEncoder, error)
	NewDecoder func() (media.PacketDecoder, error)
	Logger     logrus.FieldLogger
}

// NewPionPeer returns a factory building pion peer connections. Local PCM is encoded
// frame by frame into an Opus sample track; each remote audio track is decoded back
// into a media.Track.
func NewPionPeer(cfg PionConfig) PeerFactory {
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = DefaultICEServers
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return func() (PeerConnection, error) {
		if cfg.NewEncoder == nil || cfg.NewDecoder == nil {
			return nil, errors.New("pion peer: encoder and decoder factories are required")
		}
		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: cfg.ICEServers}},
		})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		return &pionPeer{pc: pc, cfg: cfg, ctx: ctx, cancel: cancel}, nil
	}
}

type pionPeer struct {
	pc  *webrtc.PeerConnection
	cfg PionConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	remotes []*media.Tee
	closed  bool
}

func (p *pionPeer) AddLocalTrack(t media.Track) error {
	enc, err := p.cfg.NewEncoder()
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}
	out, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: media.SampleRate, Channels: 2},
		"audio", "yoomeet-"+t.ID(),
	)
	if err != nil {
		return err
	}
	sender, err := p.pc.AddTrack(out)
	if err != nil {
		return err
	}

	// RTCP has to be read for interceptors to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	frames, unsubscribe := t.Subscribe()
	go func() {
		defer unsubscribe()
		log := p.cfg.Logger.WithField("track_id", t.ID())
		for {
			select {
			case <-p.ctx.Done():
				return
			case f, ok := <-frames:
				if !ok {
					return
				}
				payload, err := enc.Encode(f)
				if err != nil {
					log.WithError(err).Debug("opus encode failed; frame dropped")
					continue
				}
				if err := out.WriteSample(pionmedia.Sample{Data: payload, Duration: media.FrameDuration}); err != nil {
					if errors.Is(err, io.ErrClosedPipe) {
						return
					}
					log.WithError(err).Debug("write sample failed")
				}
			}
		}
	}()
	return nil
}

func (p *pionPeer) CreateDataChannel(label string) (DataChannel, error) {
	dc, err := p.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, err
	}
	return &pionChannel{dc: dc}, nil
}

func (p *pionPeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

func (p *pionPeer) OnTrack(fn func(media.Track)) {
	p.pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		dec, err := p.cfg.NewDecoder()
		if err != nil {
			p.cfg.Logger.WithError(err).Error("opus decoder unavailable; remote audio ignored")
			return
		}

		tee := media.NewTee(remote.ID())
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			tee.Close()
			return
		}
		p.remotes = append(p.remotes, tee)
		p.mu.Unlock()

		go p.readRemote(remote, dec, tee)
		fn(tee)
	})
}

func (p *pionPeer) readRemote(remote *webrtc.TrackRemote, dec media.PacketDecoder, tee *media.Tee) {
	defer tee.Close()
	log := p.cfg.Logger.WithField("track_id", remote.ID())
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("remote track read ended")
			}
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		f, err := dec.Decode(pkt.Payload)
		if err != nil {
			log.WithError(err).Debug("opus decode failed; packet dropped")
			continue
		}
		tee.Write(f)
	}
}

func (p *pionPeer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	return offer.SDP, nil
}

func (p *pionPeer) SetLocalDescription(sdp string) error {
	return p.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
}

func (p *pionPeer) GatheringComplete() <-chan struct{} {
	return webrtc.GatheringCompletePromise(p.pc)
}

func (p *pionPeer) LocalDescription() string {
	if d := p.pc.LocalDescription(); d != nil {
		return d.SDP
	}
	return ""
}

func (p *pionPeer) SetRemoteDescription(sdp string) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (p *pionPeer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	remotes := p.remotes
	p.remotes = nil
	p.mu.Unlock()

	p.cancel()
	err := p.pc.Close()
	for _, t := range remotes {
		t.Close()
	}
	return err
}

type pionChannel struct {
	dc *webrtc.DataChannel
}

func (c *pionChannel) OnOpen(fn func()) { c.dc.OnOpen(fn) }

func (c *pionChannel) OnMessage(fn func([]byte)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) { fn(msg.Data) })
}

func (c *pionChannel) SendText(s string) error { return c.dc.SendText(s) }

func (c *pionChannel) Close() error { return c.dc.Close() }
