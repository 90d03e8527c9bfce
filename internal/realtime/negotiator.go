package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoomeet/internal/media"
)

const (
	DataChannelLabel     = "oai-events"
	DefaultGatherTimeout = 2 * time.Second
)

// Signaler trades a local offer for the remote answer through the relay.
type Signaler interface {
	Exchange(ctx context.Context, offerSDP, agentID string) (string, error)
}

// Link is a negotiated transport: the peer plus its side channel.
type Link struct {
	Peer    PeerConnection
	Channel DataChannel
}

// Close is safe on a partial or nil link.
func (l *Link) Close() error {
	if l == nil {
		return nil
	}
	var errs []error
	if l.Channel != nil {
		errs = append(errs, l.Channel.Close())
	}
	if l.Peer != nil {
		errs = append(errs, l.Peer.Close())
	}
	return errors.Join(errs...)
}

// linkHooks are registered before the offer is created so no early callback is lost.
type linkHooks struct {
	onState   func(webrtc.PeerConnectionState)
	onTrack   func(media.Track)
	onOpen    func(DataChannel)
	onMessage func([]byte)
}

type Negotiator struct {
	NewPeer       PeerFactory
	Signaler      Signaler
	GatherTimeout time.Duration
	Logger        logrus.FieldLogger
}

// Negotiate builds the transport around local and drives the offer/answer exchange.
// Whatever was built is closed before an error is returned.
func (n *Negotiator) Negotiate(ctx context.Context, local media.Track, agentID string, h linkHooks) (*Link, error) {
	log := n.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("agent_id", agentID)

	peer, err := n.NewPeer()
	if err != nil {
		return nil, &TransportError{Op: "create peer", Err: err}
	}
	link := &Link{Peer: peer}

	fail := func(err error) (*Link, error) {
		if cerr := link.Close(); cerr != nil {
			log.WithError(cerr).Warn("closing partial link")
		}
		return nil, err
	}

	if err := peer.AddLocalTrack(local); err != nil {
		return fail(&TransportError{Op: "add local track", Err: err})
	}
	ch, err := peer.CreateDataChannel(DataChannelLabel)
	if err != nil {
		return fail(&TransportError{Op: "create data channel", Err: err})
	}
	link.Channel = ch

	if h.onState != nil {
		peer.OnConnectionStateChange(h.onState)
	}
	if h.onTrack != nil {
		peer.OnTrack(h.onTrack)
	}
	if h.onOpen != nil {
		ch.OnOpen(func() { h.onOpen(ch) })
	}
	if h.onMessage != nil {
		ch.OnMessage(h.onMessage)
	}

	offer, err := peer.CreateOffer()
	if err != nil {
		return fail(&TransportError{Op: "create offer", Err: err})
	}
	// The gathering promise must exist before the local description is applied.
	gathered := peer.GatheringComplete()
	if err := peer.SetLocalDescription(offer); err != nil {
		return fail(&TransportError{Op: "set local description", Err: err})
	}

	timeout := n.GatherTimeout
	if timeout <= 0 {
		timeout = DefaultGatherTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		log.WithField("timeout", timeout).Debug("candidate gathering timed out; sending partial offer")
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	sdp := peer.LocalDescription()
	if sdp == "" {
		sdp = offer
	}
	answer, err := n.Signaler.Exchange(ctx, sdp, agentID)
	if err != nil {
		var se *SignalingError
		if !errors.As(err, &se) && ctx.Err() == nil {
			err = &SignalingError{Err: err}
		}
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := peer.SetRemoteDescription(answer); err != nil {
		return fail(&TransportError{Op: "set remote description", Err: err})
	}
	return link, nil
}
