package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoomeet/internal/media"
)

// RetryPolicy is a bounded, fixed-interval retry.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 20, Interval: 500 * time.Millisecond}

// Do calls fn until it reports success, the attempts run out or ctx ends.
func (p RetryPolicy) Do(ctx context.Context, fn func() bool) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if fn() {
			return nil
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return ErrRecorderUnavailable
}

// maxLag is how many frames one side may run ahead before the other is taken as silent.
const maxLag = 10

// Recorder mixes the local and remote tracks into one artifact. It only reads the
// tracks; it never stops them.
type Recorder struct {
	codecs *media.Registry
	prefs  []string
	log    logrus.FieldLogger

	mu      sync.Mutex
	local   media.Track
	remote  media.Track
	session *mixSession
}

func NewRecorder(codecs *media.Registry, prefs []string, log logrus.FieldLogger) *Recorder {
	if codecs == nil {
		codecs = media.NewRegistry()
	}
	if len(prefs) == 0 {
		prefs = media.DefaultPreferences
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{codecs: codecs, prefs: prefs, log: log}
}

func (r *Recorder) AttachLocal(t media.Track) {
	r.mu.Lock()
	r.local = t
	r.mu.Unlock()
}

func (r *Recorder) AttachRemote(t media.Track) {
	r.mu.Lock()
	r.remote = t
	r.mu.Unlock()
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// Start begins mixing. It returns false when either track is missing or has ended, and
// true when a recording is running afterwards.
func (r *Recorder) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return true
	}
	if media.Ended(r.local) || media.Ended(r.remote) {
		return false
	}
	enc, err := r.codecs.NewEncoder(r.prefs, media.SampleRate, media.Channels)
	if err != nil {
		r.log.WithError(err).Error("no recording codec available")
		return false
	}
	r.log.WithField("mime_type", enc.MimeType()).Info("recording started")
	r.session = startMix(r.local, r.remote, enc, r.log)
	return true
}

// StartWithRetry retries Start under p. The remote track usually arrives some time
// after the transport reports connected.
func (r *Recorder) StartWithRetry(ctx context.Context, p RetryPolicy) error {
	return p.Do(ctx, r.Start)
}

// Stop flushes and returns the artifact, or nil when nothing was recording.
func (r *Recorder) Stop() *media.Artifact {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.stop()
}

type mixSession struct {
	enc  media.Encoder
	log  logrus.FieldLogger
	quit chan struct{}
	out  chan *media.Artifact
	once sync.Once
	res  *media.Artifact

	local, remote         <-chan media.Frame
	cancelLocal, cancelRm func()
	lq, rq                [][]int16
	samples               int
}

func startMix(local, remote media.Track, enc media.Encoder, log logrus.FieldLogger) *mixSession {
	s := &mixSession{
		enc:  enc,
		log:  log,
		quit: make(chan struct{}),
		out:  make(chan *media.Artifact, 1),
	}
	s.local, s.cancelLocal = local.Subscribe()
	s.remote, s.cancelRm = remote.Subscribe()
	go s.run()
	return s
}

func (s *mixSession) stop() *media.Artifact {
	s.once.Do(func() {
		close(s.quit)
		s.res = <-s.out
	})
	return s.res
}

func (s *mixSession) run() {
	defer s.cancelLocal()
	defer s.cancelRm()

	localCh, remoteCh := s.local, s.remote
	for {
		select {
		case <-s.quit:
			s.drain(localCh, remoteCh)
			s.finish()
			return
		case f, ok := <-localCh:
			if !ok {
				localCh = nil
				continue
			}
			s.lq = append(s.lq, f.Samples)
		case f, ok := <-remoteCh:
			if !ok {
				remoteCh = nil
				continue
			}
			s.rq = append(s.rq, f.Samples)
		}
		s.mixReady(localCh == nil, remoteCh == nil)
	}
}

// mixReady writes every frame that has a partner, plus frames whose partner is
// closed or too far behind.
func (s *mixSession) mixReady(localGone, remoteGone bool) {
	for len(s.lq) > 0 && len(s.rq) > 0 {
		s.write(media.Mix(s.lq[0], s.rq[0]))
		s.lq, s.rq = s.lq[1:], s.rq[1:]
	}
	for len(s.lq) > 0 && (remoteGone || len(s.lq) > maxLag) {
		s.write(s.lq[0])
		s.lq = s.lq[1:]
	}
	for len(s.rq) > 0 && (localGone || len(s.rq) > maxLag) {
		s.write(s.rq[0])
		s.rq = s.rq[1:]
	}
}

// drain takes whatever frames are already buffered and flushes every queue.
func (s *mixSession) drain(localCh, remoteCh <-chan media.Frame) {
	for done := false; !done; {
		select {
		case f, ok := <-localCh:
			if !ok {
				localCh = nil
				continue
			}
			s.lq = append(s.lq, f.Samples)
		case f, ok := <-remoteCh:
			if !ok {
				remoteCh = nil
				continue
			}
			s.rq = append(s.rq, f.Samples)
		default:
			done = true
		}
	}
	s.mixReady(true, true)
}

func (s *mixSession) write(samples []int16) {
	if err := s.enc.Write(samples); err != nil {
		s.log.WithError(err).Warn("recording frame dropped")
		return
	}
	s.samples += len(samples)
}

func (s *mixSession) finish() {
	data, err := s.enc.Close()
	if err != nil {
		s.log.WithError(err).Error("recording encoder close failed")
		s.out <- nil
		return
	}
	s.out <- &media.Artifact{
		MimeType: s.enc.MimeType(),
		Data:     data,
		Duration: time.Duration(s.samples) * time.Second / media.SampleRate,
	}
}
