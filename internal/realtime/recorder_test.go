package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoomeet/internal/media"
)

func newTestRecorder() *Recorder {
	log, _ := test.NewNullLogger()
	return NewRecorder(media.NewRegistry(), nil, log)
}

func TestRetryPolicyBounded(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxAttempts: 3, Interval: time.Millisecond}.Do(context.Background(), func() bool {
		calls++
		return false
	})
	assert.ErrorIs(t, err, ErrRecorderUnavailable)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryPolicy{MaxAttempts: 5, Interval: time.Second}.Do(ctx, func() bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecorderNeedsBothTracks(t *testing.T) {
	r := newTestRecorder()
	assert.False(t, r.Start())

	local := media.NewTee("local")
	r.AttachLocal(local)
	assert.False(t, r.Start())
	assert.False(t, r.Recording())
	assert.Nil(t, r.Stop())
}

func TestRecorderRetryUntilRemoteArrives(t *testing.T) {
	r := newTestRecorder()
	r.AttachLocal(media.NewTee("local"))
	assert.False(t, r.Start())

	go func() {
		time.Sleep(30 * time.Millisecond)
		r.AttachRemote(media.NewTee("remote"))
	}()
	err := r.StartWithRetry(context.Background(), RetryPolicy{MaxAttempts: 20, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, r.Recording())
	require.NotNil(t, r.Stop())
}

func TestRecorderRejectsEndedTrack(t *testing.T) {
	r := newTestRecorder()
	local, remote := media.NewTee("local"), media.NewTee("remote")
	remote.Close()
	r.AttachLocal(local)
	r.AttachRemote(remote)
	assert.False(t, r.Start())
}

func TestRecorderMixesBothSides(t *testing.T) {
	r := newTestRecorder()
	local, remote := media.NewTee("local"), media.NewTee("remote")
	r.AttachLocal(local)
	r.AttachRemote(remote)
	require.True(t, r.Start())

	const frames = 5
	for i := 0; i < frames; i++ {
		l, rm := media.Silence(media.FrameSamples), media.Silence(media.FrameSamples)
		l.Samples[0], rm.Samples[0] = 100, 23
		local.Write(l)
		remote.Write(rm)
	}

	art := r.Stop()
	require.NotNil(t, art)
	assert.Equal(t, media.MimeWAV, art.MimeType)
	assert.Equal(t, 44+frames*media.FrameSamples*2, len(art.Data))
	assert.Equal(t, frames*media.FrameDuration, art.Duration)

	// First sample of the first frame carries both sides.
	assert.Equal(t, byte(123), art.Data[44])

	assert.Nil(t, r.Stop())
	assert.False(t, media.Ended(local), "recorder must not end the tracks it reads")
}
