package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoomeet/internal/media"
	"github.com/yoockh/yoomeet/internal/utils"
)

func newRecordingHarness(t *testing.T) (RecordingService, *fakeStore, *fakeMeetingRepo, string) {
	t.Helper()
	h := newMeetingHarness()
	m, err := h.svc.Start(context.Background(), "u1", "")
	require.NoError(t, err)
	store := newFakeStore()
	return NewRecordingService(store, &fakeRecordingRepo{}, h.svc), store, h.meetings, m.MeetingID
}

func wavBytes(t *testing.T) []byte {
	t.Helper()
	enc, err := media.NewWAVEncoder(media.SampleRate, 1)
	require.NoError(t, err)
	require.NoError(t, enc.Write(make([]int16, 960)))
	b, err := enc.Close()
	require.NoError(t, err)
	return b
}

func TestRecordingUploadAndSign(t *testing.T) {
	svc, store, meetings, id := newRecordingHarness(t)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, "u1", id, wavBytes(t))
	require.NoError(t, err)
	assert.Equal(t, media.MimeWAV, rec.MimeType)
	assert.True(t, strings.HasPrefix(rec.ObjectPath, "recordings/"+id+"/"))
	assert.True(t, strings.HasSuffix(rec.ObjectPath, ".wav"))
	assert.Equal(t, media.MimeWAV, store.types[rec.ObjectPath])

	m, _ := meetings.GetByMeetingID(ctx, id)
	assert.Equal(t, rec.ObjectPath, m.RecordingURL)

	url, err := svc.SignedURL(ctx, "u1", id)
	require.NoError(t, err)
	assert.Contains(t, url, rec.ObjectPath)
}

func TestRecordingUploadRejects(t *testing.T) {
	svc, store, _, id := newRecordingHarness(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "u1", id, nil)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Upload(ctx, "u1", id, []byte("plain text"))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Upload(ctx, "u2", id, wavBytes(t))
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	store.err = errors.New("gcs down")
	_, err = svc.Upload(ctx, "u1", id, wavBytes(t))
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}

func TestRecordingSignedURLMissing(t *testing.T) {
	svc, _, _, id := newRecordingHarness(t)
	_, err := svc.SignedURL(context.Background(), "u1", id)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}
