package overlay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesium3d/tileengine/fetch"
	"github.com/cesium3d/tileengine/scheduler"
)

type fakeAccessor struct {
	status int
	data   []byte
}

func (f fakeAccessor) Get(ctx context.Context, url string, headers map[string]string) (fetch.Response, error) {
	return fetch.Response{StatusCode: f.status, Data: f.data}, nil
}
func (f fakeAccessor) Tick() {}

type fakeDecoder struct {
	failDecode bool
}

func (d fakeDecoder) Decode(data []byte) ([]byte, int, int, error) {
	if d.failDecode {
		return nil, 0, 0, assertErr
	}
	return data, 4, 4, nil
}
func (d fakeDecoder) PrepareRendererResource(pixels []byte, w, h int) (interface{}, error) {
	return nil, nil
}

var assertErr = errDecode{}

type errDecode struct{}

func (errDecode) Error() string { return "decode failed" }

func TestRequestTileSucceeds(t *testing.T) {
	sched := scheduler.NewScheduler(2, 8)
	p := NewProvider(fakeAccessor{status: 200, data: []byte{1, 2, 3, 4}}, sched, fakeDecoder{}, 2)

	fut := p.RequestTile(context.Background(), "https://example.com/tile.png", Rectangle{East: 1, North: 1})
	tile, err := fut.Wait()
	require.NoError(t, err)
	assert.False(t, tile.Placeholder)
	assert.Equal(t, 4, tile.Width)
	assert.EqualValues(t, 4, tile.ByteSize)
}

func TestRequestTileThrottledReturnsPlaceholder(t *testing.T) {
	sched := scheduler.NewScheduler(2, 8)
	p := NewProvider(fakeAccessor{status: 200, data: []byte{1}}, sched, fakeDecoder{}, 1)

	// Exhaust the throttled counter directly.
	require.True(t, p.throttled.TryAcquire())
	require.True(t, p.total.TryAcquire())

	fut := p.RequestTile(context.Background(), "https://example.com/tile.png", Rectangle{})
	tile, err := fut.Wait()
	require.NoError(t, err)
	assert.True(t, tile.Placeholder)
	assert.Same(t, p.placeholder, tile)
}

func TestRequestTileDecodeFailure(t *testing.T) {
	sched := scheduler.NewScheduler(2, 8)
	p := NewProvider(fakeAccessor{status: 200, data: []byte{1}}, sched, fakeDecoder{failDecode: true}, 2)

	fut := p.RequestTile(context.Background(), "https://example.com/tile.png", Rectangle{})
	_, err := fut.Wait()
	require.Error(t, err)
}

func TestPlaceholderRefCounting(t *testing.T) {
	p := NewProvider(fakeAccessor{status: 200}, scheduler.NewScheduler(1, 1), fakeDecoder{}, 1)
	before := p.placeholder.refCount.Load()
	p.Placeholder().AddRef()
	assert.Equal(t, before+1, p.placeholder.refCount.Load())
}
