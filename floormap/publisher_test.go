package floormap

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func connectedPublisher(t *testing.T) (*Publisher, *MockClient) {
	t.Helper()
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	mock := NewMockClient()
	mock.SetConnected(true)
	return NewPublisher(mock, "", zap.NewNop()), mock
}

func TestNewPublisher_Topics(t *testing.T) {
	p, _ := connectedPublisher(t)
	assert.Equal(t, "floormesh/floor/update", p.UpdateTopic())
	assert.Equal(t, "floormesh/floor/map", p.MapTopic())
	_, err := uuid.Parse(p.Session())
	assert.NoError(t, err)

	t.Setenv("MQTT_PUBLISH_PREFIX", "lab/bot1")
	q := NewPublisher(NewMockClient(), "ignored", nil)
	assert.Equal(t, "lab/bot1/floor/update", q.UpdateTopic())
	assert.NotEqual(t, p.Session(), q.Session())
}

func TestPublisher_PublishUpdate(t *testing.T) {
	p, mock := connectedPublisher(t)
	pose := Pose{Index: GridIndex{X: 3, Y: 4}}
	stats := CommitStats{
		Written: 12,
		Bounds:  orb.Bound{Min: orb.Point{-2, 5}, Max: orb.Point{7, 9}},
	}

	require.NoError(t, p.PublishUpdate(pose, stats))
	require.NoError(t, p.PublishUpdate(pose, CommitStats{}))

	msgs := mock.Published()
	require.Len(t, msgs, 2)
	assert.Equal(t, p.UpdateTopic(), msgs[0].Topic)
	assert.False(t, msgs[0].Retain)

	var first, second FloorUpdate
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &first))
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &second))
	assert.Equal(t, p.Session(), first.Session)
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Equal(t, GridIndex{X: 3, Y: 4}, first.Robot)
	assert.Equal(t, 12, first.Written)
	assert.Equal(t, [4]int{-2, 5, 7, 9}, first.Bounds)
	assert.Equal(t, [4]int{}, second.Bounds)
	assert.Positive(t, first.Timestamp)
}

func TestPublisher_PublishMap(t *testing.T) {
	p, mock := connectedPublisher(t)
	p.SetQoS(1)
	p.SetQoS(7)

	grid := NewExpandableGrid(GridConfig{InitialWidth: 8, InitialHeight: 8, ChunkSize: 8})
	layer, _ := grid.Layer(FloorColorLayer)
	layer.SetRGB(grid.GridIndexToArrayIndex(GridIndex{}), color.RGBA{0, 128, 0, 255})

	require.NoError(t, p.PublishMap(grid, nil))
	msg, ok := mock.LastPublished(p.MapTopic())
	require.True(t, ok)
	assert.True(t, msg.Retain)
	assert.Equal(t, byte(1), msg.QoS)

	img, err := png.Decode(bytes.NewReader(msg.Payload))
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestPublisher_NotConnected(t *testing.T) {
	p := NewPublisher(NewMockClient(), "x", nil)
	assert.EqualError(t, p.PublishUpdate(Pose{}, CommitStats{}), "MQTT client not connected")
	assert.Error(t, p.PublishMap(NewExpandableGrid(GridConfig{}), nil))

	nilClient := NewPublisher(nil, "x", nil)
	assert.Error(t, nilClient.PublishUpdate(Pose{}, CommitStats{}))
}

func TestPublisher_PublishError(t *testing.T) {
	p, mock := connectedPublisher(t)
	boom := errors.New("broker full")
	mock.SetPublishError(boom)

	err := p.PublishUpdate(Pose{}, CommitStats{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), p.UpdateTopic())
}

func TestPublisher_PublishTimeout(t *testing.T) {
	p, mock := connectedPublisher(t)
	mock.SetPublishTimeout(true)

	err := p.PublishUpdate(Pose{}, CommitStats{})
	assert.ErrorIs(t, err, ErrPublishTimeout)
	assert.Contains(t, err.Error(), p.UpdateTopic())
	assert.ErrorIs(t, p.PublishMap(NewExpandableGrid(GridConfig{InitialWidth: 4, InitialHeight: 4}), nil), ErrPublishTimeout)
	assert.Empty(t, mock.Published())
}
