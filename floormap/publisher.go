package floormap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// FloorUpdate is the JSON summary published after each committed triple.
type FloorUpdate struct {
	Session   string    `json:"session"`
	Sequence  uint64    `json:"sequence"`
	Robot     GridIndex `json:"robot"`
	Heading   float64   `json:"heading"` // degrees
	Written   int       `json:"written"`
	Bounds    [4]int    `json:"bounds"` // minX, minY, maxX, maxY in grid indices; zero when nothing was written
	Timestamp int64     `json:"timestamp"`
}

// Publisher publishes floor updates and map snapshots to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	session       string
	qos           byte
	logger        *zap.Logger

	mu       sync.Mutex
	sequence uint64
}

// NewPublisher creates a publisher. MQTT_PUBLISH_PREFIX overrides prefix; an
// empty prefix falls back to "floormesh".
func NewPublisher(client mqtt.Client, prefix string, logger *zap.Logger) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "floormesh"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		session:       uuid.NewString(),
		logger:        logger,
	}
}

// Session identifies this process's stream of updates.
func (p *Publisher) Session() string {
	return p.session
}

// UpdateTopic is where FloorUpdate messages go.
func (p *Publisher) UpdateTopic() string {
	return p.publishPrefix + "/floor/update"
}

// MapTopic is where retained PNG snapshots go.
func (p *Publisher) MapTopic() string {
	return p.publishPrefix + "/floor/map"
}

// PublishUpdate publishes a summary of one MapFloor call.
func (p *Publisher) PublishUpdate(pose Pose, stats CommitStats) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	p.sequence++
	seq := p.sequence
	p.mu.Unlock()

	update := FloorUpdate{
		Session:   p.session,
		Sequence:  seq,
		Robot:     pose.Index,
		Heading:   pose.Heading.Degrees(),
		Written:   stats.Written,
		Timestamp: time.Now().Unix(),
	}
	if stats.Written > 0 {
		update.Bounds = [4]int{
			int(stats.Bounds.Min.X()), int(stats.Bounds.Min.Y()),
			int(stats.Bounds.Max.X()), int(stats.Bounds.Max.Y()),
		}
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshaling floor update: %w", err)
	}
	return p.publish(p.UpdateTopic(), false, payload)
}

// PublishMap renders the floor and publishes it as a retained PNG.
func (p *Publisher) PublishMap(grid *ExpandableGrid, pose *Pose) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	var buf bytes.Buffer
	if err := WriteFloorPNG(&buf, grid, pose, DefaultRenderOptions()); err != nil {
		return fmt.Errorf("rendering floor: %w", err)
	}
	return p.publish(p.MapTopic(), true, buf.Bytes())
}

func (p *Publisher) publish(topic string, retain bool, payload []byte) error {
	token := p.client.Publish(topic, p.qos, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	p.logger.Debug("published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}
