package floormap

import (
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TripleHandler is called with a complete frame triple and the latest pose.
type TripleHandler func(frames [NumCameras]CameraFrame, pose Pose)

// FrameAssembler collects the latest frame from each camera and the latest pose.
// Once all three frames and a pose are present the handler runs synchronously and
// the frames are cleared; the pose is kept for the next triple.
type FrameAssembler struct {
	mounts  [NumCameras]CameraMount
	handler TripleHandler

	mu      sync.Mutex
	frames  [NumCameras]*CameraFrame
	pose    *Pose
	dropped int
}

// NewFrameAssembler returns an assembler tagging frames with the configured mount
// orientations.
func NewFrameAssembler(mounts [NumCameras]CameraMount, handler TripleHandler) *FrameAssembler {
	return &FrameAssembler{mounts: mounts, handler: handler}
}

// AddFrame stores a camera frame, replacing an unconsumed one from the same camera.
func (a *FrameAssembler) AddFrame(id CameraID, frame *CameraFrame) {
	a.mu.Lock()
	if a.frames[id] != nil {
		a.dropped++
	}
	a.frames[id] = frame
	frames, pose, ok := a.takeLocked()
	a.mu.Unlock()

	if ok && a.handler != nil {
		a.handler(frames, pose)
	}
}

// SetPose records the robot pose.
func (a *FrameAssembler) SetPose(p Pose) {
	a.mu.Lock()
	a.pose = &p
	frames, pose, ok := a.takeLocked()
	a.mu.Unlock()

	if ok && a.handler != nil {
		a.handler(frames, pose)
	}
}

// Frame decodes a PNG payload into a CameraFrame for id.
func (a *FrameAssembler) Frame(id CameraID, img []byte) (*CameraFrame, error) {
	decoded, err := DecodeFrame(img)
	if err != nil {
		return nil, err
	}
	return &CameraFrame{Image: decoded, Orientation: a.mounts[id].Orientation}, nil
}

// Dropped counts frames overwritten before a triple was complete.
func (a *FrameAssembler) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

func (a *FrameAssembler) takeLocked() ([NumCameras]CameraFrame, Pose, bool) {
	var out [NumCameras]CameraFrame
	if a.pose == nil {
		return out, Pose{}, false
	}
	for _, f := range a.frames {
		if f == nil {
			return out, Pose{}, false
		}
	}
	for i, f := range a.frames {
		out[i] = *f
		a.frames[i] = nil
	}
	return out, *a.pose, true
}

// MQTTClient manages the broker connection and camera/pose subscriptions
type MQTTClient struct {
	client    mqtt.Client
	config    *Config
	assembler *FrameAssembler
	logger    *zap.Logger

	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT connects to the broker named by MQTT_BROKER or the config. It returns
// nil, nil when no broker is configured.
func InitMQTT(config *Config, assembler *FrameAssembler, logger *zap.Logger) (*MQTTClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		logger.Info("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config == nil {
		return nil, fmt.Errorf("MQTT enabled but no configuration provided")
	}

	client := &MQTTClient{
		config:    config,
		assembler: assembler,
		logger:    logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "floormesh"
	}
	// Several mappers may share a broker; keep IDs unique per process.
	opts.SetClientID(clientID + "-" + uuid.NewString()[:8])

	username := os.Getenv("MQTT_USERNAME")
	if username == "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(false) // handlers run concurrently; the assembler locks

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)
	go client.connectWithRetry()

	return client, nil
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		c.logger.Info("connecting to MQTT broker")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				c.logger.Info("connected to MQTT broker")
				c.setConnected(true)
				return
			}
			c.logger.Warn("MQTT connection failed", zap.Error(token.Error()))
		} else {
			c.logger.Warn("MQTT connection timeout")
		}

		c.logger.Info("retrying MQTT connection", zap.Duration("delay", retryDelay))
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to every camera topic and the pose topic.
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	for _, cam := range c.config.Cameras {
		id, err := ParseCameraID(cam.ID)
		if err != nil {
			c.logger.Warn("skipping camera", zap.String("camera", cam.ID), zap.Error(err))
			continue
		}
		if cam.Topic == "" {
			c.logger.Warn("camera has no topic configured", zap.String("camera", cam.ID))
			continue
		}
		c.subscribe(client, cam.Topic, c.createFrameHandler(id))
	}

	if topic := c.config.MQTT.PoseTopic; topic != "" {
		c.subscribe(client, topic, c.createPoseHandler())
	} else {
		c.logger.Warn("no pose topic configured; frames will never be mapped")
	}
}

func (c *MQTTClient) subscribe(client mqtt.Client, topic string, h mqtt.MessageHandler) {
	token := client.Subscribe(topic, 0, h)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		c.logger.Error("subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
		return
	}
	c.logger.Info("subscribed", zap.String("topic", topic))
}

// onConnectionLost is called when the MQTT connection is lost
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	c.logger.Warn("MQTT connection interrupted, auto-reconnect will retry", zap.Error(err))
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.logger.Info("MQTT reconnecting")
}

// createFrameHandler decodes PNG frames for one camera.
func (c *MQTTClient) createFrameHandler(id CameraID) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		frame, err := c.assembler.Frame(id, payload)
		if err != nil {
			c.logger.Warn("dropping undecodable frame",
				zap.String("camera", id.String()),
				zap.String("topic", msg.Topic()),
				zap.Int("bytes", len(payload)),
				zap.Error(err))
			return
		}
		c.assembler.AddFrame(id, frame)
	}
}

// createPoseHandler parses pose updates.
func (c *MQTTClient) createPoseHandler() mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		pose, err := ParsePose(msg.Payload())
		if err != nil {
			c.logger.Warn("dropping pose", zap.String("topic", msg.Topic()), zap.Error(err))
			return
		}
		c.assembler.SetPose(pose)
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.logger.Info("disconnecting from MQTT broker")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient with a provided mqtt.Client
// This is used for testing with mock clients
func newMQTTClientWithMock(client mqtt.Client, config *Config, assembler *FrameAssembler) *MQTTClient {
	return &MQTTClient{
		client:    client,
		config:    config,
		assembler: assembler,
		logger:    zap.NewNop(),
	}
}
