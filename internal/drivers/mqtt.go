package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"

	"sensebridge/internal/logging"
	"sensebridge/internal/models"
)

// lightCommand is the smart-light payload published on activation.
type lightCommand struct {
	State      string  `json:"state"`
	Brightness int     `json:"brightness"`
	Transition float64 `json:"transition"`
}

// eventMessage announces a delivered notification on the event topic tree.
type eventMessage struct {
	Event     string `json:"event"`
	Priority  string `json:"priority"`
	Timestamp int64  `json:"timestamp"`
}

// MQTTDriver drives smart-home lights through an MQTT broker and publishes
// delivered notifications under an event topic prefix. Publishes share one
// rate limiter so a pattern with fast steps cannot flood the broker.
type MQTTDriver struct {
	client      mqtt.Client
	lightTopic  string
	eventPrefix string
	limiter     *rate.Limiter
	logger      *logging.Logger
}

// MQTTConfig carries broker settings for NewMQTTDriver.
type MQTTConfig struct {
	Broker      string
	Port        int
	Username    string
	Password    string
	LightTopic  string
	EventPrefix string
	RatePerSec  int
}

// NewMQTTDriver connects to the broker and returns the driver. Connection
// failure is an error here; once connected, paho reconnects on its own.
func NewMQTTDriver(cfg MQTTConfig, logger *logging.Logger) (*MQTTDriver, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		SetClientID(fmt.Sprintf("sensebridge-%d", time.Now().UnixNano())).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to MQTT broker %s:%d: timeout", cfg.Broker, cfg.Port)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s:%d: %w", cfg.Broker, cfg.Port, err)
	}
	logger.Infof("Connected to MQTT broker at %s:%d", cfg.Broker, cfg.Port)

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	return &MQTTDriver{
		client:      client,
		lightTopic:  cfg.LightTopic,
		eventPrefix: cfg.EventPrefix,
		limiter:     rate.NewLimiter(rate.Limit(perSec), perSec),
		logger:      logger,
	}, nil
}

func (d *MQTTDriver) publish(ctx context.Context, topic string, v interface{}) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mqtt publish rate limit: %w", err)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal mqtt payload: %w", err)
	}

	token := d.client.Publish(topic, 0, false, payload)

	wait := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (d *MQTTDriver) Activate(ctx context.Context, intensity float64) error {
	return d.publish(ctx, d.lightTopic, lightCommand{
		State:      "ON",
		Brightness: int(intensity * 255),
		Transition: 0.5,
	})
}

func (d *MQTTDriver) Deactivate(ctx context.Context) error {
	return d.publish(ctx, d.lightTopic, lightCommand{State: "OFF"})
}

// PublishEvent announces a delivered notification to home-automation
// listeners on <prefix>/<event_type>.
func (d *MQTTDriver) PublishEvent(ctx context.Context, eventType string, priority models.Priority) error {
	topic := fmt.Sprintf("%s/%s", d.eventPrefix, eventType)
	return d.publish(ctx, topic, eventMessage{
		Event:     eventType,
		Priority:  priority.String(),
		Timestamp: time.Now().Unix(),
	})
}

// Close disconnects from the broker.
func (d *MQTTDriver) Close() {
	d.client.Disconnect(250)
}
