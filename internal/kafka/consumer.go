package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"sensebridge/internal/logging"
	"sensebridge/internal/models"
	"sensebridge/internal/queue"
)

// Config carries broker settings for the detector-event bridge.
type Config struct {
	Broker        string
	Topic         string
	GroupID       string
	MinConfidence float64
}

// Consumer bridges detector events published on Kafka into the intake queue.
// Used when sound classification runs on another host; on-device detectors
// submit through the API instead.
type Consumer struct {
	reader        *kafka.Reader
	intake        *queue.Intake
	logger        *logging.Logger
	minConfidence float64
}

// NewConsumer builds the bridge reader.
func NewConsumer(cfg Config, intake *queue.Intake, logger *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Broker},
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Consumer{reader: r, intake: intake, logger: logger, minConfidence: cfg.MinConfidence}
}

// Start consumes until ctx is cancelled. Malformed messages are logged and
// skipped; they never stop the bridge.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Infof("Kafka intake bridge started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			c.logger.Errorf("Read message failed: %v", err)
			continue
		}

		c.bridge(msg.Value)
	}
}

// bridge validates one detector message and submits it to the intake.
func (c *Consumer) bridge(value []byte) {
	var evt struct {
		EventType  string  `json:"event_type"`
		Confidence float64 `json:"confidence"`
		Payload    string  `json:"payload"`
	}
	if err := json.Unmarshal(value, &evt); err != nil {
		c.logger.Errorf("Unmarshal message failed: %v", err)
		return
	}
	if evt.EventType == "" || evt.Confidence < 0 || evt.Confidence > 1 {
		c.logger.Errorf("Invalid message: missing event_type or confidence out of range")
		return
	}
	if evt.Confidence < c.minConfidence {
		c.logger.Debugf("Skipping %s: confidence %.2f below threshold %.2f", evt.EventType, evt.Confidence, c.minConfidence)
		return
	}

	intent := models.NewEventIntent(evt.EventType, evt.Confidence, evt.Payload)
	if err := c.intake.Submit(intent); err != nil {
		c.logger.Warnf("Intake rejected %s: %v", evt.EventType, err)
		return
	}
	c.logger.Debugf("Bridged Kafka event: %s (confidence %.2f)", evt.EventType, evt.Confidence)
}

// Close releases the reader.
func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
