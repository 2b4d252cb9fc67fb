package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sensebridge/internal/ambient"
	"sensebridge/internal/api"
	"sensebridge/internal/catalog"
	"sensebridge/internal/config"
	"sensebridge/internal/dispatcher"
	"sensebridge/internal/drivers"
	"sensebridge/internal/kafka"
	"sensebridge/internal/logging"
	"sensebridge/internal/models"
	"sensebridge/internal/queue"
	"sensebridge/internal/ratelimit"
	"sensebridge/internal/sequencer"
	"sensebridge/internal/telemetry"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Config load failed:", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatal("Logger init failed:", err)
	}

	// Load event catalog
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Errorf("Catalog load failed: %v", err)
		log.Fatal("Catalog load failed:", err)
	}

	// Shared pipeline state
	intake := queue.New(cfg.Queue.Capacity)
	deduper := ratelimit.NewDeduper(cfg.Dedup.Window)
	tracker := ambient.NewTracker(cfg.Ambient.WindowSize, cfg.Ambient.DefaultLevel)
	hub := telemetry.NewHub(logger)

	// Build channel drivers and sequencers
	var seqs []*sequencer.Sequencer
	var closers []func()

	if cfg.Channels.HapticEnabled {
		driver := buildHapticDriver(cfg, logger, &closers)
		seqs = append(seqs, sequencer.New(models.ChannelHaptic, driver, cfg.Channels.HapticCooldown, cfg.Hardware.DriverTimeout, hub, logger))
	}
	if cfg.Channels.VisualEnabled {
		driver := buildVisualDriver(cfg, logger, &closers)
		seqs = append(seqs, sequencer.New(models.ChannelVisual, driver, cfg.Channels.VisualCooldown, cfg.Hardware.DriverTimeout, hub, logger))
	}

	var smartHome *drivers.MQTTDriver
	if cfg.Channels.SmartHomeEnabled {
		smartHome, err = drivers.NewMQTTDriver(drivers.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			Port:        cfg.MQTT.Port,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			LightTopic:  cfg.MQTT.LightTopic,
			EventPrefix: cfg.MQTT.EventPrefix,
			RatePerSec:  cfg.MQTT.RatePerSec,
		}, logger)
		if err != nil {
			logger.Errorf("Smart home integration disabled: %v", err)
		} else {
			closers = append(closers, smartHome.Close)
			seqs = append(seqs, sequencer.New(models.ChannelSmartHome, smartHome, cfg.Channels.SmartHomeCooldown, cfg.Hardware.DriverTimeout, hub, logger))
		}
	}

	// Dispatcher
	disp := dispatcher.New(intake, deduper, cat, seqs, hub, logger, cfg.ShutdownTimeout)
	disp.Start()

	forwardCtx, stopForwarders := context.WithCancel(context.Background())

	// Announce deliveries to home-automation listeners
	if smartHome != nil {
		go forwardSmartHomeEvents(forwardCtx, hub, smartHome, logger)
	}

	// Caregiver remote alerts on high-priority deliveries
	if cfg.Telegram.BotToken != "" && len(seqs) > 0 {
		caregiver, err := drivers.NewCaregiverNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Errorf("Caregiver alerts disabled: %v", err)
		} else {
			// alert once per event: follow a single channel's deliveries
			trigger := seqs[0].Channel().String()
			go forwardCaregiverAlerts(forwardCtx, hub, caregiver, trigger, logger)
		}
	}

	// Optional Kafka intake bridge for off-device detectors
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer(kafka.Config{
			Broker:        cfg.Kafka.Broker,
			Topic:         cfg.Kafka.Topic,
			GroupID:       cfg.Kafka.GroupID,
			MinConfidence: cfg.Ambient.MinConfidence,
		}, intake, logger)
		go consumer.Start(forwardCtx)
	}

	// Start API server
	handler := api.NewHandler(intake, disp, deduper, tracker, hub, logger, cfg.Ambient.Sensitivity, cfg.Ambient.MinConfidence)
	router := api.NewRouter(logger, handler)
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API run failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")

	stopForwarders()
	if consumer != nil {
		consumer.Close()
	}
	disp.Stop()
	for _, closeFn := range closers {
		closeFn()
	}
	logger.Infof("Service stopped")
}

// buildHapticDriver picks wearable relay, GPIO, or simulation for the haptic
// channel, in that order of configuration.
func buildHapticDriver(cfg config.Config, logger *logging.Logger, closers *[]func()) drivers.Driver {
	if cfg.Hardware.WearableAddr != "" {
		w := drivers.NewWearableDriver(cfg.Hardware.WearableAddr, cfg.Hardware.DriverTimeout, logger)
		*closers = append(*closers, func() { _ = w.Close() })
		return w
	}
	if cfg.Hardware.DriverMode == "gpio" {
		g, err := drivers.NewGPIODriver(cfg.Hardware.HapticPin, logger)
		if err == nil {
			*closers = append(*closers, func() { _ = g.Close() })
			return g
		}
		logger.Errorf("GPIO haptic driver unavailable, falling back to simulation: %v", err)
	}
	return drivers.NewNullDriver("haptic", logger)
}

func buildVisualDriver(cfg config.Config, logger *logging.Logger, closers *[]func()) drivers.Driver {
	if cfg.Hardware.DriverMode == "gpio" {
		g, err := drivers.NewGPIODriver(cfg.Hardware.LEDPin, logger)
		if err == nil {
			*closers = append(*closers, func() { _ = g.Close() })
			return g
		}
		logger.Errorf("GPIO visual driver unavailable, falling back to simulation: %v", err)
	}
	return drivers.NewNullDriver("visual", logger)
}

// forwardSmartHomeEvents republishes delivered notifications on the MQTT
// event topic tree.
func forwardSmartHomeEvents(ctx context.Context, hub *telemetry.Hub, d *drivers.MQTTDriver, logger *logging.Logger) {
	events, cancel := hub.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			if evt.Type != telemetry.TypeNotificationSent || evt.Channel != models.ChannelSmartHome.String() {
				continue
			}
			if err := d.PublishEvent(ctx, evt.EventType, models.ParsePriority(evt.Priority)); err != nil {
				logger.Errorf("Event publish failed: %v", err)
			}
		}
	}
}

// forwardCaregiverAlerts sends one Telegram message per high-priority
// delivery on the trigger channel.
func forwardCaregiverAlerts(ctx context.Context, hub *telemetry.Hub, n *drivers.CaregiverNotifier, trigger string, logger *logging.Logger) {
	events, cancel := hub.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			if evt.Type != telemetry.TypeNotificationSent || evt.Priority != models.PriorityHigh.String() {
				continue
			}
			// one alert per event, not one per channel
			if evt.Channel != trigger {
				continue
			}
			label := evt.Detail
			if label == "" {
				label = evt.EventType
			}
			if err := n.Notify(ctx, label, evt.EventType); err != nil {
				logger.Errorf("Caregiver alert failed: %v", err)
			}
		}
	}
}
