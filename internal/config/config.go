package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Logging struct {
		Dir   string
		Level string
	}
	Queue struct {
		Capacity int
	}
	Dedup struct {
		Window time.Duration
	}
	Channels struct {
		HapticEnabled     bool
		VisualEnabled     bool
		SmartHomeEnabled  bool
		HapticCooldown    time.Duration
		VisualCooldown    time.Duration
		SmartHomeCooldown time.Duration
	}
	Ambient struct {
		WindowSize        int
		CalibrationWindow time.Duration
		DefaultLevel      float64
		Sensitivity       float64
		MinConfidence     float64
	}
	Hardware struct {
		DriverMode    string // "gpio" or "null"
		HapticPin     int
		LEDPin        int
		WearableAddr  string
		DriverTimeout time.Duration
	}
	MQTT struct {
		Broker      string
		Port        int
		Username    string
		Password    string
		LightTopic  string
		EventPrefix string
		RatePerSec  int
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Telegram struct {
		BotToken string
		ChatID   int64
	}
	API struct {
		Port string
	}
	CatalogPath     string
	ShutdownTimeout time.Duration
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Logging settings
	cfg.Logging.Dir = getenv("LOG_DIR", "logs")
	cfg.Logging.Level = getenv("LOG_LEVEL", "info")

	// Intake queue
	cfg.Queue.Capacity = getenvInt("QUEUE_CAPACITY", 256)

	// Deduplication window
	cfg.Dedup.Window = getenvDuration("DEDUP_WINDOW", 3*time.Second)

	// Channel enables and cooldowns
	cfg.Channels.HapticEnabled = getenvBool("HAPTIC_ENABLED", true)
	cfg.Channels.VisualEnabled = getenvBool("VISUAL_ENABLED", true)
	cfg.Channels.SmartHomeEnabled = getenvBool("SMART_HOME_ENABLED", false)
	cfg.Channels.HapticCooldown = getenvDuration("HAPTIC_COOLDOWN", 5*time.Second)
	cfg.Channels.VisualCooldown = getenvDuration("VISUAL_COOLDOWN", 3*time.Second)
	cfg.Channels.SmartHomeCooldown = getenvDuration("SMART_HOME_COOLDOWN", 3*time.Second)

	// Ambient tracking
	cfg.Ambient.WindowSize = getenvInt("AMBIENT_WINDOW_SIZE", 50)
	cfg.Ambient.CalibrationWindow = getenvDuration("AMBIENT_CALIBRATION_WINDOW", 3*time.Second)
	cfg.Ambient.DefaultLevel = getenvFloat("AMBIENT_DEFAULT_LEVEL", 0.01)
	cfg.Ambient.Sensitivity = getenvFloat("SOUND_SENSITIVITY", 0.7)
	cfg.Ambient.MinConfidence = getenvFloat("MIN_CONFIDENCE", 0.6)

	// Hardware drivers
	cfg.Hardware.DriverMode = getenv("DRIVER_MODE", "null")
	cfg.Hardware.HapticPin = getenvInt("HAPTIC_PIN", 18)
	cfg.Hardware.LEDPin = getenvInt("LED_PIN", 23)
	cfg.Hardware.WearableAddr = os.Getenv("WEARABLE_ADDR")
	cfg.Hardware.DriverTimeout = getenvDuration("DRIVER_TIMEOUT", 2*time.Second)

	// Smart home MQTT
	cfg.MQTT.Broker = os.Getenv("MQTT_BROKER")
	cfg.MQTT.Port = getenvInt("MQTT_PORT", 1883)
	cfg.MQTT.Username = os.Getenv("MQTT_USERNAME")
	cfg.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	cfg.MQTT.LightTopic = getenv("MQTT_LIGHT_TOPIC", "sensebridge/lights")
	cfg.MQTT.EventPrefix = getenv("MQTT_EVENT_PREFIX", "sensebridge/events")
	cfg.MQTT.RatePerSec = getenvInt("MQTT_RATE_PER_SEC", 5)

	// Optional Kafka intake bridge
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = getenv("KAFKA_TOPIC", "detector_events")
	cfg.Kafka.GroupID = getenv("KAFKA_GROUP_ID", "sensebridge")

	// Optional caregiver alerts
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ChatID = id
	}

	// API settings
	cfg.API.Port = getenv("API_PORT", ":8093")

	cfg.CatalogPath = os.Getenv("CATALOG_PATH")
	cfg.ShutdownTimeout = getenvDuration("SHUTDOWN_TIMEOUT", 2*time.Second)

	// Validate settings that have no sane fallback
	missing := []string{}
	if cfg.Channels.SmartHomeEnabled && cfg.MQTT.Broker == "" {
		missing = append(missing, "MQTT_BROKER")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}
	if cfg.Queue.Capacity <= 0 {
		return Config{}, fmt.Errorf("QUEUE_CAPACITY must be positive, got %d", cfg.Queue.Capacity)
	}
	if cfg.Ambient.Sensitivity < 0 || cfg.Ambient.Sensitivity > 1 {
		return Config{}, fmt.Errorf("SOUND_SENSITIVITY must be in [0,1], got %v", cfg.Ambient.Sensitivity)
	}
	if cfg.Hardware.DriverMode != "gpio" && cfg.Hardware.DriverMode != "null" {
		return Config{}, fmt.Errorf("DRIVER_MODE must be \"gpio\" or \"null\", got %q", cfg.Hardware.DriverMode)
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
