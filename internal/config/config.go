package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendOpenCV      = "opencv"
	BackendONNXRuntime = "onnxruntime"
)

type Config struct {
	Port           int
	CameraURL      string
	CaptureTimeout time.Duration

	UploadDirectory         string
	ProcessedDirectory      string
	DetectorOutputDirectory string

	ModelPath           string
	DetectorBackend     string
	ONNXRuntimeLibrary  string
	ModelInputName      string
	ModelOutputName     string
	ClassNames          []string
	ConfidenceThreshold float64
	IoUThreshold        float64
	InferenceSize       int
	DetectorWorkers     int // Independent model instances, one inference at a time each

	PublicURL        string
	StreamRetryDelay time.Duration
	WatchInterval    time.Duration // 0 disables the background poller
	ReportFile       string
	LogDirectory     string

	MQTTHost      string
	MQTTPort      int
	MQTTUser      string
	MQTTPassword  string
	MQTTTopic     string
	AlertCooldown time.Duration

	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and builds the configuration from the environment.
func Load() *Config {
	// Missing .env is fine, real environment variables always win.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnvAsInt("PORT", 5000),
		CameraURL:      getEnv("CAMERA_URL", "http://192.168.1.9/capture"),
		CaptureTimeout: getEnvAsDuration("CAPTURE_TIMEOUT_SEC", 5, time.Second),

		UploadDirectory:         getEnv("UPLOAD_DIR", filepath.Join(".", "static", "uploads")),
		ProcessedDirectory:      getEnv("PROCESSED_DIR", filepath.Join(".", "static", "processed")),
		DetectorOutputDirectory: getEnv("DETECT_OUTPUT_DIR", filepath.Join(".", "runs", "detect")),

		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "best.onnx")),
		DetectorBackend:     strings.ToLower(getEnv("DETECTOR_BACKEND", BackendOpenCV)),
		ONNXRuntimeLibrary:  getEnv("ONNXRUNTIME_LIB", ""),
		ModelInputName:      getEnv("MODEL_INPUT_NAME", "images"),
		ModelOutputName:     getEnv("MODEL_OUTPUT_NAME", "output0"),
		ClassNames:          getEnvAsList("CLASS_NAMES", []string{"Fall"}),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25),
		IoUThreshold:        getEnvAsFloat("IOU_THRESHOLD", 0.7),
		InferenceSize:       getEnvAsInt("INFERENCE_SIZE", 640),
		DetectorWorkers:     getEnvAsInt("DETECTOR_WORKERS", 1),

		PublicURL:        strings.TrimSuffix(getEnv("PUBLIC_URL", ""), "/"),
		StreamRetryDelay: getEnvAsDuration("STREAM_RETRY_DELAY_MS", 500, time.Millisecond),
		WatchInterval:    getEnvAsDuration("WATCH_INTERVAL_SEC", 0, time.Second),
		ReportFile:       getEnv("REPORT_FILE", filepath.Join(".", "logs", "fall_detection_report.txt")),
		LogDirectory:     getEnv("LOG_DIR", filepath.Join(".", "logs")),

		MQTTHost:      getEnv("MQTT_HOST", ""),
		MQTTPort:      getEnvAsInt("MQTT_PORT", 1883),
		MQTTUser:      getEnv("MQTT_USER", ""),
		MQTTPassword:  getEnv("MQTT_PASSWORD", ""),
		MQTTTopic:     getEnv("MQTT_TOPIC", "fallwatch/alerts"),
		AlertCooldown: getEnvAsDuration("ALERT_COOLDOWN_SEC", 30, time.Second),

		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT_SEC", 5, time.Second),
	}
}

// Validate reports the first setting the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.CameraURL == "" {
		return fmt.Errorf("CAMERA_URL must not be empty")
	}
	if c.CaptureTimeout <= 0 {
		return fmt.Errorf("CAPTURE_TIMEOUT_SEC must be positive")
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0, 1], got %v", c.ConfidenceThreshold)
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("IOU_THRESHOLD must be in (0, 1], got %v", c.IoUThreshold)
	}
	if c.InferenceSize <= 0 || c.InferenceSize%32 != 0 {
		return fmt.Errorf("INFERENCE_SIZE must be a positive multiple of 32, got %d", c.InferenceSize)
	}
	if c.DetectorWorkers < 1 {
		return fmt.Errorf("DETECTOR_WORKERS must be at least 1")
	}
	if len(c.ClassNames) == 0 {
		return fmt.Errorf("CLASS_NAMES must name at least one class")
	}
	switch c.DetectorBackend {
	case BackendOpenCV, BackendONNXRuntime:
	default:
		return fmt.Errorf("unknown DETECTOR_BACKEND %q", c.DetectorBackend)
	}
	return nil
}

// MQTTEnabled reports whether fall alerts should be published to a broker.
func (c *Config) MQTTEnabled() bool {
	return c.MQTTHost != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads an integer count of unit.
func getEnvAsDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * unit
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
