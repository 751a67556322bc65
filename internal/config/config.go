package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Environment string
	LogLevel    string
	Port        int

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Device identity (file is written by the BLE provisioning channel,
	// we only ever read it)
	DeviceIDFile    string
	DefaultDeviceID string

	// Camera
	CameraDevice string
	FrameWidth   int
	FrameHeight  int
	FrameRate    float64
	CaptureCodec string

	// Clips
	ClipDir      string
	ClipDuration time.Duration
	RawExt       string
	ConvertedExt string
	MinClipBytes int64

	// Motion detection
	PollInterval     time.Duration
	MotionThreshold  float32
	DilateIterations int
	MinMotionArea    float64

	// Live view
	StreamQuality int

	// Conversion
	FFmpegBin string

	// Upload
	UploadURL     string
	UploadTimeout time.Duration
	UploadWorkers int
	UploadBacklog int

	// Local file cleanup retry policy
	DeleteAttempts uint64
	DeleteBackoff  time.Duration

	// Retention
	CleanupTTL      time.Duration
	CleanupInterval time.Duration

	// Liveness / self-healing
	HeartbeatInterval time.Duration
	IdleCheckInterval time.Duration
	MaxIdle           time.Duration
	CorruptThreshold  int
	RebootCommand     string

	// NATS event publishing (optional)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	EventSubjectPrefix string

	// Graceful shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Environment: getEnv("ENVIRONMENT", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnvInt("PORT", 8000),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Device identity
		DeviceIDFile:    getEnv("DEVICE_ID_FILE", "/etc/visitwise/device_id.txt"),
		DefaultDeviceID: getEnv("DEFAULT_DEVICE_ID", "DEV_DEFAULT"),

		// Camera
		CameraDevice: getEnv("CAMERA_DEVICE", "0"),
		FrameWidth:   getEnvInt("FRAME_WIDTH", 1280),
		FrameHeight:  getEnvInt("FRAME_HEIGHT", 1080),
		FrameRate:    getEnvFloat("FRAME_RATE", 30.0),
		CaptureCodec: getEnv("CAPTURE_CODEC", "MJPG"),

		// Clips
		ClipDir:      getEnv("CLIP_DIR", defaultClipDir()),
		ClipDuration: getEnvDuration("CLIP_DURATION", 5*time.Second),
		RawExt:       getEnv("RAW_EXT", ".avi"),
		ConvertedExt: getEnv("CONVERTED_EXT", ".mp4"),
		MinClipBytes: getEnvInt64("MIN_CLIP_BYTES", 4096),

		// Motion detection
		PollInterval:     getEnvDuration("POLL_INTERVAL", 50*time.Millisecond),
		MotionThreshold:  float32(getEnvFloat("MOTION_THRESHOLD", 30)),
		DilateIterations: getEnvInt("DILATE_ITERATIONS", 2),
		MinMotionArea:    getEnvFloat("MIN_MOTION_AREA", 500),

		// Live view
		StreamQuality: getEnvInt("STREAM_QUALITY", 80),

		// Conversion
		FFmpegBin: getEnv("FFMPEG_BIN", "ffmpeg"),

		// Upload
		UploadURL:     getEnv("UPLOAD_URL", "https://visit-wise-llm.jayaprakash.cloud/upload-video"),
		UploadTimeout: getEnvDuration("UPLOAD_TIMEOUT", 20*time.Second),
		UploadWorkers: getEnvInt("UPLOAD_WORKERS", 3),
		UploadBacklog: getEnvInt("UPLOAD_BACKLOG", 16),

		// Local file cleanup retry policy
		DeleteAttempts: uint64(getEnvInt("DELETE_ATTEMPTS", 3)),
		DeleteBackoff:  getEnvDuration("DELETE_BACKOFF", 200*time.Millisecond),

		// Retention
		CleanupTTL:      getEnvDuration("CLEANUP_TTL", 60*time.Second),
		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", 30*time.Second),

		// Liveness / self-healing
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 5*time.Second),
		IdleCheckInterval: getEnvDuration("IDLE_CHECK_INTERVAL", 30*time.Second),
		MaxIdle:           getEnvDuration("MAX_IDLE", 15*time.Minute),
		CorruptThreshold:  getEnvInt("CORRUPT_THRESHOLD", 3),
		RebootCommand:     getEnv("REBOOT_COMMAND", "systemctl reboot"),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		EventSubjectPrefix: getEnv("EVENT_SUBJECT_PREFIX", "edge"),

		// Graceful shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func defaultClipDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/visitwise/videos"
	}
	return home + "/videos"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
