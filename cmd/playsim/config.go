package main

import (
	"log/slog"
	"time"
)

type playsimConfig struct {
	APIURL           string        `env:"KP_API_URL" envDefault:"http://localhost:8080"`
	PlayerID         uint64        `env:"KP_PLAYER_ID"`
	CachePath        string        `env:"KP_CACHE_PATH" envDefault:"kp-cache.json"`
	LockoutDuration  time.Duration `env:"KP_LOCKOUT_DURATION" envDefault:"10s"`
	RestoreFloor     int64         `env:"KP_RESTORE_FLOOR" envDefault:"50"`
	CueThreshold     time.Duration `env:"KP_CUE_THRESHOLD" envDefault:"5s"`
	ServerCompletion bool          `env:"KP_SERVER_COMPLETION" envDefault:"false"`
	RequestTimeout   time.Duration `env:"KP_REQUEST_TIMEOUT" envDefault:"10s"`
	LogLevel         slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout  time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}
