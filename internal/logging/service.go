package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func NewServiceLogger(deviceID, service string) zerolog.Logger {
	return log.With().Str("device_id", deviceID).Str("service", service).Logger()
}

func WithClip(base zerolog.Logger, clipPath string) zerolog.Logger {
	return base.With().Str("clip", clipPath).Logger()
}
