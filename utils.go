package boxspiegel

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func StringInSlice(s string, slice []string) bool {
	for _, x := range slice {
		if s == x {
			return true
		}
	}
	return false
}

// NewLogger builds the development (colored console) or production (JSON)
// zap logger.
func NewLogger(loggerType string) (*zap.Logger, error) {
	switch loggerType {
	case "development":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	case "production":
		return zap.NewProduction()
	}
	return nil, fmt.Errorf("%w: %s is not a valid logger type", ErrConfiguration, loggerType)
}
