package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the process logger for env and installs it as the zap global.
func New(env string) (*zap.SugaredLogger, error) {
	logger, err := setLogger(env)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger.Sugar(), nil
}

func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production", "prod":
		return zap.NewProduction()
	case "development", "dev", "":
		return zap.NewDevelopment()
	case "local":
		return zap.NewExample(), nil
	default:
		return nil, fmt.Errorf("unknown environment %q", env)
	}
}
