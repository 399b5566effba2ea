package config

import (
	"context"
	"os"

	"github.com/mmdatafocus/construct_backend/appctx"
	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.ErrorLevel)
	logg.SetOutput(os.Stdout)
}

// LogError writes a structured error entry. The request's correlation id is
// carried along when the context has one, so a failure can be traced back to
// the request that hit it.
func LogError(ctx context.Context, logger *logrus.Logger, moduleName string, funcName string, contextInfo string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  contextInfo,
	}
	if data != nil {
		fields["data"] = data
	}
	if ctx != nil {
		if v, ok := ctx.Value(appctx.ContextKeyCorrelationId).(string); ok && v != "" {
			fields["correlation_id"] = v
		}
	}
	logger.WithFields(fields).Error(err.Error())
}
