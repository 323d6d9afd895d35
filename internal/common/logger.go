package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const defaultTimeFormat = "15:04:05"

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the logger set by InitLogger, or a console logger
// when InitLogger has not run yet
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	logger := globalLogger
	loggerMutex.RUnlock()
	if logger != nil {
		return logger
	}

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(writerConfig(models.WriterConfiguration{Type: models.LogWriterTypeConsole}, defaultTimeFormat, true))
	}
	return globalLogger
}

// InitLogger builds the process logger from [logging] and stores it for GetLogger.
// File output goes to Dir, or logs/ next to the executable.
func InitLogger(config *Config) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	timeFormat := config.Logging.TimeFormat
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}
	textOutput := config.Logging.Format != "json"

	var toFile, toConsole bool
	for _, output := range config.Logging.Output {
		switch output {
		case "file":
			toFile = true
		case "stdout", "console":
			toConsole = true
		}
	}

	logger := arbor.NewLogger()

	if toFile {
		if dir, err := logDir(config.Logging.Dir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
		} else {
			fileCfg := writerConfig(models.WriterConfiguration{Type: models.LogWriterTypeFile}, timeFormat, textOutput)
			fileCfg.FileName = filepath.Join(dir, "specula.log")
			fileCfg.MaxSize = 100 * 1024 * 1024
			fileCfg.MaxBackups = 3
			logger = logger.WithFileWriter(fileCfg)
		}
	}

	if toConsole || !toFile {
		logger = logger.WithConsoleWriter(writerConfig(models.WriterConfiguration{Type: models.LogWriterTypeConsole}, timeFormat, textOutput))
	}

	logger = logger.WithLevelFromString(config.Logging.Level)
	globalLogger = logger

	return logger
}

func writerConfig(base models.WriterConfiguration, timeFormat string, text bool) models.WriterConfiguration {
	base.TimeFormat = timeFormat
	base.TextOutput = text
	return base
}

func logDir(configured string) (string, error) {
	dir := configured
	if dir == "" {
		execPath, err := os.Executable()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(filepath.Dir(execPath), "logs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
