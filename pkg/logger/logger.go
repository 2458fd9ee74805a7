package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	log "github.com/sirupsen/logrus"
)

// LogFormatter renders "timestamp [LEVEL] message" lines.
type LogFormatter struct {
	TimestampFormat string
	LevelDesc       []string
}

// Format formats one entry in the custom format.
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)
	level := f.LevelDesc[entry.Level]
	msg := fmt.Sprintf("%s [%s] %s\n", timestamp, level, entry.Message)
	return []byte(msg), nil
}

// Init configures logrus with hourly file rotation. LOG_LEVEL=DEBUG enables
// debug output; LOG_DIRECTORY and LOG_FILE_MAX_AGE control the rotation
// target. When the log directory cannot be prepared, logging falls back to
// stdout instead of failing startup.
func Init() {
	log.SetFormatter(&LogFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		LevelDesc:       []string{"PANIC", "FATAL", "ERROR", "WARN", "INFO", "DEBUG", "TRACE"},
	})

	if os.Getenv("LOG_LEVEL") == "DEBUG" {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	logDirectory := os.Getenv("LOG_DIRECTORY")
	if logDirectory == "" {
		logDirectory = "./logs"
	}

	maxAgeDays, err := strconv.Atoi(os.Getenv("LOG_FILE_MAX_AGE"))
	if err != nil || maxAgeDays <= 0 {
		maxAgeDays = 2
	}

	if err := os.MkdirAll(logDirectory, 0755); err != nil {
		fmt.Println("Warning: cannot create log directory, logging to stdout:", err)
		log.SetOutput(os.Stdout)
		return
	}

	rl, err := rotatelogs.New(
		filepath.Join(logDirectory, "%Y-%m-%d-%H.log"),
		rotatelogs.WithLinkName(filepath.Join(logDirectory, "current.log")),
		rotatelogs.WithRotationTime(time.Hour),
		rotatelogs.WithMaxAge(time.Duration(maxAgeDays)*24*time.Hour),
	)
	if err != nil {
		fmt.Println("Warning: log rotation unavailable, logging to stdout:", err)
		log.SetOutput(os.Stdout)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rl))
}

// Info logs an informational message.
func Info(message string) {
	log.Info(message)
}

// Error logs an error message.
func Error(message string) {
	log.Error(message)
}

// Warn logs a warning message.
func Warn(message string) {
	log.Warn(message)
}

// Debug logs a debug message.
func Debug(message string) {
	log.Debug(message)
}

// Infof logs a formatted informational message.
func Infof(format string, args ...interface{}) {
	Info(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error message.
func Errorf(format string, args ...interface{}) {
	Error(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning message.
func Warnf(format string, args ...interface{}) {
	Warn(fmt.Sprintf(format, args...))
}

// Debugf logs a formatted debug message.
func Debugf(format string, args ...interface{}) {
	Debug(fmt.Sprintf(format, args...))
}
