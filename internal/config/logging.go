package config

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a prefixed logger. When logFile is non-empty the logger
// writes to a size-rotated file so a long-running daemon doesn't grow logs
// without bound; otherwise it writes to stderr.
func NewLogger(prefix, logFile string) *log.Logger {
	var w io.Writer = os.Stderr
	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}
