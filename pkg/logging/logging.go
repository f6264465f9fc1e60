// Package logging routes the standard logger to stdout and a rotating file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures rotating file logs at <exe dir>/logs/<app>.log and also
// writes to stdout. The returned writer is closed on shutdown.
func Setup(app string) io.Closer {
	exe, _ := os.Executable()
	return SetupDir(filepath.Join(filepath.Dir(exe), "logs"), app)
}

// SetupDir is Setup with an explicit log directory.
func SetupDir(dir, app string) io.Closer {
	_ = os.MkdirAll(dir, 0o755)
	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, app+".log"),
		MaxSize:    EnvInt("NCONSOLE_LOG_MAX_SIZE_MB", 20),
		MaxBackups: EnvInt("NCONSOLE_LOG_MAX_BACKUPS", 5),
		MaxAge:     EnvInt("NCONSOLE_LOG_MAX_AGE_DAYS", 7),
		Compress:   false,
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(io.MultiWriter(os.Stdout, w))
	return w
}

// EnvInt reads a positive integer from the environment, falling back to def.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n
		}
	}
	return def
}
