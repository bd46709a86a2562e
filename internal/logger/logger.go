// Package logger is the process-wide structured logger: zap writing JSON
// lines to a size-rotated file, with old files zipped after the retention
// period.
package logger

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerService struct {
	Config        map[string]interface{}
	file          *os.File
	mu            sync.Mutex
	stopCh        chan struct{}
	wg            sync.WaitGroup
	currentLog    string
	maxFileBytes  int64
	retentionDays int
	folderPath    string
	level         zapcore.Level
	console       bool
	zl            *zap.Logger
}

func toInt(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return 0
}

func NewLoggerService(config map[string]interface{}) *LoggerService {
	folder, _ := config["folder_path"].(string)
	if folder == "" {
		folder = "./logs"
	}
	level := zapcore.InfoLevel
	if s, ok := config["level"].(string); ok && s != "" {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			level = zapcore.InfoLevel
		}
	}
	console, _ := config["console"].(bool)
	return &LoggerService{
		Config:        config,
		stopCh:        make(chan struct{}),
		maxFileBytes:  int64(toInt(config["max_file_mb"])) * 1024 * 1024,
		retentionDays: toInt(config["retention_days"]),
		folderPath:    folder,
		level:         level,
		console:       console,
		zl:            zap.NewNop(),
	}
}

func (l *LoggerService) Name() string {
	return "logger"
}

// Write sends p to the current log file. It is the zap sink, so rotation
// swaps files under the same lock.
func (l *LoggerService) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return len(p), nil
	}
	return l.file.Write(p)
}

func (l *LoggerService) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Sync()
}

func (l *LoggerService) Start() error {
	l.mu.Lock()
	if err := os.MkdirAll(l.folderPath, 0755); err != nil {
		l.mu.Unlock()
		return err
	}
	logFile := l.nextLogFileName()
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.file = file
	l.currentLog = logFile
	l.mu.Unlock()

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(l), l.level)}
	if l.console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stdout), l.level))
	}
	l.zl = zap.New(zapcore.NewTee(cores...))
	l.zl.Info("logger started", zap.String("file", logFile))

	// background goroutine for rotation and retention
	l.wg.Add(1)
	go l.backgroundWorker()

	return nil
}

func (l *LoggerService) Stop() error {
	close(l.stopCh)
	l.wg.Wait()
	l.zl.Info("logger stopping")
	_ = l.zl.Sync()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Logger returns the zap logger; a no-op logger before Start.
func (l *LoggerService) Logger() *zap.Logger {
	return l.zl
}

func (l *LoggerService) CurrentFile() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentLog
}

func (l *LoggerService) nextLogFileName() string {
	timestamp := time.Now().Format("20060102_150405.000000")
	return filepath.Join(l.folderPath, fmt.Sprintf("app_%s.log", timestamp))
}

func (l *LoggerService) rotateIfNeeded() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil || l.maxFileBytes <= 0 {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < l.maxFileBytes {
		return nil
	}
	newLog := l.nextLogFileName()
	file, err := os.OpenFile(newLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file.Close()
	l.file = file
	l.currentLog = newLog
	return nil
}

func (l *LoggerService) backgroundWorker() {
	defer l.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	retentionTicker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	defer retentionTicker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			if err := l.rotateIfNeeded(); err != nil {
				l.zl.Warn("log rotation failed", zap.Error(err))
			}
		case <-retentionTicker.C:
			if err := l.zipAndCleanOldLogs(); err != nil {
				l.zl.Warn("log retention failed", zap.Error(err))
			}
		}
	}
}

// zipAndCleanOldLogs moves .log files older than the retention period into
// a dated zip archive.
func (l *LoggerService) zipAndCleanOldLogs() error {
	if l.retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -l.retentionDays)
	files, err := os.ReadDir(l.folderPath)
	if err != nil {
		return err
	}
	current := l.CurrentFile()
	var old []string
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".log" {
			continue
		}
		fullPath := filepath.Join(l.folderPath, f.Name())
		info, err := f.Info()
		if err != nil || info.ModTime().After(cutoff) || fullPath == current {
			continue
		}
		old = append(old, fullPath)
	}
	if len(old) == 0 {
		return nil
	}

	zipName := filepath.Join(l.folderPath, fmt.Sprintf("logs_%s.zip", time.Now().Format("20060102_150405")))
	zipFile, err := os.Create(zipName)
	if err != nil {
		return err
	}
	defer zipFile.Close()
	zipWriter := zip.NewWriter(zipFile)

	for _, path := range old {
		w, err := zipWriter.Create(filepath.Base(path))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, src)
		src.Close()
		if err != nil {
			return err
		}
	}
	if err := zipWriter.Close(); err != nil {
		return err
	}
	for _, path := range old {
		os.Remove(path)
	}
	return nil
}

// LogAudit records an audit trail entry.
func (l *LoggerService) LogAudit(msg string, fields ...zap.Field) {
	l.zl.Info(msg, append(fields, zap.Bool("audit", true))...)
}

var GlobalLogger *LoggerService

func SetGlobalLogger(l *LoggerService) {
	GlobalLogger = l
}

// L is the global zap logger, or a no-op logger when none is set.
func L() *zap.Logger {
	if GlobalLogger == nil {
		return zap.NewNop()
	}
	return GlobalLogger.zl
}

// Audit writes to the global audit trail when a logger is set.
func Audit(msg string, fields ...zap.Field) {
	if GlobalLogger != nil {
		GlobalLogger.LogAudit(msg, fields...)
	}
}
