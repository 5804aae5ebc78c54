package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	FATAL Level = iota
	ERROR
	WARNING
	INFO
	TRACE
)

var levelStr = [...]string{"FATAL", "ERROR", "WARNING", "INFO", "TRACE"}

// String 返回级别名称
func (l Level) String() string {
	if l < FATAL || l > TRACE {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelStr[l]
}

// ParseLevel 解析配置中的级别名称，大小写不敏感
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARN" {
		name = "WARNING"
	}
	for i, str := range levelStr {
		if str == name {
			return Level(i), nil
		}
	}
	return INFO, fmt.Errorf("未知日志级别: %q", s)
}

type Logger struct {
	mu       sync.Mutex
	level    Level
	logger   *log.Logger
	file     *os.File
	filePath string
	maxSize  int64 // 单位: 字节
	toStdout bool
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = &Logger{
		level:    INFO,
		logger:   log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile),
		toStdout: true,
	}
)

// InitLogger 初始化日志，filePath为空则输出到终端，否则输出到文件
func InitLogger(level Level, filePath string, maxSizeMB int64, toStdout bool) error {
	var output io.Writer
	var file *os.File
	var err error
	if filePath != "" {
		dir := filepath.Dir(filePath)
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return err
		}
		file, err = os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		output = file
		if toStdout {
			output = io.MultiWriter(file, os.Stdout)
		}
	} else {
		output = os.Stdout
	}
	l := &Logger{
		level:    level,
		logger:   log.New(output, "", log.Ldate|log.Ltime|log.Lshortfile),
		file:     file,
		filePath: filePath,
		maxSize:  maxSizeMB * 1024 * 1024,
		toStdout: toStdout,
	}
	defaultMu.Lock()
	old := defaultLogger
	defaultLogger = l
	defaultMu.Unlock()
	if old != nil && old.file != nil {
		_ = old.file.Close()
	}
	return nil
}

// SetOutput 将日志重定向到 w（测试中用于捕获输出），不做文件轮转
func SetOutput(w io.Writer) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = &Logger{
		level:  defaultLogger.level,
		logger: log.New(w, "", log.Lmsgprefix),
	}
}

// SetLevel 调整默认日志级别
func SetLevel(level Level) {
	l := current()
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// GetLevel 返回默认日志级别
func GetLevel() Level {
	l := current()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func (l *Logger) rotateIfNeeded() {
	if l.file == nil || l.filePath == "" || l.maxSize <= 0 {
		return
	}
	info, err := l.file.Stat()
	if err != nil {
		return
	}
	if info.Size() < l.maxSize {
		return
	}
	err = l.file.Close()
	if err != nil {
		return
	}
	backupName := l.filePath + "." + time.Now().Format("20060102_150405")
	_ = os.Rename(l.filePath, backupName)
	file, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err == nil {
		l.file = file
		if l.toStdout {
			l.logger.SetOutput(io.MultiWriter(file, os.Stdout))
		} else {
			l.logger.SetOutput(file)
		}
	}
}

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level > l.level {
		return
	}
	l.rotateIfNeeded()
	prefix := "[" + levelStr[level] + "] "
	l.logger.SetPrefix(prefix)
	err := l.logger.Output(3, formatLog(format, v...))
	if err != nil {
		return
	}
	if level == FATAL {
		os.Exit(1)
	}
}

func formatLog(format string, v ...interface{}) string {
	if len(v) == 0 {
		return format
	}
	return fmt.Sprintf(format, v...)
}

// Fatal 对外接口
func Fatal(format string, v ...interface{})   { current().logf(FATAL, format, v...) }
func Error(format string, v ...interface{})   { current().logf(ERROR, format, v...) }
func Warning(format string, v ...interface{}) { current().logf(WARNING, format, v...) }
func Info(format string, v ...interface{})    { current().logf(INFO, format, v...) }
func Trace(format string, v ...interface{})   { current().logf(TRACE, format, v...) }
