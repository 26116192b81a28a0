package storage

import (
	"BikeRentalDashboard/src/config"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误
)

// Logger 日志记录器结构体
type Logger struct {
	path        string        // 日志文件路径
	file        *os.File      // 日志文件句柄
	echo        io.Writer     // 同时输出到控制台，可为nil
	level       LogLevel      // 最低输出级别
	mu          sync.Mutex    // 互斥锁，保证并发安全
	subscribers []chan string // 订阅者通道列表
	now         func() time.Time
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//
// 返回值:
//
//	*Logger: 日志记录器实例
//	error: 创建过程中的错误
func NewLogger(filename string) (*Logger, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	// 打开或创建日志文件，权限设置为0644
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &Logger{
		path:  filename,
		file:  file,
		level: INFO,
		now:   time.Now,
	}, nil
}

// SetEcho 设置控制台输出
func (l *Logger) SetEcho(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.echo = w
}

// SetLevel 设置最低输出级别
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Path 返回当前日志文件路径
func (l *Logger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Close 关闭日志文件并关闭所有订阅通道
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ch := range l.subscribers {
		close(ch)
	}
	l.subscribers = nil

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Reopen 重新打开日志文件(SIGHUP 时调用)
// 参数：
// filename：新文件的路径，空字符串表示沿用原路径
// 返回值：
// error：重建文件时的错误
func (l *Logger) Reopen(filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if filename == "" {
		filename = l.path
	}

	// 关闭旧文件
	if l.file != nil {
		_ = l.file.Close()
	}

	// 重新打开
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.file = nil
		return err
	}
	l.file = file
	l.path = filename
	return nil
}

// Log 记录日志方法
// 参数:
//
//	level: 日志级别
//	message: 日志消息内容
func (l *Logger) Log(level LogLevel, message string) {
	l.mu.Lock()         // 加锁保证线程安全
	defer l.mu.Unlock() // 方法结束时自动解锁

	if level < l.level {
		return
	}

	// 格式化日志条目: [时间] 级别: 消息
	entry := fmt.Sprintf("[%s] %s: %s\n",
		l.now().Format("2006-01-02 15:04:05"),
		level.String(),
		message)

	if l.file != nil {
		l.file.WriteString(entry)
	}
	if l.echo != nil {
		io.WriteString(l.echo, entry)
	}

	// 通知所有订阅者
	for _, ch := range l.subscribers {
		select {
		case ch <- entry: // 尝试发送日志条目
		default: // 如果通道已满则跳过
		}
	}
}

// CheckRotate 文件超过 cfg.LogMaxSize 时轮转
func (l *Logger) CheckRotate(cfg *config.Config) error {
	maxSize, err := config.ParseSize(cfg.LogMaxSize)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.file == nil {
		l.mu.Unlock()
		return nil
	}
	info, err := l.file.Stat()
	l.mu.Unlock()
	if err != nil {
		return err
	}

	if info.Size() > maxSize {
		return l.rotateLog()
	}
	return nil
}

// rotateLog 将当前文件重命名为带时间戳的备份文件后重新打开
func (l *Logger) rotateLog() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		ext := filepath.Ext(l.path)
		backup := fmt.Sprintf("%s.%s%s", strings.TrimSuffix(l.path, ext), l.now().Format("20060102150405"), ext)
		if err := os.Rename(l.path, backup); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.file = nil
		return err
	}
	l.file = file
	return nil
}

// Subscribe 订阅日志消息
// 返回值:
//
//	<-chan string: 只读通道，用于接收日志消息
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 创建带缓冲的通道(容量100)
	ch := make(chan string, 100)
	// 将新通道加入订阅者列表
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (l *Logger) Unsubscribe(sub <-chan string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, ch := range l.subscribers {
		if ch == sub {
			close(ch)
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			return
		}
	}
}

// String 实现LogLevel的String方法
// 返回值:
//
//	string: 日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string)   { l.Log(DEBUG, msg) }   // 记录调试信息
func (l *Logger) Info(msg string)    { l.Log(INFO, msg) }    // 记录普通信息
func (l *Logger) Warning(msg string) { l.Log(WARNING, msg) } // 记录警告信息
func (l *Logger) Error(msg string)   { l.Log(ERROR, msg) }   // 记录错误信息
func (l *Logger) Fatal(msg string)   { l.Log(FATAL, msg) }   // 记录致命错误

func (l *Logger) Infof(format string, args ...any)    { l.Log(INFO, fmt.Sprintf(format, args...)) }
func (l *Logger) Warningf(format string, args ...any) { l.Log(WARNING, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any)   { l.Log(ERROR, fmt.Sprintf(format, args...)) }
