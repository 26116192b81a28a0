// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监控数据目录中指定文件的变化
type FileMonitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	names    map[string]bool
	lastMod  map[string]time.Time
	mu       sync.Mutex
}

// NewFileMonitor 监控 dir 目录，只关心 names 中列出的文件名
func NewFileMonitor(dir string, names ...string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[filepath.Base(n)] = true
	}

	return &FileMonitor{
		watchDir: dir,
		watcher:  watcher,
		names:    set,
		lastMod:  make(map[string]time.Time),
	}, nil
}

// Watch 阻塞直到 ctx 结束；被监控的文件写入、创建或替换时调用 handler
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if len(m.names) > 0 && !m.names[filepath.Base(event.Name)] {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			m.mu.Lock()
			if info.ModTime().After(m.lastMod[event.Name]) {
				m.lastMod[event.Name] = info.ModTime()
				handler(event.Name)
			}
			m.mu.Unlock()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
