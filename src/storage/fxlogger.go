package storage

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLogger 把 fx 生命周期事件写入 Logger
type FxLogger struct {
	logger *Logger
}

func NewFxLogger(logger *Logger) fxevent.Logger {
	return &FxLogger{logger: logger}
}

// LogEvent 启停钩子和依赖注入过程记为 DEBUG，失败记为 ERROR
func (f *FxLogger) LogEvent(event fxevent.Event) {
	l := f.logger
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			l.Errorf("启动钩子失败: %s, %v", shortName(e.FunctionName), e.Err)
		} else {
			l.Debug("启动钩子完成: " + shortName(e.FunctionName))
		}
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			l.Errorf("停止钩子失败: %s, %v", shortName(e.FunctionName), e.Err)
		} else {
			l.Debug("停止钩子完成: " + shortName(e.FunctionName))
		}
	case *fxevent.Supplied:
		if e.Err != nil {
			l.Errorf("Supply 失败: %v", e.Err)
		}
	case *fxevent.Provided:
		if e.Err != nil {
			l.Errorf("Provide 失败: %v", e.Err)
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			l.Errorf("Invoke 失败: %s, %v", shortName(e.FunctionName), e.Err)
		}
	case *fxevent.Stopping:
		l.Info("收到信号 " + strings.ToUpper(e.Signal.String()) + "，正在停止")
	case *fxevent.RollingBack:
		l.Errorf("启动失败，回滚: %v", e.StartErr)
	case *fxevent.Started:
		if e.Err != nil {
			l.Errorf("启动失败: %v", e.Err)
		} else {
			l.Info("服务已启动")
		}
	}
}

// shortName 去掉包路径，只保留函数名
func shortName(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.Index(fn, "."); i >= 0 {
		fn = fn[i+1:]
	}
	return fn
}
