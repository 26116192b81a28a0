package main

import (
	"BikeRentalDashboard/src/config"
	"BikeRentalDashboard/src/datasource/file"
	"BikeRentalDashboard/src/metrics"
	"BikeRentalDashboard/src/processor"
	"BikeRentalDashboard/src/storage"
	"BikeRentalDashboard/src/web"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// 数据文件连续写入时只重新加载一次
const reloadDelay = 500 * time.Millisecond

// runServe 启动看板服务，收到 SIGINT/SIGTERM 后退出
func runServe(opts *cliOptions) error {
	cfg, dcfg, logger, err := setup(opts, os.Stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	app := fx.New(newAppOptions(cfg, dcfg, logger))
	if err := app.Err(); err != nil {
		logger.Fatal("启动失败: " + err.Error())
		return err
	}
	return runApp(app, logger, app.Done())
}

// runApp 启动 app，等待 done 上的信号后停止；错误返回给调用方，日志由调用方关闭
func runApp(app *fx.App, logger *storage.Logger, done <-chan os.Signal) error {
	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		logger.Fatal("启动失败: " + err.Error())
		return err
	}

	sig := <-done
	logger.Info("Received signal: " + sig.String() + ", shutting down...")

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		logger.Error("停止失败: " + err.Error())
		return err
	}
	return nil
}

func newAppOptions(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) fx.Option {
	return fx.Options(
		fx.WithLogger(func() fxevent.Logger { return storage.NewFxLogger(logger) }),
		fx.Supply(cfg, dcfg, logger),
		fx.Provide(metrics.NewRecorder, newTracerProvider, newServer),
		fx.Invoke(registerPidFile, registerHTTP, registerWatcher, registerRotation, registerSignals),
	)
}

// newTracerProvider 渲染 span 的采样和导出；未配置地址时只采样不导出
func newTracerProvider(lc fx.Lifecycle, cfg *config.Config, logger *storage.Logger) (trace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.Tracing.ServiceName),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SampleRatio))),
	}
	if cfg.Tracing.EndpointURL != "" {
		exp, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpointURL(cfg.Tracing.EndpointURL))
		if err != nil {
			return nil, fmt.Errorf("创建 OTLP 导出器失败: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if cfg.Tracing.EndpointURL != "" {
				logger.Info("span 导出到 " + cfg.Tracing.EndpointURL)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// 把未导出的 span 刷出去
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

func newServer(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger, rec *metrics.Recorder, tp trace.TracerProvider) (*web.Server, error) {
	return web.NewServer(cfg, logger, rec, tp, func() (*processor.Pipeline, error) {
		return processor.Build(cfg, dcfg)
	})
}

// registerHTTP 监听地址在 OnStart 中绑定，失败时启动失败
func registerHTTP(lc fx.Lifecycle, srv *web.Server, logger *storage.Logger) {
	httpSrv := srv.HTTPServer()
	baseCtx, cancel := context.WithCancel(context.Background())
	httpSrv.BaseContext = func(net.Listener) context.Context { return baseCtx }

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", httpSrv.Addr)
			if err != nil {
				return fmt.Errorf("监听 %s 失败: %w", httpSrv.Addr, err)
			}
			go func() {
				if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP 服务异常退出: " + err.Error())
				}
			}()
			logger.Infof("看板已启动: http://%s", ln.Addr())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// 先结束 /logs 等长连接
			cancel()
			return httpSrv.Shutdown(ctx)
		},
	})
}

// registerWatcher 数据文件变化时自动重新加载
func registerWatcher(lc fx.Lifecycle, cfg *config.Config, srv *web.Server, logger *storage.Logger) error {
	if !cfg.WatchData {
		return nil
	}
	monitor, err := file.NewFileMonitor(cfg.DataDir, cfg.Files.Weather, cfg.Files.Season, cfg.Files.Hour)
	if err != nil {
		return fmt.Errorf("监控数据目录失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	onChange := func(name string) {
		logger.Debug("数据文件变化: " + name)
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDelay, func() {
			srv.Reload("file changed: " + name)
		})
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := monitor.Watch(ctx, onChange); err != nil {
					logger.Error("数据目录监控停止: " + err.Error())
				}
			}()
			logger.Info("开始监控数据目录: " + cfg.DataDir)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return monitor.Close()
		},
	})
	return nil
}

// registerRotation 定时检查日志大小
func registerRotation(lc fx.Lifecycle, cfg *config.Config, logger *storage.Logger) error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.LogCheckPeriod.Std())
	if err := c.AddFunc(spec, func() {
		if err := logger.CheckRotate(cfg); err != nil {
			logger.Error("日志轮转失败: " + err.Error())
		}
	}); err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			logger.Debug("日志轮转检查已启动: " + spec)
			return nil
		},
		OnStop: func(context.Context) error {
			c.Stop()
			return nil
		},
	})
	return nil
}

// registerSignals SIGHUP 时重新打开日志文件并重新加载数据
func registerSignals(lc fx.Lifecycle, srv *web.Server, logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			signal.Notify(sigChan, syscall.SIGHUP)
			go func() {
				for {
					select {
					case sig := <-sigChan:
						if err := logger.Reopen(""); err != nil {
							fmt.Fprintln(os.Stderr, "重新打开日志失败:", err)
						}
						logger.Info("Received signal: " + sig.String() + ", reloading...")
						srv.Reload("SIGHUP")
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			signal.Stop(sigChan)
			close(done)
			return nil
		},
	})
}

// registerPidFile 写入进程号，供 reload 工具发送 SIGHUP
func registerPidFile(lc fx.Lifecycle, cfg *config.Config, logger *storage.Logger) {
	if cfg.PidFile == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return os.WriteFile(cfg.PidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
		},
		OnStop: func(context.Context) error {
			if err := os.Remove(cfg.PidFile); err != nil && !os.IsNotExist(err) {
				logger.Warning("删除 pid 文件失败: " + err.Error())
			}
			return nil
		},
	})
}
