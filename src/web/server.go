package web

import (
	"BikeRentalDashboard/src/config"
	"BikeRentalDashboard/src/metrics"
	"BikeRentalDashboard/src/processor"
	"BikeRentalDashboard/src/storage"
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Loader 加载数据并创建新的 Pipeline
type Loader func() (*processor.Pipeline, error)

// Server 看板 HTTP 服务，持有当前 Pipeline，重新加载时原子替换
type Server struct {
	cfg      *config.Config
	logger   *storage.Logger
	metrics  *metrics.Recorder
	tracing  trace.TracerProvider
	load     Loader
	reloadMu sync.Mutex // 加载和替换作为一个整体，后开始的加载不会被旧结果覆盖
	pipeline atomic.Pointer[processor.Pipeline]
	tmpl     *template.Template
	mux      *http.ServeMux
}

// NewServer 首次加载数据，失败时返回错误(启动失败)。rec 和 tp 可以为 nil
func NewServer(cfg *config.Config, logger *storage.Logger, rec *metrics.Recorder, tp trace.TracerProvider, load Loader) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("解析页面模板失败: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		tracing: tp,
		load:    load,
		tmpl:    tmpl,
		mux:     http.NewServeMux(),
	}
	if err := s.Reload("startup"); err != nil {
		return nil, err
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleDashboard)
	s.mux.HandleFunc("GET /chart/{file}", s.handleChart)
	s.mux.HandleFunc("GET /logo", s.handleLogo)
	s.mux.HandleFunc("GET /logs", s.handleLogs)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler 返回路由
func (s *Server) Handler() http.Handler { return s.mux }

// HTTPServer 按配置创建 http.Server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout.Std(),
		WriteTimeout: s.cfg.Server.WriteTimeout.Std(),
	}
}

// Pipeline 当前使用的 Pipeline
func (s *Server) Pipeline() *processor.Pipeline { return s.pipeline.Load() }

// Reload 重新加载数据；失败时保留旧的 Pipeline 继续服务
func (s *Server) Reload(reason string) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	p, err := s.load()
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveLoad(nil, nil, err)
		}
		s.logger.Errorf("加载数据失败(%s): %v", reason, err)
		return err
	}

	unmapped := make(map[string]int)
	for _, st := range p.MapStats() {
		unmapped[st.Column] = st.Unmapped
		if st.Unmapped > 0 {
			s.logger.Warningf("列 %s 有 %d 行编码没有对应标签，按原值显示: %v", st.Column, st.Unmapped, st.Codes)
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveLoad(p.Rows(), unmapped, nil)
		p.SetObserver(s.metrics)
	}
	if s.tracing != nil {
		p.SetTracerProvider(s.tracing)
	}

	s.pipeline.Store(p)
	s.logger.Infof("数据已加载(%s)，行数 %v，耗时 %v", reason, p.Rows(), time.Since(start))
	return nil
}

// parseSelection 从查询参数读取选择，缺省值取 Pipeline 的默认选择
func parseSelection(r *http.Request, p *processor.Pipeline) (processor.Selection, error) {
	sel := p.DefaultSelection()
	q := r.URL.Query()
	if v := q.Get("hour"); v != "" {
		hour, err := strconv.Atoi(v)
		if err != nil {
			return sel, fmt.Errorf("invalid hour %q", v)
		}
		sel.Hour = hour
	}
	if v := q.Get("season"); v != "" {
		sel.Season = v
	}
	return sel, nil
}

type chartView struct {
	Heading string
	SVG     template.HTML
	Empty   bool
	Err     string
}

type pageView struct {
	Title     string
	HasLogo   bool
	HourMin   int
	HourMax   int
	Selection processor.Selection
	Seasons   []string
	Charts    []chartView
	PassID    string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := s.pipeline.Load()
	sel, err := parseSelection(r, p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, renderErr := p.Render(r.Context(), sel)
	if renderErr != nil {
		s.logger.Errorf("渲染失败(pass %s): %v", d.PassID, renderErr)
	}

	lo, hi := p.HourRange()
	view := pageView{
		Title:     s.cfg.Title,
		HasLogo:   s.logoPath() != "",
		HourMin:   lo,
		HourMax:   hi,
		Selection: d.Selection,
		Seasons:   p.Seasons(),
		PassID:    d.PassID,
		Charts: []chartView{
			newChartView("Impact of Weather Conditions on Bike Rentals", d.Weather, d.Errors[processor.ChartWeather]),
			newChartView("Bike Rentals in "+d.Selection.Season, d.Season, d.Errors[processor.ChartSeason]),
			newChartView(fmt.Sprintf("Bike Rentals at Hour %d", d.Selection.Hour), d.Hour, d.Errors[processor.ChartHour]),
		},
	}

	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "dashboard.html", view); err != nil {
		s.logger.Errorf("页面输出失败: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if renderErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
	buf.WriteTo(w)
}

func newChartView(heading string, c *processor.Chart, err error) chartView {
	v := chartView{Heading: heading}
	if err != nil {
		v.Err = err.Error()
		return v
	}
	if c != nil {
		v.Empty = c.Empty
		v.SVG = inlineSVG(c.SVG)
	}
	return v
}

// inlineSVG 去掉 XML 声明后嵌入页面
func inlineSVG(b []byte) template.HTML {
	if i := bytes.Index(b, []byte("<svg")); i >= 0 {
		b = b[i:]
	}
	return template.HTML(b)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".svg")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch name {
	case processor.ChartWeather, processor.ChartSeason, processor.ChartHour:
	default:
		http.NotFound(w, r)
		return
	}

	p := s.pipeline.Load()
	sel, err := parseSelection(r, p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	chart, err := p.RenderChart(r.Context(), name, p.Normalize(sel))
	if err != nil {
		s.logger.Errorf("渲染图表 %s 失败: %v", name, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	if chart.Empty {
		w.Header().Set("X-Chart-Empty", "true")
	}
	w.Write(chart.SVG)
}

// logoPath 配置的图片存在时返回路径
func (s *Server) logoPath() string {
	if s.cfg.Logo == "" {
		return ""
	}
	if info, err := os.Stat(s.cfg.Logo); err != nil || info.IsDir() {
		return ""
	}
	return s.cfg.Logo
}

func (s *Server) handleLogo(w http.ResponseWriter, r *http.Request) {
	path := s.logoPath()
	if path == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// handleLogs 实时输出日志，客户端断开时取消订阅
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	// 长连接不受 WriteTimeout 限制
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			_ = rc.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

type health struct {
	Status   string         `json:"status"`
	LoadedAt time.Time      `json:"loaded_at"`
	Rows     map[string]int `json:"rows"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	p := s.pipeline.Load()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health{Status: "ok", LoadedAt: p.LoadedAt(), Rows: p.Rows()}); err != nil {
		s.logger.Error("healthz 输出失败: " + err.Error())
	}
}
