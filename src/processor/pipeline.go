package processor

import (
	"BikeRentalDashboard/src/config"
	"BikeRentalDashboard/src/datasource/file"
	"BikeRentalDashboard/src/utils"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "BikeRentalDashboard/src/processor"

// Observer 接收每个图表的渲染结果，用于指标统计
type Observer interface {
	ObserveRender(chart string, elapsed time.Duration, empty bool, err error)
}

// Pipeline 持有映射后的只读表，启动时创建一次，之后每次请求只读访问
type Pipeline struct {
	tables      Tables
	cols        Columns
	opts        RenderOptions
	observer    Observer
	tracer      trace.Tracer
	hourMin     int
	hourMax     int
	defaultHour int
	seasons     []string
	stats       []MapStats
	loadedAt    time.Time
}

// Dashboard 一次完整渲染的结果
type Dashboard struct {
	PassID    string
	Selection Selection
	Weather   *Chart
	Season    *Chart
	Hour      *Chart
	Errors    map[string]error
}

// NewPipeline 对天气和季节列做一次标签替换，并计算小时范围、默认小时和季节选项
func NewPipeline(raw Tables, dcfg *config.DataConfig, opts RenderOptions) (*Pipeline, error) {
	cols := ColumnsFrom(dcfg)
	mapLabels := MapLabels
	if dcfg.StrictLabels {
		mapLabels = MapLabelsStrict
	}

	weather, wstats, err := mapLabels(raw.Weather, cols.Weather, dcfg.WeatherLookup())
	if err != nil {
		return nil, &file.DataUnavailableError{Table: TableWeather, Err: err}
	}
	season, sstats, err := mapLabels(raw.Season, cols.Season, dcfg.SeasonLookup())
	if err != nil {
		return nil, &file.DataUnavailableError{Table: TableSeason, Err: err}
	}

	hours, err := utils.ColumnInts(raw.Hour, cols.Hour)
	if err != nil {
		return nil, &file.DataUnavailableError{Table: TableHour, Err: err}
	}
	if len(hours) == 0 {
		return nil, &file.DataUnavailableError{Table: TableHour, Err: errors.New("no rows")}
	}
	hourMin, hourMax := hours[0], hours[0]
	for _, h := range hours {
		hourMin = min(hourMin, h)
		hourMax = max(hourMax, h)
	}

	return &Pipeline{
		tables:      Tables{Weather: weather, Season: season, Hour: raw.Hour},
		cols:        cols,
		opts:        opts,
		hourMin:     hourMin,
		hourMax:     hourMax,
		defaultHour: DefaultHour(hours),
		seasons:     utils.Distinct(season.Col(cols.Season).Records()),
		stats:       []MapStats{wstats, sstats},
		loadedAt:    time.Now(),
		tracer:      otel.Tracer(tracerName),
	}, nil
}

// DefaultHour 小时列的中位数，取数据中最接近的小时(距离相同取较小值)
func DefaultHour(hours []int) int {
	if len(hours) == 0 {
		return 0
	}
	sorted := append([]int(nil), hours...)
	sort.Ints(sorted)

	n := len(sorted)
	median := float64(sorted[n/2])
	if n%2 == 0 {
		median = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}

	best := sorted[0]
	for _, h := range sorted {
		if math.Abs(float64(h)-median) < math.Abs(float64(best)-median) {
			best = h
		}
	}
	return best
}

func (p *Pipeline) SetObserver(o Observer) { p.observer = o }

// SetTracerProvider 渲染 span 写入 tp；默认使用全局 TracerProvider
func (p *Pipeline) SetTracerProvider(tp trace.TracerProvider) { p.tracer = tp.Tracer(tracerName) }

// HourRange 滑块的上下界
func (p *Pipeline) HourRange() (int, int) { return p.hourMin, p.hourMax }

// Seasons 季节下拉框选项，按表中首次出现顺序
func (p *Pipeline) Seasons() []string { return append([]string(nil), p.seasons...) }

func (p *Pipeline) MapStats() []MapStats { return p.stats }

func (p *Pipeline) LoadedAt() time.Time { return p.loadedAt }

// Rows 各表行数
func (p *Pipeline) Rows() map[string]int {
	return map[string]int{
		TableWeather: p.tables.Weather.Nrow(),
		TableSeason:  p.tables.Season.Nrow(),
		TableHour:    p.tables.Hour.Nrow(),
	}
}

// DefaultSelection 初始选择：中位小时和第一个季节
func (p *Pipeline) DefaultSelection() Selection {
	sel := Selection{Hour: p.defaultHour}
	if len(p.seasons) > 0 {
		sel.Season = p.seasons[0]
	}
	return sel
}

// Normalize 未选择季节时使用默认季节；小时不做截断，范围外的小时得到空图
func (p *Pipeline) Normalize(sel Selection) Selection {
	if sel.Season == "" {
		sel.Season = p.DefaultSelection().Season
	}
	return sel
}

// SelectHour 小时表中 hr == hour 的行
func (p *Pipeline) SelectHour(hour int) (dataframe.DataFrame, error) {
	return SelectHour(p.tables.Hour, p.cols.Hour, hour)
}

// SelectSeason 季节表中季节标签等于 label 的行
func (p *Pipeline) SelectSeason(label string) (dataframe.DataFrame, error) {
	return SelectSeason(p.tables.Season, p.cols.Season, label)
}

// Weather 映射后的天气表
func (p *Pipeline) Weather() dataframe.DataFrame { return p.tables.Weather }

// RenderChart 渲染单个图表
func (p *Pipeline) RenderChart(ctx context.Context, name string, sel Selection) (*Chart, error) {
	_, span := p.tracer.Start(ctx, "render."+name, trace.WithAttributes(
		attribute.Int("selection.hour", sel.Hour),
		attribute.String("selection.season", sel.Season),
	))
	defer span.End()

	start := time.Now()
	chart, err := p.renderChart(name, sel)
	if p.observer != nil {
		p.observer.ObserveRender(name, time.Since(start), chart != nil && chart.Empty, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("chart.empty", chart.Empty))
	return chart, nil
}

func (p *Pipeline) renderChart(name string, sel Selection) (*Chart, error) {
	switch name {
	case ChartWeather:
		return RenderWeatherImpact(p.tables.Weather, p.cols, p.opts)
	case ChartSeason:
		rows, err := p.SelectSeason(sel.Season)
		if err != nil {
			return nil, &RenderError{Chart: name, Err: err}
		}
		return RenderSeasonalTrend(rows, sel.Season, p.cols, p.opts)
	case ChartHour:
		rows, err := p.SelectHour(sel.Hour)
		if err != nil {
			return nil, &RenderError{Chart: name, Err: err}
		}
		return RenderPeakHourBreakdown(rows, sel.Hour, p.cols, p.opts)
	default:
		return nil, &RenderError{Chart: name, Err: fmt.Errorf("unknown chart %q", name)}
	}
}

// Render 按顺序渲染三个图表；某个图表失败不影响其他图表
func (p *Pipeline) Render(ctx context.Context, sel Selection) (*Dashboard, error) {
	sel = p.Normalize(sel)
	ctx, span := p.tracer.Start(ctx, "render.dashboard")
	defer span.End()

	d := &Dashboard{
		PassID:    uuid.NewString(),
		Selection: sel,
		Errors:    make(map[string]error),
	}
	span.SetAttributes(attribute.String("pass.id", d.PassID))

	var errs *multierror.Error
	for _, name := range []string{ChartWeather, ChartSeason, ChartHour} {
		chart, err := p.RenderChart(ctx, name, sel)
		if err != nil {
			d.Errors[name] = err
			errs = multierror.Append(errs, err)
			continue
		}
		switch name {
		case ChartWeather:
			d.Weather = chart
		case ChartSeason:
			d.Season = chart
		case ChartHour:
			d.Hour = chart
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return d, err
	}
	return d, nil
}
