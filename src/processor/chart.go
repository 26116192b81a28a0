package processor

import (
	"BikeRentalDashboard/src/utils"
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// 图表名称
const (
	ChartWeather = "weather"
	ChartSeason  = "season"
	ChartHour    = "hour"
)

const (
	rentalsLabel = "Number of Rentals"
	noDataSuffix = " (no data)"
)

// RenderOptions 图表尺寸
type RenderOptions struct {
	Width  vg.Length
	Height vg.Length
}

// DefaultRenderOptions 与 10x6 英寸画布一致
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Width: 10 * vg.Inch, Height: 6 * vg.Inch}
}

// Series 图表中一组数据，用于页面展示和测试。
// Rows 为每个值参与计算的行数，0 表示该位置没有数据(不绘制)
type Series struct {
	Name   string
	Labels []string
	Values []float64
	Rows   []int
}

// Chart 渲染结果
type Chart struct {
	Name   string
	Title  string
	XLabel string
	YLabel string
	Empty  bool
	Series []Series
	SVG    []byte
}

// RenderWeatherImpact 按天气标签分组的租车数量箱线图，类别按首次出现顺序
func RenderWeatherImpact(df dataframe.DataFrame, cols Columns, opts RenderOptions) (*Chart, error) {
	chart := &Chart{
		Name:   ChartWeather,
		Title:  "Impact of Weather Conditions on Bike Rentals",
		XLabel: "Weather Condition",
		YLabel: rentalsLabel,
	}

	labels, counts, err := labelledCounts(df, cols.Weather, cols.Count)
	if err != nil {
		return nil, &RenderError{Chart: chart.Name, Err: err}
	}

	groups := make(map[string][]float64)
	var present []string
	for i, l := range labels {
		if math.IsNaN(counts[i]) {
			continue
		}
		groups[l] = append(groups[l], counts[i])
		present = append(present, l)
	}
	order := utils.Distinct(present)
	for _, l := range order {
		chart.Series = append(chart.Series, Series{Name: l, Values: groups[l]})
	}

	p := newPlot(chart)
	if len(order) == 0 {
		return finish(chart, p, opts)
	}

	width := vg.Points(40)
	for i, l := range order {
		box, err := plotter.NewBoxPlot(width, float64(i), plotter.Values(groups[l]))
		if err != nil {
			return nil, &RenderError{Chart: chart.Name, Err: err}
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
	}
	p.NominalX(order...)
	return finish(chart, p, opts)
}

// RenderSeasonalTrend 选定季节下各年份的平均租车数量折线图(带数据点)
func RenderSeasonalTrend(df dataframe.DataFrame, season string, cols Columns, opts RenderOptions) (*Chart, error) {
	chart := &Chart{
		Name:   ChartSeason,
		Title:  fmt.Sprintf("Bike Rentals in %s", season),
		XLabel: "Year",
		YLabel: rentalsLabel,
	}

	keys, means, err := meanBy(df, cols.Year, cols.Count)
	if err != nil {
		return nil, &RenderError{Chart: chart.Name, Err: err}
	}

	s := Series{Name: season}
	xys := make(plotter.XYs, len(keys))
	ticks := make([]plot.Tick, len(keys))
	for i, k := range keys {
		xys[i] = plotter.XY{X: float64(k), Y: means[i]}
		ticks[i] = plot.Tick{Value: float64(k), Label: strconv.Itoa(k)}
		s.Labels = append(s.Labels, strconv.Itoa(k))
		s.Values = append(s.Values, means[i])
	}
	chart.Series = []Series{s}

	p := newPlot(chart)
	if len(keys) == 0 {
		return finish(chart, p, opts)
	}

	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, &RenderError{Chart: chart.Name, Err: err}
	}
	line.Color = plotutil.Color(0)
	line.Width = vg.Points(2)
	points.GlyphStyle.Shape = draw.CircleGlyph{}
	points.GlyphStyle.Color = plotutil.Color(0)
	points.GlyphStyle.Radius = vg.Points(4)
	p.Add(plotter.NewGrid(), line, points)
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	if len(keys) == 1 {
		p.X.Min, p.X.Max = float64(keys[0])-1, float64(keys[0])+1
	}
	return finish(chart, p, opts)
}

// RenderPeakHourBreakdown 选定小时内按星期分组、按工作日标记拆分的平均租车数量柱状图
func RenderPeakHourBreakdown(df dataframe.DataFrame, hour int, cols Columns, opts RenderOptions) (*Chart, error) {
	chart := &Chart{
		Name:   ChartHour,
		Title:  fmt.Sprintf("Bike Rentals at Hour %d", hour),
		XLabel: "Weekday",
		YLabel: rentalsLabel,
	}

	if df.Nrow() == 0 {
		return finish(chart, newPlot(chart), opts)
	}

	weekdays, err := utils.ColumnInts(df, cols.Weekday)
	if err != nil {
		return nil, &RenderError{Chart: chart.Name, Err: err}
	}
	flags, err := utils.ColumnInts(df, cols.WorkingDay)
	if err != nil {
		return nil, &RenderError{Chart: chart.Name, Err: err}
	}
	counts, err := utils.ColumnFloats(df, cols.Count)
	if err != nil {
		return nil, &RenderError{Chart: chart.Name, Err: err}
	}

	days := sortedUnique(weekdays)
	hues := sortedUnique(flags)
	dayIndex := make(map[int]int, len(days))
	dayLabels := make([]string, len(days))
	for i, d := range days {
		dayIndex[d] = i
		dayLabels[i] = strconv.Itoa(d)
	}

	p := newPlot(chart)
	p.Legend.Top = true
	p.Legend.Add(cols.WorkingDay)

	barWidth := vg.Points(60 / float64(len(hues)))
	for h, flag := range hues {
		buckets := make([][]float64, len(days))
		for i := range counts {
			if flags[i] == flag && !math.IsNaN(counts[i]) {
				j := dayIndex[weekdays[i]]
				buckets[j] = append(buckets[j], counts[i])
			}
		}

		s := Series{
			Name:   strconv.Itoa(flag),
			Labels: dayLabels,
			Values: make([]float64, len(days)),
			Rows:   make([]int, len(days)),
		}
		var legend plot.Thumbnailer
		for j, b := range buckets {
			if len(b) == 0 {
				continue
			}
			s.Values[j] = stat.Mean(b, nil)
			s.Rows[j] = len(b)

			// 缺少的星期/工作日组合留空，每根柱子单独定位
			bar, err := plotter.NewBarChart(plotter.Values{s.Values[j]}, barWidth)
			if err != nil {
				return nil, &RenderError{Chart: chart.Name, Err: err}
			}
			bar.XMin = float64(j)
			bar.LineStyle.Width = vg.Length(0)
			bar.Color = plotutil.Color(h)
			bar.Offset = vg.Length(float64(h)-float64(len(hues)-1)/2) * barWidth
			p.Add(bar)
			if legend == nil {
				legend = bar
			}
		}
		if legend != nil {
			p.Legend.Add(s.Name, legend)
		}
		chart.Series = append(chart.Series, s)
	}
	if emptyRows(chart.Series) {
		chart.Series = nil
		return finish(chart, p, opts)
	}
	p.NominalX(dayLabels...)
	return finish(chart, p, opts)
}

func newPlot(chart *Chart) *plot.Plot {
	p := plot.New()
	p.Title.Text = chart.Title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = chart.XLabel
	p.Y.Label.Text = chart.YLabel
	p.BackgroundColor = color.White
	return p
}

// finish 生成 SVG；没有数据时输出带 "(no data)" 标题的空白坐标系
func finish(chart *Chart, p *plot.Plot, opts RenderOptions) (*Chart, error) {
	if len(chart.Series) == 0 || emptySeries(chart.Series) {
		chart.Empty = true
		chart.Title += noDataSuffix
		p.Title.Text = chart.Title
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	}

	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultRenderOptions()
	}
	w, err := p.WriterTo(opts.Width, opts.Height, "svg")
	if err != nil {
		return nil, &RenderError{Chart: chart.Name, Err: err}
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, &RenderError{Chart: chart.Name, Err: err}
	}
	chart.SVG = buf.Bytes()
	return chart, nil
}

// emptyRows 所有位置都没有有效行
func emptyRows(series []Series) bool {
	for _, s := range series {
		for _, n := range s.Rows {
			if n > 0 {
				return false
			}
		}
	}
	return true
}

func emptySeries(series []Series) bool {
	for _, s := range series {
		if len(s.Values) > 0 {
			return false
		}
	}
	return true
}

// labelledCounts 读取标签列和计数列
func labelledCounts(df dataframe.DataFrame, labelCol, countCol string) ([]string, []float64, error) {
	if df.Nrow() == 0 {
		return nil, nil, nil
	}
	if !utils.HasColumn(df, labelCol) {
		return nil, nil, fmt.Errorf("column %q not found", labelCol)
	}
	counts, err := utils.ColumnFloats(df, countCol)
	if err != nil {
		return nil, nil, err
	}
	return df.Col(labelCol).Records(), counts, nil
}

// meanBy 按整数键分组求均值，键升序
func meanBy(df dataframe.DataFrame, keyCol, valueCol string) ([]int, []float64, error) {
	if df.Nrow() == 0 {
		return nil, nil, nil
	}
	keys, err := utils.ColumnInts(df, keyCol)
	if err != nil {
		return nil, nil, err
	}
	values, err := utils.ColumnFloats(df, valueCol)
	if err != nil {
		return nil, nil, err
	}
	if len(keys) != len(values) {
		return nil, nil, errors.New("column length mismatch")
	}

	groups := make(map[int][]float64)
	var present []int
	for i, k := range keys {
		if math.IsNaN(values[i]) {
			continue
		}
		groups[k] = append(groups[k], values[i])
		present = append(present, k)
	}
	order := sortedUnique(present)
	means := make([]float64, len(order))
	for i, k := range order {
		means[i] = stat.Mean(groups[k], nil)
	}
	return order, means, nil
}

func sortedUnique(xs []int) []int {
	seen := make(map[int]bool, len(xs))
	out := make([]int, 0, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}
