package processor

import (
	"BikeRentalDashboard/src/config"
	"BikeRentalDashboard/src/datasource/file"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	fails int
}

func (o *recordingObserver) ObserveRender(chart string, _ time.Duration, _ bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, chart)
	if err != nil {
		o.fails++
	}
}

func TestNewPipeline(t *testing.T) {
	p := newTestPipeline(t)

	lo, hi := p.HourRange()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 23, hi)
	assert.Equal(t, []string{"Spring", "Winter", "Summer", "Fall"}, p.Seasons())
	assert.Equal(t, Selection{Hour: 11, Season: "Spring"}, p.DefaultSelection())
	assert.Equal(t, map[string]int{"weather": 6, "season": 6, "hour": 48}, p.Rows())

	for _, v := range p.Weather().Col("weathersit").Records() {
		assert.NotContains(t, []string{"1", "2", "3", "4"}, v)
	}
}

func TestDefaultHour(t *testing.T) {
	assert.Equal(t, 11, DefaultHour([]int{0, 5, 11, 12, 23, 23}))
	assert.Equal(t, 17, DefaultHour([]int{8, 17, 17, 18, 19}))
	// 中位数 14 不在数据中，取最近的 12
	assert.Equal(t, 12, DefaultHour([]int{8, 12, 16, 20}))
	assert.Equal(t, 0, DefaultHour(nil))
}

func TestNewPipelineErrors(t *testing.T) {
	dcfg := config.DefaultData()

	_, err := NewPipeline(Tables{
		Weather: weatherTable(t),
		Season:  seasonTable(t),
		Hour:    load(t, [][]string{{"hr", "weekday", "workingday", "cnt"}, {"late", "1", "1", "3"}}),
	}, dcfg, RenderOptions{})
	assert.True(t, errors.Is(err, file.ErrDataUnavailable))

	strict := config.DefaultData()
	strict.StrictLabels = true
	_, err = NewPipeline(Tables{
		Weather: load(t, [][]string{{"weathersit", "cnt"}, {"5", "1"}}),
		Season:  seasonTable(t),
		Hour:    hourTable(t),
	}, strict, RenderOptions{})
	assert.True(t, errors.Is(err, file.ErrDataUnavailable))
	assert.True(t, errors.Is(err, ErrUnmappedLabel))
}

func TestRenderPeakHourScenario(t *testing.T) {
	p := newTestPipeline(t)

	rows, err := p.SelectHour(17)
	require.NoError(t, err)
	assert.Equal(t, []string{"17", "17"}, rows.Col("hr").Records())

	d, err := p.Render(context.Background(), Selection{Hour: 17, Season: "Winter"})
	require.NoError(t, err)
	require.NotNil(t, d.Hour)
	assert.Equal(t, []float64{0, 67}, d.Hour.Series[0].Values)
	assert.Equal(t, []float64{117, 0}, d.Hour.Series[1].Values)
	assert.Equal(t, []int{0, 1}, d.Hour.Series[0].Rows)
	assert.Equal(t, []int{1, 0}, d.Hour.Series[1].Rows)
	assert.NotEmpty(t, d.PassID)
}

func TestRenderZeroMatchDoesNotAffectOtherCharts(t *testing.T) {
	p := newTestPipeline(t)
	obs := &recordingObserver{}
	p.SetObserver(obs)

	d, err := p.Render(context.Background(), Selection{Hour: 42, Season: "Monsoon"})
	require.NoError(t, err)
	assert.True(t, d.Hour.Empty)
	assert.True(t, d.Season.Empty)
	assert.False(t, d.Weather.Empty)

	// 之后的正常渲染不受影响
	d, err = p.Render(context.Background(), Selection{Hour: 8})
	require.NoError(t, err)
	assert.False(t, d.Hour.Empty)
	assert.False(t, d.Season.Empty)
	assert.Equal(t, "Spring", d.Selection.Season)

	assert.Equal(t, []string{"weather", "season", "hour", "weather", "season", "hour"}, obs.calls)
	assert.Zero(t, obs.fails)
}

func TestRenderCollectsChartFailures(t *testing.T) {
	p, err := NewPipeline(Tables{
		Weather: load(t, [][]string{{"weathersit", "cnt"}, {"1", "n/a"}}),
		Season:  seasonTable(t),
		Hour:    hourTable(t),
	}, config.DefaultData(), RenderOptions{})
	require.NoError(t, err)

	d, err := p.Render(context.Background(), p.DefaultSelection())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRenderFailure))
	assert.Nil(t, d.Weather)
	assert.NotNil(t, d.Season)
	assert.NotNil(t, d.Hour)
	assert.Contains(t, d.Errors, ChartWeather)
}

func TestRenderChartUnknown(t *testing.T) {
	_, err := newTestPipeline(t).RenderChart(context.Background(), "pie", Selection{})
	assert.True(t, errors.Is(err, ErrRenderFailure))
}

func TestRenderRecordsSpans(t *testing.T) {
	p := newTestPipeline(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	p.SetTracerProvider(tp)

	d, err := p.Render(context.Background(), Selection{Hour: 42, Season: "Winter"})
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 4)
	byName := make(map[string]sdktrace.ReadOnlySpan, len(spans))
	for _, s := range spans {
		byName[s.Name()] = s
	}

	root, ok := byName["render.dashboard"]
	require.True(t, ok)
	assert.False(t, root.Parent().IsValid())
	for _, name := range []string{"render.weather", "render.season", "render.hour"} {
		child, ok := byName[name]
		require.True(t, ok, name)
		assert.Equal(t, root.SpanContext().TraceID(), child.SpanContext().TraceID(), name)
		assert.Equal(t, root.SpanContext().SpanID(), child.Parent().SpanID(), name)
	}

	var passID string
	for _, kv := range root.Attributes() {
		if kv.Key == "pass.id" {
			passID = kv.Value.AsString()
		}
	}
	assert.Equal(t, d.PassID, passID)

	var empty bool
	for _, kv := range byName["render.hour"].Attributes() {
		if kv.Key == "chart.empty" {
			empty = kv.Value.AsBool()
		}
	}
	assert.True(t, empty)
}

func TestRenderFailureMarksSpanError(t *testing.T) {
	p, err := NewPipeline(Tables{
		Weather: load(t, [][]string{{"weathersit", "cnt"}, {"1", "n/a"}}),
		Season:  seasonTable(t),
		Hour:    hourTable(t),
	}, config.DefaultData(), RenderOptions{})
	require.NoError(t, err)
	sr := tracetest.NewSpanRecorder()
	p.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	_, err = p.RenderChart(context.Background(), ChartWeather, p.DefaultSelection())
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
