package processor

import (
	"BikeRentalDashboard/src/config"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSVG(t *testing.T, c *Chart) {
	t.Helper()
	require.NotEmpty(t, c.SVG)
	assert.True(t, bytes.Contains(c.SVG, []byte("<svg")), "output is not svg")
}

func TestRenderWeatherImpact(t *testing.T) {
	mapped, _, err := MapLabels(weatherTable(t), "weathersit", config.DefaultData().WeatherLookup())
	require.NoError(t, err)

	chart, err := RenderWeatherImpact(mapped, testCols, RenderOptions{})
	require.NoError(t, err)
	assertSVG(t, chart)
	assert.False(t, chart.Empty)

	names := make([]string, 0, len(chart.Series))
	for _, s := range chart.Series {
		names = append(names, s.Name)
	}
	// 首次出现顺序，只有标签不出现原始编码
	assert.Equal(t, []string{"Misty", "Clear/Cloudy", "Light Snow/Rain", "Heavy Snow/Rain"}, names)
	assert.Equal(t, []float64{500, 700}, chart.Series[1].Values)
	assert.Equal(t, "Weather Condition", chart.XLabel)
}

func TestRenderSeasonalTrend(t *testing.T) {
	mapped, _, err := MapLabels(seasonTable(t), "season", config.DefaultData().SeasonLookup())
	require.NoError(t, err)
	winter, err := SelectSeason(mapped, "season", "Winter")
	require.NoError(t, err)

	chart, err := RenderSeasonalTrend(winter, "Winter", testCols, RenderOptions{})
	require.NoError(t, err)
	assertSVG(t, chart)

	assert.Equal(t, "Bike Rentals in Winter", chart.Title)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, []string{"0", "1"}, chart.Series[0].Labels)
	assert.Equal(t, []float64{1500, 3000}, chart.Series[0].Values)
}

func TestRenderSeasonalTrendSingleYear(t *testing.T) {
	df := load(t, [][]string{{"season", "yr", "cnt"}, {"Fall", "1", "4000"}})

	chart, err := RenderSeasonalTrend(df, "Fall", testCols, RenderOptions{})
	require.NoError(t, err)
	assertSVG(t, chart)
	assert.Equal(t, []float64{4000}, chart.Series[0].Values)
}

func TestRenderPeakHourBreakdown(t *testing.T) {
	df := load(t, [][]string{
		{"hr", "weekday", "workingday", "cnt"},
		{"17", "3", "1", "500"},
		{"17", "1", "1", "400"},
		{"17", "1", "1", "600"},
		{"17", "0", "0", "200"},
		{"17", "6", "0", "300"},
	})

	chart, err := RenderPeakHourBreakdown(df, 17, testCols, RenderOptions{})
	require.NoError(t, err)
	assertSVG(t, chart)

	assert.Equal(t, "Bike Rentals at Hour 17", chart.Title)
	require.Len(t, chart.Series, 2)
	assert.Equal(t, "0", chart.Series[0].Name)
	assert.Equal(t, "1", chart.Series[1].Name)
	assert.Equal(t, []string{"0", "1", "3", "6"}, chart.Series[0].Labels)
	assert.Equal(t, []float64{200, 0, 0, 300}, chart.Series[0].Values)
	assert.Equal(t, []float64{0, 500, 500, 0}, chart.Series[1].Values)
	// 没有行的组合不画柱子
	assert.Equal(t, []int{1, 0, 0, 1}, chart.Series[0].Rows)
	assert.Equal(t, []int{0, 2, 1, 0}, chart.Series[1].Rows)
}

func TestRenderSkipsBlankCounts(t *testing.T) {
	season := load(t, [][]string{
		{"season", "yr", "cnt"},
		{"Fall", "0", "2000"},
		{"Fall", "0", ""},
		{"Fall", "1", "2600"},
	})
	chart, err := RenderSeasonalTrend(season, "Fall", testCols, RenderOptions{})
	require.NoError(t, err)
	assertSVG(t, chart)
	assert.Equal(t, []string{"0", "1"}, chart.Series[0].Labels)
	assert.Equal(t, []float64{2000, 2600}, chart.Series[0].Values)

	// 只有空值的年份不出现
	season = load(t, [][]string{
		{"season", "yr", "cnt"},
		{"Fall", "0", ""},
		{"Fall", "1", "2600"},
	})
	chart, err = RenderSeasonalTrend(season, "Fall", testCols, RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, chart.Series[0].Labels)

	hour := load(t, [][]string{
		{"hr", "weekday", "workingday", "cnt"},
		{"17", "1", "1", "400"},
		{"17", "1", "1", ""},
		{"17", "0", "0", ""},
	})
	chart, err = RenderPeakHourBreakdown(hour, 17, testCols, RenderOptions{})
	require.NoError(t, err)
	assertSVG(t, chart)
	require.Len(t, chart.Series, 2)
	assert.Equal(t, []int{0, 0}, chart.Series[0].Rows)
	assert.Equal(t, []float64{0, 400}, chart.Series[1].Values)
	assert.Equal(t, []int{0, 1}, chart.Series[1].Rows)

	weather := load(t, [][]string{
		{"weathersit", "cnt"},
		{"Clear/Cloudy", "700"},
		{"Misty", ""},
		{"Clear/Cloudy", ""},
	})
	chart, err = RenderWeatherImpact(weather, testCols, RenderOptions{})
	require.NoError(t, err)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, "Clear/Cloudy", chart.Series[0].Name)
	assert.Equal(t, []float64{700}, chart.Series[0].Values)
}

func TestRenderAllBlankCountsIsEmpty(t *testing.T) {
	hour, err := SelectHour(load(t, [][]string{
		{"hr", "weekday", "workingday", "cnt"},
		{"8", "1", "1", "120"},
		{"17", "1", "1", ""},
		{"17", "2", "1", ""},
	}), "hr", 17)
	require.NoError(t, err)
	require.Equal(t, 2, hour.Nrow())

	chart, err := RenderPeakHourBreakdown(hour, 17, testCols, RenderOptions{})
	require.NoError(t, err)
	assert.True(t, chart.Empty)
	assertSVG(t, chart)
}

func TestRenderEmptyInput(t *testing.T) {
	empty, err := SelectHour(hourTable(t), "hr", 99)
	require.NoError(t, err)

	chart, err := RenderPeakHourBreakdown(empty, 99, testCols, RenderOptions{})
	require.NoError(t, err)
	assert.True(t, chart.Empty)
	assert.Equal(t, "Bike Rentals at Hour 99 (no data)", chart.Title)
	assertSVG(t, chart)

	seasonEmpty, err := SelectSeason(seasonTable(t), "season", "Monsoon")
	require.NoError(t, err)
	chart, err = RenderSeasonalTrend(seasonEmpty, "Monsoon", testCols, RenderOptions{})
	require.NoError(t, err)
	assert.True(t, chart.Empty)
}

func TestRenderFailureOnNonNumericCount(t *testing.T) {
	df := load(t, [][]string{{"weathersit", "cnt"}, {"Misty", "many"}})

	_, err := RenderWeatherImpact(df, testCols, RenderOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRenderFailure))

	var re *RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ChartWeather, re.Chart)
}
