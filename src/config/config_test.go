package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadDefaultsWhenFilesMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, dcfg, err := Load(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, ":8501", cfg.Server.Addr)
	assert.Equal(t, "cuaca_df_cleaned.csv", cfg.Files.Weather)
	assert.Equal(t, 10.0, cfg.Chart.WidthInch)
	assert.Equal(t, "Winter", dcfg.SeasonLookup()[4])
	assert.Equal(t, "Heavy Snow/Rain", dcfg.WeatherLookup()[4])
	assert.Equal(t, "hr", dcfg.Column(ColHour))
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{
		"server": {"addr": ":9000", "read_timeout": "5s"},
		"data_dir": "/srv/data",
		"files": {"weather": "w.csv", "season": "s.csv", "hour": "h.xlsx"},
		"chart": {"width_inch": 8, "height_inch": 4},
		"log_max_size": "1024 * 1024"
	}`)
	writeFile(t, dir, "dataconfig.json", `{
		"season_labels": {"1": "Musim Semi"},
		"columns": {"cnt": "total"},
		"strict_labels": true
	}`)

	cfg, dcfg, err := Load(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, "/srv/data/h.xlsx", cfg.DataPath(cfg.Files.Hour))
	assert.Equal(t, map[int]string{1: "Musim Semi"}, dcfg.SeasonLookup())
	assert.Len(t, dcfg.WeatherLookup(), 4)
	assert.Equal(t, "total", dcfg.Column(ColCount))
	assert.Equal(t, "hr", dcfg.Column(ColHour))
	assert.True(t, dcfg.StrictLabels)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "server:\n  addr: \":7000\"\n  write_timeout: 1m\nwatch_data: true\n")

	cfg, _, err := Load(dir, "config.yaml", "dataconfig.yaml")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, time.Minute, cfg.Server.WriteTimeout.Std())
	assert.True(t, cfg.WatchData)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "BIKEDASH_DATA_DIR=/from/dotenv\n")
	t.Setenv("BIKEDASH_ADDR", ":1234")
	t.Cleanup(func() { os.Unsetenv("BIKEDASH_DATA_DIR") })

	cfg, _, err := Load(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)
	assert.Equal(t, ":1234", cfg.Server.Addr)
	assert.Equal(t, "/from/dotenv", cfg.DataDir)
}

func TestLoadCombinesErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{not json`)
	writeFile(t, dir, "dataconfig.json", `{also not json`)

	_, _, err := Load(dir, "config.json", "dataconfig.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析Config失败")
	assert.Contains(t, err.Error(), "解析DataConfig失败")
}

func TestDataConfigRejectsNonIntegerCodes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dataconfig.json", `{"weather_labels": {"sunny": "Sunny"}}`)

	_, _, err := Load(dir, "config.json", "dataconfig.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weather_labels")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.LogMaxSize = "ten megabytes"
	cfg.Tracing.SampleRatio = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.addr")
	assert.Contains(t, err.Error(), "log_max_size")
	assert.Contains(t, err.Error(), "tracing.sample_ratio")
}

func TestParseSize(t *testing.T) {
	n, err := ParseSize("10 * 1024 * 1024")
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024), n)

	_, err = ParseSize("")
	assert.Error(t, err)
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"90s"`)))
	assert.Equal(t, 90*time.Second, d.Std())

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
}
