package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 环境变量前缀
const EnvPrefix = "BIKEDASH_"

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Server struct {
		Addr         string   `json:"addr" yaml:"addr"`                   // 监听地址
		ReadTimeout  Duration `json:"read_timeout" yaml:"read_timeout"`   // 读超时
		WriteTimeout Duration `json:"write_timeout" yaml:"write_timeout"` // 写超时
	} `json:"server" yaml:"server"`

	DataDir string `json:"data_dir" yaml:"data_dir"` // 数据文件目录
	Files   struct {
		Weather string `json:"weather" yaml:"weather"` // 天气数据表
		Season  string `json:"season" yaml:"season"`   // 季节数据表
		Hour    string `json:"hour" yaml:"hour"`       // 小时数据表
	} `json:"files" yaml:"files"`
	Encoding  string `json:"encoding" yaml:"encoding"`     // 输入文件编码，空表示UTF-8
	SheetName string `json:"sheet_name" yaml:"sheet_name"` // xlsx 工作表名，空表示第一个
	WatchData bool   `json:"watch_data" yaml:"watch_data"` // 数据文件变化时自动重新加载

	Logo  string `json:"logo" yaml:"logo"`   // 侧边栏图片
	Title string `json:"title" yaml:"title"` // 侧边栏标题

	Chart struct {
		WidthInch  float64 `json:"width_inch" yaml:"width_inch"`
		HeightInch float64 `json:"height_inch" yaml:"height_inch"`
	} `json:"chart" yaml:"chart"`

	LogName        string   `json:"log_name" yaml:"log_name"`
	LogMaxSize     string   `json:"log_max_size" yaml:"log_max_size"` // 例如 "10 * 1024 * 1024"
	LogCheckPeriod Duration `json:"log_check_period" yaml:"log_check_period"`
	PidFile        string   `json:"pid_file" yaml:"pid_file"`

	Tracing struct {
		EndpointURL string  `json:"endpoint_url" yaml:"endpoint_url"` // OTLP/HTTP 地址，例如 http://localhost:4318/v1/traces；空表示不导出
		ServiceName string  `json:"service_name" yaml:"service_name"`
		SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio"` // 0..1
	} `json:"tracing" yaml:"tracing"`
}

// DataConfig 数据相关配置：标签映射与列名
type DataConfig struct {
	WeatherLabels map[string]string `json:"weather_labels" yaml:"weather_labels"`
	SeasonLabels  map[string]string `json:"season_labels" yaml:"season_labels"`
	Columns       map[string]string `json:"columns" yaml:"columns"`
	StrictLabels  bool              `json:"strict_labels" yaml:"strict_labels"` // 未映射的编码视为错误
}

// 逻辑列名
const (
	ColWeather    = "weathersit"
	ColSeason     = "season"
	ColYear       = "yr"
	ColHour       = "hr"
	ColWeekday    = "weekday"
	ColWorkingDay = "workingday"
	ColCount      = "cnt"
)

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8501"
	cfg.Server.ReadTimeout = Duration(10 * time.Second)
	cfg.Server.WriteTimeout = Duration(30 * time.Second)
	cfg.DataDir = "./data"
	cfg.Files.Weather = "cuaca_df_cleaned.csv"
	cfg.Files.Season = "musim_df_cleaned.csv"
	cfg.Files.Hour = "waktu_puncak_df_cleaned.csv"
	cfg.Logo = "logobike.jpg"
	cfg.Title = "Bike Rental Analysis Dashboard"
	cfg.Chart.WidthInch = 10
	cfg.Chart.HeightInch = 6
	cfg.LogName = "app.log"
	cfg.LogMaxSize = "10 * 1024 * 1024"
	cfg.LogCheckPeriod = Duration(time.Minute)
	cfg.PidFile = "bikedash.pid"
	cfg.Tracing.ServiceName = "bikedash"
	cfg.Tracing.SampleRatio = 1
	return cfg
}

// DefaultData 返回默认数据配置
func DefaultData() *DataConfig {
	return &DataConfig{
		WeatherLabels: map[string]string{
			"1": "Clear/Cloudy",
			"2": "Misty",
			"3": "Light Snow/Rain",
			"4": "Heavy Snow/Rain",
		},
		SeasonLabels: map[string]string{
			"1": "Spring",
			"2": "Summer",
			"3": "Fall",
			"4": "Winter",
		},
		Columns: map[string]string{
			ColWeather:    ColWeather,
			ColSeason:     ColSeason,
			ColYear:       ColYear,
			ColHour:       ColHour,
			ColWeekday:    ColWeekday,
			ColWorkingDay: ColWorkingDay,
			ColCount:      ColCount,
		},
	}
}

// Load 读取配置文件，文件不存在时使用默认值，最后应用环境变量覆盖
func Load(folder, file, dataFile string) (*Config, *DataConfig, error) {
	// .env 不存在时忽略
	_ = godotenv.Load(filepath.Join(folder, ".env"))

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(filepath.Join(folder, file), cfgChan, errChan)
	go parseDataConfig(filepath.Join(folder, dataFile), dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := dcfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, bool, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, true, nil
}

// unmarshal 按扩展名选择 JSON 或 YAML
func unmarshal(filePath string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

func parseConfig(filePath string, resultChan chan<- *Config, errChan chan<- error) {
	cfg := Default()
	data, ok, err := readFile(filePath)
	if err != nil {
		errChan <- err
		return
	}
	if ok {
		if err := unmarshal(filePath, data, cfg); err != nil {
			errChan <- fmt.Errorf("解析Config失败: %w", err)
			return
		}
	}
	resultChan <- cfg
}

func parseDataConfig(filePath string, resultChan chan<- *DataConfig, errChan chan<- error) {
	dcfg := DefaultData()
	data, ok, err := readFile(filePath)
	if err != nil {
		errChan <- err
		return
	}
	if ok {
		var parsed DataConfig
		if err := unmarshal(filePath, data, &parsed); err != nil {
			errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
			return
		}
		dcfg.merge(&parsed)
	}
	resultChan <- dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg  *Config
		dcfg *DataConfig
		errs *multierror.Error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, nil, fmt.Errorf("配置加载失败: %w", err)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

// applyEnv 使用 BIKEDASH_* 环境变量覆盖配置
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvPrefix + "ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "ENCODING"); ok {
		c.Encoding = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "LOG_NAME"); ok {
		c.LogName = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "OTLP_ENDPOINT"); ok {
		c.Tracing.EndpointURL = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "WATCH_DATA"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.WatchData = b
		}
	}
}

// Validate 检查必填项
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Server.Addr == "" {
		errs = multierror.Append(errs, errors.New("server.addr 不能为空"))
	}
	if c.Files.Weather == "" || c.Files.Season == "" || c.Files.Hour == "" {
		errs = multierror.Append(errs, errors.New("files.weather/season/hour 不能为空"))
	}
	if c.Chart.WidthInch <= 0 || c.Chart.HeightInch <= 0 {
		errs = multierror.Append(errs, errors.New("chart 尺寸必须大于0"))
	}
	if _, err := ParseSize(c.LogMaxSize); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = multierror.Append(errs, errors.New("tracing.sample_ratio 必须在 0 到 1 之间"))
	}
	return errs.ErrorOrNil()
}

// DataPath 返回数据文件完整路径
func (c *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// merge 只覆盖配置文件中出现的项
func (dc *DataConfig) merge(other *DataConfig) {
	if len(other.WeatherLabels) > 0 {
		dc.WeatherLabels = other.WeatherLabels
	}
	if len(other.SeasonLabels) > 0 {
		dc.SeasonLabels = other.SeasonLabels
	}
	for k, v := range other.Columns {
		dc.Columns[k] = v
	}
	dc.StrictLabels = other.StrictLabels
}

// Validate 检查标签映射的键都是整数
func (dc *DataConfig) Validate() error {
	var errs *multierror.Error
	if _, err := toCodeMap(dc.WeatherLabels); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("weather_labels: %w", err))
	}
	if _, err := toCodeMap(dc.SeasonLabels); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("season_labels: %w", err))
	}
	return errs.ErrorOrNil()
}

// WeatherLookup 天气编码 -> 标签
func (dc *DataConfig) WeatherLookup() map[int]string {
	m, _ := toCodeMap(dc.WeatherLabels)
	return m
}

// SeasonLookup 季节编码 -> 标签
func (dc *DataConfig) SeasonLookup() map[int]string {
	m, _ := toCodeMap(dc.SeasonLabels)
	return m
}

// Column 返回逻辑列对应的实际列名
func (dc *DataConfig) Column(name string) string {
	if v, ok := dc.Columns[name]; ok && v != "" {
		return v
	}
	return name
}

func toCodeMap(labels map[string]string) (map[int]string, error) {
	out := make(map[int]string, len(labels))
	for k, v := range labels {
		code, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("编码 %q 不是整数", k)
		}
		out[code] = v
	}
	return out, nil
}

// ParseSize 解析 "10 * 1024 * 1024" 形式的字节数
func ParseSize(expr string) (int64, error) {
	parts := strings.Split(expr, "*")
	var result int64 = 1
	for _, part := range parts {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || num <= 0 {
			return 0, fmt.Errorf("log_max_size %q 格式错误", expr)
		}
		result *= num
	}
	return result, nil
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalYAML 支持 YAML 中的 "30s" 写法
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }
