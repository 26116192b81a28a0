// data.go
package processor

import (
	"BikeRentalDashboard/src/config"

	"github.com/go-gota/gota/dataframe"
)

// 表名
const (
	TableWeather = "weather"
	TableSeason  = "season"
	TableHour    = "hour"
)

// Tables 启动时加载的三张表
type Tables struct {
	Weather dataframe.DataFrame
	Season  dataframe.DataFrame
	Hour    dataframe.DataFrame
}

// TablesFrom 从加载结果中取出三张表
func TablesFrom(m map[string]dataframe.DataFrame) Tables {
	return Tables{
		Weather: m[TableWeather],
		Season:  m[TableSeason],
		Hour:    m[TableHour],
	}
}

// Columns 各表中用到的实际列名
type Columns struct {
	Weather    string
	Season     string
	Year       string
	Hour       string
	Weekday    string
	WorkingDay string
	Count      string
}

// ColumnsFrom 根据数据配置解析列名
func ColumnsFrom(dcfg *config.DataConfig) Columns {
	return Columns{
		Weather:    dcfg.Column(config.ColWeather),
		Season:     dcfg.Column(config.ColSeason),
		Year:       dcfg.Column(config.ColYear),
		Hour:       dcfg.Column(config.ColHour),
		Weekday:    dcfg.Column(config.ColWeekday),
		WorkingDay: dcfg.Column(config.ColWorkingDay),
		Count:      dcfg.Column(config.ColCount),
	}
}

// Required 每张表必须包含的列
func (c Columns) Required() map[string][]string {
	return map[string][]string{
		TableWeather: {c.Weather, c.Count},
		TableSeason:  {c.Season, c.Year, c.Count},
		TableHour:    {c.Hour, c.Weekday, c.WorkingDay, c.Count},
	}
}

// Selection 一次渲染的用户选择
type Selection struct {
	Hour   int
	Season string
}
