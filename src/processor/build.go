package processor

import (
	"BikeRentalDashboard/src/config"
	"BikeRentalDashboard/src/datasource/file"

	"gonum.org/v1/plot/vg"
)

// Sources 根据配置生成三张表的加载描述
func Sources(cfg *config.Config, dcfg *config.DataConfig) []file.Source {
	required := ColumnsFrom(dcfg).Required()
	return []file.Source{
		{Table: TableWeather, Path: cfg.DataPath(cfg.Files.Weather), Required: required[TableWeather]},
		{Table: TableSeason, Path: cfg.DataPath(cfg.Files.Season), Required: required[TableSeason]},
		{Table: TableHour, Path: cfg.DataPath(cfg.Files.Hour), Required: required[TableHour]},
	}
}

// OptionsFrom 配置中的图表尺寸
func OptionsFrom(cfg *config.Config) RenderOptions {
	return RenderOptions{
		Width:  vg.Length(cfg.Chart.WidthInch) * vg.Inch,
		Height: vg.Length(cfg.Chart.HeightInch) * vg.Inch,
	}
}

// Build 加载三张表并创建 Pipeline
func Build(cfg *config.Config, dcfg *config.DataConfig) (*Pipeline, error) {
	tables, err := file.LoadTables(Sources(cfg, dcfg), file.Options{
		Encoding:  cfg.Encoding,
		SheetName: cfg.SheetName,
	})
	if err != nil {
		return nil, err
	}
	return NewPipeline(TablesFrom(tables), dcfg, OptionsFrom(cfg))
}
