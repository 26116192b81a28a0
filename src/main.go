package main

import (
	"BikeRentalDashboard/src/config"
	"BikeRentalDashboard/src/processor"
	"BikeRentalDashboard/src/storage"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// 命令行参数
type cliOptions struct {
	configDir  string
	configFile string
	dataFile   string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "bikedash",
		Short: "Bike rental analysis dashboard",
		Long: `bikedash 读取三张单车租赁数据表(天气、季节、小时)，
在网页中展示天气箱线图、季节趋势图和小时分组柱状图。

Examples:
  bikedash serve --config-dir ./config
  bikedash check --verbose`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "./config", "配置文件目录")
	root.PersistentFlags().StringVar(&opts.configFile, "config", "config.json", "应用配置文件名(json/yaml)")
	root.PersistentFlags().StringVar(&opts.dataFile, "data-config", "dataconfig.json", "数据配置文件名(json/yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出 DEBUG 日志")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the dashboard web server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(opts)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Load the data, map labels and render the default charts once",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCheck(opts, cmd.OutOrStdout())
			},
		},
	)
	return root
}

// setup 加载配置并初始化日志系统
func setup(opts *cliOptions, echo io.Writer) (*config.Config, *config.DataConfig, *storage.Logger, error) {
	cfg, dcfg, err := config.Load(opts.configDir, opts.configFile, opts.dataFile)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	logger.SetEcho(echo)
	if opts.verbose {
		logger.SetLevel(storage.DEBUG)
	}
	return cfg, dcfg, logger, nil
}

// runCheck 加载数据并按默认选择渲染一次
func runCheck(opts *cliOptions, out io.Writer) error {
	cfg, dcfg, logger, err := setup(opts, out)
	if err != nil {
		return err
	}
	defer logger.Close()

	p, err := processor.Build(cfg, dcfg)
	if err != nil {
		logger.Error("加载数据失败: " + err.Error())
		return err
	}
	for _, st := range p.MapStats() {
		if st.Unmapped > 0 {
			logger.Warningf("列 %s 有 %d 行编码没有对应标签: %v", st.Column, st.Unmapped, st.Codes)
		}
	}

	lo, hi := p.HourRange()
	sel := p.DefaultSelection()
	logger.Infof("行数 %v，小时范围 %d-%d，季节 %v", p.Rows(), lo, hi, p.Seasons())

	d, err := p.Render(context.Background(), sel)
	if err != nil {
		logger.Errorf("渲染失败(pass %s): %v", d.PassID, err)
		return err
	}
	for _, c := range []*processor.Chart{d.Weather, d.Season, d.Hour} {
		logger.Infof("%s: %q, %d 字节, empty=%v", c.Name, c.Title, len(c.SVG), c.Empty)
	}
	logger.Infof("检查完成(pass %s, hour=%d, season=%s)", d.PassID, sel.Hour, sel.Season)
	return nil
}
