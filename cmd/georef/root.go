package main

import (
	"io"
	"os"

	"github.com/wgdzlh/georef"
	"github.com/wgdzlh/georef/log"
	"github.com/wgdzlh/georef/store"
	"github.com/wgdzlh/georef/vision"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const logTag = "CLI:"

type app struct {
	out     io.Writer
	cfgPath string
	cfg     georef.Config

	logLevel    string
	logFormat   string
	logFile     string
	metricsFile string
	historyDB   string
	warper      string
	resolution  float64
	maxArea     float64
	quality     int

	toolbox *georef.GdalToolbox
	history *store.Store
}

func newApp(out io.Writer) *app {
	return &app{out: out}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "georef",
		Short: "Automatic georeferencing of aerial photos",
		Long: `georef matches aerial photos against a georeferenced reference raster
(RootSIFT features, RANSAC homography) and writes them as GeoTIFFs on a
fixed-resolution grid.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", os.Getenv("GEOREF_CONFIG"), "JSON config file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "", "log format (console, json)")
	pf.StringVar(&a.logFile, "log-file", "", "also write logs to this file")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write prometheus metrics to this textfile on exit")
	pf.StringVar(&a.historyDB, "history", "", "record runs in this sqlite database")
	pf.StringVar(&a.warper, "warper", "", "perspective warper (opencv, go)")
	pf.Float64Var(&a.resolution, "resolution", 0, "output resolution in CRS units, 0 keeps the config value")
	pf.Float64Var(&a.maxArea, "max-area", 0, "polygon area limit in km², 0 keeps the config value")
	pf.IntVar(&a.quality, "quality", 0, "JPEG quality of the output, 0 keeps the config value")

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newBatchCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newAreaCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))
	return rootCmd
}

// 读取配置，命令行参数覆盖配置文件
func (a *app) setup(cmd *cobra.Command, args []string) (err error) {
	if a.cfg, err = georef.LoadConfig(a.cfgPath); err != nil {
		return
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		a.cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		a.cfg.Log.Format = a.logFormat
	}
	if flags.Changed("log-file") {
		a.cfg.Log.File = a.logFile
	}
	if flags.Changed("metrics-file") {
		a.cfg.Metrics.TextFile = a.metricsFile
	}
	if flags.Changed("history") {
		a.cfg.History.Enabled = a.historyDB != ""
		a.cfg.History.DBPath = a.historyDB
	}
	if flags.Changed("warper") {
		a.cfg.Warper = a.warper
	}
	if flags.Changed("resolution") {
		a.cfg.TargetResolution = a.resolution
	}
	if flags.Changed("max-area") {
		a.cfg.MaxAreaKm2 = a.maxArea
	}
	if flags.Changed("quality") {
		a.cfg.JPEGQuality = a.quality
	}
	if err = a.cfg.Validate(); err != nil {
		return
	}
	if err = log.Init(a.cfg.Log.Level, a.cfg.Log.Format, a.cfg.Log.File); err != nil {
		return
	}
	a.toolbox = georef.NewGdalToolbox(a.cfg.TmpDir)
	if a.cfg.History.Enabled {
		if a.history, err = store.New(a.cfg.History.DBPath); err != nil {
			return
		}
	}
	log.Debug(logTag+"config loaded", zap.String("path", a.cfgPath), zap.Any("config", a.cfg))
	return
}

// 导出指标并释放资源，命令失败时同样执行
func (a *app) close() {
	if path := a.cfg.Metrics.TextFile; path != "" {
		if err := georef.WriteMetrics(path); err != nil {
			log.Error(logTag+"write metrics failed", zap.String("path", path), zap.Error(err))
		}
	}
	if a.history != nil {
		a.history.Close()
	}
	if a.toolbox != nil {
		a.toolbox.Close()
	}
	_ = log.Sync()
}

// 创建流水线前检查GDAL驱动与OpenCV
func (a *app) georeferencer() (p *georef.Georeferencer, err error) {
	if err = a.toolbox.CheckDrivers(); err != nil {
		return
	}
	log.Info(logTag+"pipeline ready", zap.String("opencv", vision.Version()), zap.String("warper", a.cfg.Warper))
	return georef.NewGeoreferencer(a.cfg, a.toolbox)
}
