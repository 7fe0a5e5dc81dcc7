package georef

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	GTIFF_DRIVER_NAME   = "GTiff"
	MEM_DRIVER_NAME     = "MEM"
	SHP_DRIVER_NAME     = "ESRI Shapefile"
	GEOJSON_DRIVER_NAME = "GeoJSON"
	GPKG_DRIVER_NAME    = "GPKG"

	FILE_EXT_SHP     = ".shp"
	FILE_EXT_JSON    = ".json"
	FILE_EXT_GEOJSON = ".geojson"
	FILE_EXT_GPKG    = ".gpkg"
	FILE_EXT_TIF     = ".tif"

	SHAPE_ENCODING  = "UTF-8"
	ENCODING_OPTION = "ENCODING=" + SHAPE_ENCODING

	UNIVERSAL_CRS = "EPSG:4326"
	OUTPUT_SUFFIX = "_georef"
	NODATA_VALUE  = 0
	OUTPUT_BANDS  = 3

	GTIFF_COMPRESS    = "COMPRESS=JPEG"
	GTIFF_PHOTOMETRIC = "PHOTOMETRIC=YCBCR"
	GTIFF_TILED       = "TILED=YES"
	GTIFF_QUALITY     = "JPEG_QUALITY=%d"

	RESAMPLE_ALG = "cubic"

	SHP_FIELD_IMAGE  = "image"
	SHP_FIELD_OUTPUT = "output"
	SHP_FIELD_RES    = "res"

	// 地理坐标系下的面积近似：每度纬度约111.1km，每度经度约111.32*cos(纬度)km
	KmPerDegLat        = 111.1
	KmPerDegLonEquator = 111.32
	// WGS84椭球
	WGS84SemiMajor  = 6378137.0
	WGS84Flattening = 1 / 298.257223563
	// WGS84等面积球半径（米）
	AuthalicRadius = 6371007.181
)

const (
	DefaultMaxAreaKm2       = 3050.0
	DefaultMinMatches       = 4
	DefaultMinInliers       = 4
	DefaultRatio            = 0.75
	DefaultReprojThreshold  = 5.0
	DefaultRansacIters      = 2000
	DefaultRansacConfidence = 0.995
	DefaultRansacSeed       = 42
	DefaultTargetResolution = 1.0
	DefaultRenderWidth      = 2000
	DefaultJPEGQuality      = 85

	WarperOpenCV = "opencv"
	WarperGo     = "go"
)

// 流水线配置
type Config struct {
	MaxAreaKm2       float64 `json:"max_area_km2"`
	MinMatches       int     `json:"min_matches"`
	MinInliers       int     `json:"min_inliers"`
	RatioThreshold   float64 `json:"ratio_threshold"`
	ReprojThreshold  float64 `json:"reproj_threshold"`
	RansacIters      int     `json:"ransac_iters"`
	RansacConfidence float64 `json:"ransac_confidence"`
	RansacSeed       int64   `json:"ransac_seed"`
	TargetResolution float64 `json:"target_resolution"` // <=0表示保持参考瓦片分辨率
	RenderWidth      int     `json:"render_width"`
	JPEGQuality      int     `json:"jpeg_quality"`
	FailOnEmptyWarp  bool    `json:"fail_on_empty_warp"` // 变换结果全为nodata时按失败处理，默认保留整幅画布
	Warper           string  `json:"warper"`             // opencv或go
	OutputSuffix     string  `json:"output_suffix"`
	ReuseReference   bool    `json:"reuse_reference"`
	TmpDir           string  `json:"tmp_dir"`

	Log     LogConfig     `json:"log"`
	History HistoryConfig `json:"history"`
	Metrics MetricsConfig `json:"metrics"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // console或json
	File   string `json:"file"`
}

type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"db_path"`
}

type MetricsConfig struct {
	TextFile string `json:"textfile"` // node-exporter textfile路径，为空不导出
}

func DefaultConfig() Config {
	return Config{
		MaxAreaKm2:       DefaultMaxAreaKm2,
		MinMatches:       DefaultMinMatches,
		MinInliers:       DefaultMinInliers,
		RatioThreshold:   DefaultRatio,
		ReprojThreshold:  DefaultReprojThreshold,
		RansacIters:      DefaultRansacIters,
		RansacConfidence: DefaultRansacConfidence,
		RansacSeed:       DefaultRansacSeed,
		TargetResolution: DefaultTargetResolution,
		RenderWidth:      DefaultRenderWidth,
		JPEGQuality:      DefaultJPEGQuality,
		Warper:           WarperOpenCV,
		OutputSuffix:     OUTPUT_SUFFIX,
		ReuseReference:   true,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		History: HistoryConfig{
			DBPath: "georef-history.db",
		},
	}
}

func (c Config) Validate() (err error) {
	switch {
	case c.MaxAreaKm2 <= 0:
		err = errors.Wrapf(ErrInvalidConfig, "max_area_km2 must be positive, got %v", c.MaxAreaKm2)
	case c.MinMatches < 4:
		err = errors.Wrapf(ErrInvalidConfig, "min_matches must be at least 4, got %d", c.MinMatches)
	case c.MinInliers < 4:
		err = errors.Wrapf(ErrInvalidConfig, "min_inliers must be at least 4, got %d", c.MinInliers)
	case c.RatioThreshold <= 0 || c.RatioThreshold >= 1:
		err = errors.Wrapf(ErrInvalidConfig, "ratio_threshold must be in (0,1), got %v", c.RatioThreshold)
	case c.ReprojThreshold <= 0:
		err = errors.Wrapf(ErrInvalidConfig, "reproj_threshold must be positive, got %v", c.ReprojThreshold)
	case c.RansacIters <= 0:
		err = errors.Wrapf(ErrInvalidConfig, "ransac_iters must be positive, got %d", c.RansacIters)
	case c.RansacConfidence <= 0 || c.RansacConfidence >= 1:
		err = errors.Wrapf(ErrInvalidConfig, "ransac_confidence must be in (0,1), got %v", c.RansacConfidence)
	case c.RenderWidth <= 0:
		err = errors.Wrapf(ErrInvalidConfig, "render_width must be positive, got %d", c.RenderWidth)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		err = errors.Wrapf(ErrInvalidConfig, "jpeg_quality must be in [1,100], got %d", c.JPEGQuality)
	case c.Warper != WarperOpenCV && c.Warper != WarperGo:
		err = errors.Wrapf(ErrInvalidConfig, "unknown warper %q", c.Warper)
	case strings.TrimSpace(c.OutputSuffix) == "":
		// 输出与输入同名时无法区分
		err = errors.Wrap(ErrInvalidConfig, "output_suffix must not be empty")
	}
	return
}

// 读取JSON配置，缺失字段取默认值；文件不存在时返回默认配置
func LoadConfig(path string) (cfg Config, err error) {
	cfg = DefaultConfig()
	if path == "" {
		return
	}
	data, err := os.ReadFile(expandUser(path))
	if errors.Is(err, os.ErrNotExist) {
		err = nil
		return
	}
	if err != nil {
		return
	}
	if err = json.Unmarshal(data, &cfg); err != nil {
		err = errors.Wrapf(ErrInvalidConfig, "parse %s: %v", path, err)
		return
	}
	err = cfg.Validate()
	return
}

func SaveConfig(path string, cfg Config) (err error) {
	path = expandUser(path)
	if err = os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return
	}
	return os.WriteFile(path, data, 0644)
}

func expandUser(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
