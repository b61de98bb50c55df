package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"droughtdash/db"
	qhttp "droughtdash/http"
	"droughtdash/logging"
	"droughtdash/ml"
)

const defaultConfigPath = "config.yaml"

type Config struct {
	Http    qhttp.ServerConfig `yaml:"http"`
	Dataset struct {
		Path        string `yaml:"path"`
		Table       string `yaml:"table"`
		GeoColumn   string `yaml:"geo_column"`
		YearColumn  string `yaml:"year_column"`
		LabelColumn string `yaml:"label_column"`
	} `yaml:"dataset"`
	Model struct {
		Type string `yaml:"type"`
		Path string `yaml:"path"`
	} `yaml:"model"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Reload struct {
		Watch    bool          `yaml:"watch"`
		Debounce time.Duration `yaml:"debounce"`
	} `yaml:"reload"`
	Log logging.Config `yaml:"log"`
	UI  struct {
		Locale         string `yaml:"locale"`
		DefaultGeoCode string `yaml:"default_geo_code"`
		MinYear        int    `yaml:"min_year"`
		MaxYear        int    `yaml:"max_year"`
	} `yaml:"ui"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

func defaultConfig() *Config {
	cfg := &Config{Http: qhttp.DefaultServerConfig()}

	opts := db.DefaultOptions()
	cfg.Dataset.Path = "data/secheresse.gpkg"
	cfg.Dataset.Table = opts.Table
	cfg.Dataset.GeoColumn = opts.GeoColumn
	cfg.Dataset.YearColumn = opts.YearColumn
	cfg.Dataset.LabelColumn = opts.LabelColumn

	cfg.Model.Type = ml.TypeRandomForest
	cfg.Model.Path = "models/random_forest.json"
	cfg.Cache.Size = 1024
	cfg.Reload.Watch = true
	cfg.Reload.Debounce = 500 * time.Millisecond
	cfg.Log = logging.Config{Level: "info", Format: "console", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 28}
	cfg.UI.Locale = "fr"
	cfg.UI.DefaultGeoCode = "75056"
	cfg.UI.MinYear = 2019
	cfg.UI.MaxYear = 2022
	cfg.Metrics.Enabled = true
	return cfg
}

// loadConfig decodes path over the defaults. A missing file is only an error
// when the path was given explicitly.
func loadConfig(path string, explicit bool) (*Config, error) {
	config := defaultConfig()

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return config, config.validate()
		}
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Model.Type {
	case ml.TypeDecisionTree, ml.TypeRandomForest:
	default:
		return fmt.Errorf("model.type must be %s or %s, got %q", ml.TypeDecisionTree, ml.TypeRandomForest, c.Model.Type)
	}
	if c.Dataset.Path == "" || c.Model.Path == "" {
		return errors.New("dataset.path and model.path are required")
	}
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.Http.Port)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative: %d", c.Cache.Size)
	}
	if c.UI.MinYear > c.UI.MaxYear {
		return fmt.Errorf("ui.min_year %d is after ui.max_year %d", c.UI.MinYear, c.UI.MaxYear)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) datasetOptions() db.Options {
	return db.Options{
		Table:       c.Dataset.Table,
		GeoColumn:   c.Dataset.GeoColumn,
		YearColumn:  c.Dataset.YearColumn,
		LabelColumn: c.Dataset.LabelColumn,
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
