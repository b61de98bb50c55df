package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/plot"

	"droughtdash/charts"
	"droughtdash/dashboard"
	qhttp "droughtdash/http"
	"droughtdash/locale"
	"droughtdash/logging"
	"droughtdash/monitoring"
	"droughtdash/predict"
	"droughtdash/store"
)

// app holds the components shared by every command.
type app struct {
	config     *Config
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	bundle     *locale.Bundle
	store      *store.Store
	dispatcher *dashboard.Dispatcher
}

// newApp wires the store, cache and dispatcher. onReload, when set, runs
// after the metrics observer on every reload attempt.
func newApp(config *Config, logger *zap.Logger, onReload func(*store.Snapshot, error)) (*app, error) {
	a := &app{config: config, logger: logger}

	var err error
	if config.Metrics.Enabled {
		if a.metrics, err = monitoring.NewMetrics(); err != nil {
			return nil, err
		}
	}
	if a.bundle, err = locale.NewBundle(config.UI.Locale); err != nil {
		return nil, err
	}

	loader := store.FileLoader(config.Dataset.Path, config.datasetOptions(), config.Model.Type, config.Model.Path)
	a.store = store.New(loader, logger.Named("store"), func(snap *store.Snapshot, err error) {
		if a.metrics != nil {
			a.metrics.ObserveReload(snap, err)
		}
		if onReload != nil {
			onReload(snap, err)
		}
	})

	var cache *predict.Cache
	if config.Cache.Size > 0 {
		var observe func(bool)
		if a.metrics != nil {
			observe = a.metrics.ObserveCache
		}
		if cache, err = predict.NewCache(config.Cache.Size, observe); err != nil {
			return nil, err
		}
	}

	opts := dashboard.Options{
		DefaultGeoCode: config.UI.DefaultGeoCode,
		MinYear:        config.UI.MinYear,
		MaxYear:        config.UI.MaxYear,
	}
	if a.metrics != nil {
		opts.ObservePrediction = a.metrics.ObservePrediction
	}
	a.dispatcher = dashboard.NewDispatcher(a.store, cache, a.bundle, logger.Named("dashboard"), opts)
	return a, nil
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "droughtdash",
		Short: "Drought and CAT NAT prediction dashboard",
		Long: `droughtdash serves an interactive dashboard over a commune-level GeoPackage
of monthly climate indicators and CAT NAT drought declarations, and predicts
the declaration class of a commune for a given year with a pre-trained model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	serveCmd := newServeCmd(flags)
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd, newPredictCmd(flags), newRenderCmd(flags), newHeatmapCmd(flags))
	return rootCmd
}

// setup loads the config and builds the logger for cmd.
func setup(cmd *cobra.Command, flags *globalFlags) (*Config, *zap.Logger, error) {
	explicit := cmd.Flags().Changed("config")
	config, err := loadConfig(flags.configPath, explicit)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		if _, err := logging.ParseLevel(flags.logLevel); err != nil {
			return nil, nil, err
		}
		config.Log.Level = flags.logLevel
	}
	logger, err := logging.New(config.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return config, logger, nil
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cmd.Flags().Changed("port") {
				config.Http.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config, logger)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override http.port")
	return cmd
}

func serve(ctx context.Context, config *Config, logger *zap.Logger) error {
	var server *qhttp.Server
	a, err := newApp(config, logger, func(snap *store.Snapshot, err error) {
		server.Hub().NotifyReload(snap, err)
	})
	if err != nil {
		return err
	}

	server = qhttp.NewServer(config.Http, qhttp.Deps{
		Store:      a.store,
		Dispatcher: a.dispatcher,
		Bundle:     a.bundle,
		Metrics:    a.metrics,
		Logger:     logger.Named("http"),
	})

	if _, err := a.store.Reload(ctx); err != nil {
		if !config.Reload.Watch {
			return err
		}
		logger.Warn("initial load failed, waiting for the files to change", zap.Error(err))
	}

	if config.Reload.Watch {
		watcher, err := store.NewWatcher(a.store, config.Reload.Debounce, logger.Named("watcher"),
			config.Dataset.Path, config.Model.Path)
		if err != nil {
			return err
		}
		go watcher.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		return err
	}
	logger.Info("exiting")
	return nil
}

// loadOnce builds the app and loads the dataset and model once.
func loadOnce(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	config, logger, err := setup(cmd, flags)
	if err != nil {
		return nil, err
	}
	a, err := newApp(config, logger, nil)
	if err != nil {
		return nil, err
	}
	if _, err := a.store.Reload(cmd.Context()); err != nil {
		return nil, err
	}
	return a, nil
}

func newPredictCmd(flags *globalFlags) *cobra.Command {
	var (
		geoCode string
		year    int
		lang    string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the CAT NAT class of one commune for one year",
		Example: `  droughtdash predict --code 75056 --year 2019
  droughtdash predict --code 13055 --year 2020 --lang en`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadOnce(cmd, flags)
			if err != nil {
				return err
			}
			defer a.logger.Sync()
			loc := a.localizer(lang)

			view, err := a.dispatcher.Predict(geoCode, year)
			if err != nil {
				if predict.IsAdvisory(err) {
					fmt.Fprintln(cmd.OutOrStdout(), advisoryText(loc, err))
					return nil
				}
				cmd.PrintErrln(loc.Text(locale.InferenceFailure))
				return err
			}
			return printView(cmd.OutOrStdout(), loc, view)
		},
	}
	cmd.Flags().StringVar(&geoCode, "code", "", "INSEE commune code")
	cmd.Flags().IntVar(&year, "year", 0, "Year to predict")
	cmd.Flags().StringVar(&lang, "lang", "", "Output language (fr, en)")
	cmd.MarkFlagRequired("code")
	cmd.MarkFlagRequired("year")
	return cmd
}

func newRenderCmd(flags *globalFlags) *cobra.Command {
	var (
		geoCode string
		year    int
		output  string
		lang    string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write a static HTML prediction report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadOnce(cmd, flags)
			if err != nil {
				return err
			}
			defer a.logger.Sync()
			loc := a.localizer(lang)

			panel := a.dispatcher.Dispatch(cmd.Context(), dashboard.Command{
				Page:    dashboard.PageModel,
				Action:  dashboard.ActionPredict,
				GeoCode: geoCode,
				Year:    year,
				Locale:  loc.Tag().String(),
			})

			var probability, importance []byte
			if data, ok := panel.Data.(dashboard.PredictionData); ok && panel.Status == dashboard.StatusOK {
				donut, err := charts.Donut(data.Classes, loc)
				if err != nil {
					return err
				}
				if probability, err = renderSVG(donut, charts.DonutSize); err != nil {
					return err
				}
				bars, err := charts.ImportanceBars(data.RankedImportances, loc)
				if err != nil {
					return err
				}
				if importance, err = renderSVG(bars, charts.ImportanceSize); err != nil {
					return err
				}
			}

			var buf bytes.Buffer
			if err := dashboard.WriteReport(&buf, dashboard.NewReport(loc, geoCode, year, panel, probability, importance)); err != nil {
				return fmt.Errorf("render report: %w", err)
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", panel.Message, output)
			if panel.Status == dashboard.StatusError {
				return errors.New(panel.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&geoCode, "code", "", "INSEE commune code")
	cmd.Flags().IntVar(&year, "year", 0, "Year to predict")
	cmd.Flags().StringVarP(&output, "output", "o", "dashboard.html", "Output HTML file path")
	cmd.Flags().StringVar(&lang, "lang", "", "Report language (fr, en)")
	cmd.MarkFlagRequired("code")
	cmd.MarkFlagRequired("year")
	return cmd
}

func newHeatmapCmd(flags *globalFlags) *cobra.Command {
	var (
		output string
		lang   string
	)

	cmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Write the correlation heatmap image",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadOnce(cmd, flags)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			format, err := charts.ParseFormat(strings.TrimPrefix(filepath.Ext(output), "."))
			if err != nil {
				return err
			}
			m, err := a.dispatcher.Correlation()
			if err != nil {
				return err
			}
			p, err := charts.Heatmap(m, a.localizer(lang))
			if err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := charts.Render(f, p, format, charts.HeatmapSize); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "heatmap.png", "Output image path (.png or .svg)")
	cmd.Flags().StringVar(&lang, "lang", "", "Label language (fr, en)")
	return cmd
}

func (a *app) localizer(lang string) *locale.Localizer {
	if lang == "" {
		return a.bundle.Default()
	}
	return a.bundle.Lookup(lang)
}

func advisoryText(loc *locale.Localizer, err error) string {
	if errors.Is(err, predict.ErrUnknownLocation) {
		return loc.Text(locale.UnknownLocation)
	}
	return loc.Text(locale.NoDataForYear)
}

func printView(w io.Writer, loc *locale.Localizer, view *predict.View) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", loc.Text(locale.LabelGeoCode), view.GeoCode)
	fmt.Fprintf(tw, "%s\t%d\n", loc.Text(locale.LabelYear), view.Year)
	fmt.Fprintf(tw, "%s\n", loc.Text(locale.PredictedClass, view.PredictedLabel))
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "%s\n", loc.Text(locale.TitleProbability))
	for _, c := range view.Classes {
		fmt.Fprintf(tw, "  %s\n", loc.ClassShare(c.Label, c.Probability))
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "%s\n", loc.Text(locale.TitleImportance))
	for _, fi := range view.RankedImportances {
		fmt.Fprintf(tw, "  %s\t%s\n", fi.Label, loc.Decimal(fi.Importance, 3))
	}
	if view.MatchedRows > 1 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, loc.Text(locale.DuplicateRows, view.MatchedRows))
	}
	return tw.Flush()
}

func renderSVG(p *plot.Plot, size charts.Size) ([]byte, error) {
	var buf bytes.Buffer
	if err := charts.Render(&buf, p, charts.SVG, size); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
