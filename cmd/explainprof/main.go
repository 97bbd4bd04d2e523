package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"explainprof/internal/aggregate"
	"explainprof/internal/cfg"
	"explainprof/internal/metrics"
	"explainprof/internal/profile"
	"explainprof/internal/render"
	"explainprof/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Parse command line arguments
	var (
		profilePaths = flag.String("profiles", "", "Comma-separated Ceteris Paribus profile JSON files")
		profileURL   = flag.String("url", "", "HTTP endpoint serving a profile JSON document")
		kind         = flag.String("kind", "", "Aggregation kind: partial, conditional, accumulated")
		variableType = flag.String("variable-type", "", "Variable type: numerical, categorical")
		variables    = flag.String("variables", "", "Comma-separated variables to aggregate (default all)")
		groups       = flag.String("groups", "", "Comma-separated grouping variables")
		span         = flag.Float64("span", 0, "Gaussian kernel span for conditional profiles")
		center       = flag.Bool("center", true, "Center accumulated profiles around the mean prediction")
		geometry     = flag.String("geometry", "aggregates", "Plot geometry: aggregates, profiles")
		facetNcol    = flag.Int("facet-ncol", 0, "Facet columns in the output page")
		outputPath   = flag.String("output", "", "Output HTML file")
		metricsPort  = flag.Int("metrics-port", -1, "Prometheus metrics port (0 disables)")
		saveLabel    = flag.String("save", "", "Store the result under this label (requires DATA_PATH)")
		loadLabels   = flag.String("load", "", "Comma-separated stored labels to overlay")
		logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		verbose      = flag.Bool("verbose", false, "Show a progress bar during aggregation")
	)
	flag.Parse()

	// Setup logging
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err == nil {
		log.Debug().Msg(".env loaded")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	applyFlags(&c, *profilePaths, *profileURL, *kind, *variableType, *variables, *groups, *span, *outputPath)
	if *facetNcol > 0 {
		c.FacetNcol = *facetNcol
	}
	if *metricsPort >= 0 {
		c.MetricsPort = *metricsPort
	}

	m := metrics.New()
	tracker := metrics.NewTracker(m)
	if c.MetricsPort > 0 {
		go serveMetrics(c.MetricsPort)
	}

	cps := loadProfiles(c, tracker)
	if len(cps) == 0 {
		log.Fatal().Msg("no input profiles; pass -profiles or -url")
	}

	opts := aggregate.Options{
		Kind:         aggregate.Kind(c.Kind),
		Variables:    c.Variables,
		VariableType: aggregate.VariableType(c.VariableType),
		Groups:       c.Groups,
		Span:         c.Span,
		Center:       *center && c.Center,
		RandomSeed:   c.RandomSeed,
		Verbose:      *verbose,
	}
	profiles, err := aggregate.New(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid aggregation options")
	}

	var input any
	if len(cps) == 1 {
		input = cps[0]
	} else {
		input = cps
	}
	if err := profiles.FitWithMetrics(input, tracker); err != nil {
		log.Fatal().Err(err).Msg("aggregation failed")
	}
	log.Info().
		Str("kind", c.Kind).
		Int("rows", len(profiles.Result)).
		Float64("mean_prediction", profiles.MeanPrediction).
		Msg("profiles aggregated")

	overlays := handleStorage(c, profiles, *saveLabel, *loadLabels)

	plotOpts := render.PlotOptions{
		Objects:   overlays,
		Geometry:  render.Geometry(*geometry),
		Variables: c.Variables,
		FacetNcol: c.FacetNcol,
	}
	renderStart := time.Now()
	if err := render.PlotSave(profiles, plotOpts, c.OutputPath); err != nil {
		log.Fatal().Err(err).Msg("plot failed")
	}
	tracker.RenderObserved(time.Since(renderStart))
	fmt.Printf("Aggregated profiles written to %s\n", c.OutputPath)
}

func applyFlags(c *cfg.Settings, paths, url, kind, variableType, variables, groups string, span float64, output string) {
	if paths != "" {
		c.ProfilePaths = splitList(paths)
	}
	if url != "" {
		c.ProfileURL = url
	}
	if kind != "" {
		c.Kind = kind
	}
	if variableType != "" {
		c.VariableType = variableType
	}
	if variables != "" {
		c.Variables = splitList(variables)
	}
	if groups != "" {
		c.Groups = splitList(groups)
	}
	if span > 0 {
		c.Span = span
	}
	if output != "" {
		c.OutputPath = output
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func loadProfiles(c cfg.Settings, tracker *metrics.Tracker) []*profile.CeterisParibus {
	var cps []*profile.CeterisParibus
	for _, path := range c.ProfilePaths {
		cp, err := profile.LoadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("profile load failed")
		}
		tracker.ProfileLoadedInc()
		cps = append(cps, cp)
	}
	if c.ProfileURL != "" {
		client := profile.NewClient(c.HTTPTimeout)
		cp, err := client.Fetch(c.ProfileURL)
		if err != nil {
			log.Fatal().Err(err).Str("url", c.ProfileURL).Msg("profile fetch failed")
		}
		tracker.ProfileLoadedInc()
		cps = append(cps, cp)
	}
	return cps
}

// handleStorage persists the result under -save and loads -load overlays.
func handleStorage(c cfg.Settings, profiles *aggregate.Profiles, saveLabel, loadLabels string) []*aggregate.Profiles {
	if saveLabel == "" && loadLabels == "" {
		return nil
	}
	if c.DataPath == "" {
		log.Warn().Msg("DATA_PATH not set, skipping storage")
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	defer store.Close()

	if saveLabel != "" {
		if err := store.SaveProfiles(saveLabel, profiles); err != nil {
			log.Error().Err(err).Str("label", saveLabel).Msg("failed to store result")
		} else {
			log.Info().Str("label", saveLabel).Msg("result stored")
		}
	}

	var overlays []*aggregate.Profiles
	if loadLabels != "" {
		for _, label := range splitList(loadLabels) {
			rec, err := store.Latest(label)
			if err != nil {
				log.Error().Err(err).Str("label", label).Msg("failed to load stored result")
				continue
			}
			overlays = append(overlays, rec.Restore())
		}
	}
	return overlays
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
