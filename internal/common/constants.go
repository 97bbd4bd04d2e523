package common

// Environment variable keys
const (
	EnvConfigFile   = "CONFIG_FILE"
	EnvProfileKind  = "PROFILE_KIND"
	EnvVariableType = "VARIABLE_TYPE"
	EnvVariables    = "VARIABLES"
	EnvGroups       = "GROUPS"
	EnvSpan         = "SPAN"
	EnvCenter       = "CENTER"
	EnvRandomSeed   = "RANDOM_SEED"
	EnvDataPath     = "DATA_PATH"
	EnvOutputPath   = "OUTPUT_PATH"
	EnvProfileURL   = "PROFILE_URL"
	EnvHTTPTimeout  = "HTTP_TIMEOUT"
	EnvMetricsPort  = "METRICS_PORT"
	EnvFacetNcol    = "FACET_NCOL"
	EnvLogLevel     = "LOG_LEVEL"
)

// Configuration defaults
const (
	DefaultSpan        = 0.25
	DefaultFacetNcol   = 2
	DefaultMetricsPort = 8080
	DefaultOutputPath  = "aggregated_profiles.html"
	DefaultPlotTitle   = "Aggregated Profiles"
	DefaultPlotTitleX  = "prediction"
)

// Rendering constants
const (
	YAxisPaddingRatio = 0.10 // padding added above/below the data range
	RawProfileColor   = "#ceced9"
	RawProfileOpacity = 0.5
	BaseFacetHeight   = 280
	FacetHeightMargin = 60
)

// FloatTolerance is the comparison tolerance for aggregated values.
const FloatTolerance = 1e-9
