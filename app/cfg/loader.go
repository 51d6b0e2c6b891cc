package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Catalog configuration
	OpdsURL     string `long:"opds-url" env:"OPDS_URL" description:"Base OPDS catalog URL opened by default"`
	CatalogsDir string `long:"catalogs-dir" env:"CATALOGS_DIR" default:"./catalogs" description:"Directory containing catalog preset files"`

	// Library configuration
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./library.db" description:"Path to the local library database"`
	DownloadDir string `long:"download-dir" env:"DOWNLOAD_DIR" default:"./books" description:"Directory downloaded books are stored in"`
	Format      string `long:"format" env:"FORMAT" default:"epub" description:"Preferred acquisition format"`

	// Fetch configuration
	FetchTimeout    int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"20" description:"Feed fetch timeout in seconds"`
	MaxResponseSize int64  `long:"max-response-size" env:"MAX_RESPONSE_SIZE" default:"10485760" description:"Maximum feed document size in bytes"`
	UserAgent       string `long:"user-agent" env:"USER_AGENT" default:"OPDS Hub/1.0" description:"User agent string for HTTP requests"`

	// Download configuration
	ParallelDownloads int `long:"parallel-downloads" env:"PARALLEL_DOWNLOADS" default:"2" description:"Number of concurrent book transfers per batch"`

	// Filter defaults
	HideNewspapers bool `long:"hide-newspapers" env:"HIDE_NEWSPAPERS" description:"Hide newspaper and periodical entries by default"`
	HideOwned      bool `long:"hide-owned" env:"HIDE_OWNED" description:"Hide entries already present in the library by default"`

	// Application configuration
	Port  string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	Debug bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		OpdsURL:           raw.OpdsURL,
		CatalogsDir:       raw.CatalogsDir,
		DBPath:            raw.DBPath,
		DownloadDir:       raw.DownloadDir,
		Format:            raw.Format,
		FetchTimeout:      raw.FetchTimeout,
		MaxResponseSize:   raw.MaxResponseSize,
		UserAgent:         raw.UserAgent,
		ParallelDownloads: raw.ParallelDownloads,
		HideNewspapers:    raw.HideNewspapers,
		HideOwned:         raw.HideOwned,
		Port:              raw.Port,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}
