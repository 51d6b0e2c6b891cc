package cfg

type Cfg struct {
	// Catalog configuration
	OpdsURL     string
	CatalogsDir string

	// Library configuration
	DBPath      string
	DownloadDir string
	Format      string

	// Fetch configuration
	FetchTimeout    int
	MaxResponseSize int64
	UserAgent       string

	// Download configuration
	ParallelDownloads int

	// Filter defaults
	HideNewspapers bool
	HideOwned      bool

	// Application configuration
	Port    string
	Debug   bool
	Version string
}
