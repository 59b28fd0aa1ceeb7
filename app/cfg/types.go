package cfg

type Cfg struct {
	// Application configuration
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Cache database configuration
	CacheDBPath        string
	CachePruneInterval int // seconds
	CacheMaxAge        int // hours

	// Crawl configuration
	CrawlConfigFile    string
	TwitterBearerToken string
	MaxCrawlLevels     int
	MaxCrawlNodes      int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
