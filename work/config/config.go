package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"oxycors/work/logger"
)

// DefaultConfigPath is where LoadConfig looks when CONFIG_PATH is unset.
const DefaultConfigPath = "/settings/config.json"

// Config holds all application configuration values for the HLS proxy server.
type Config struct {
	ListenAddr            string        `json:"listenAddr"`            // Address the HTTP server binds to
	PublicURL             string        `json:"publicURL"`             // Externally reachable base URL, used for absolute proxy links
	ProxyPrefix           string        `json:"proxyPrefix"`           // Path prefix placed in front of /manifest and /segment in rewritten playlists
	AllowedOrigins        []string      `json:"allowedOrigins"`        // CORS allow-list; empty means any origin
	LogLevel              string        `json:"logLevel"`              // DEBUG, INFO, WARN or ERROR
	Debug                 bool          `json:"debug"`                 // Forces DEBUG logging
	ObfuscateUrls         bool          `json:"obfuscateUrls"`         // Obfuscate URLs in logs
	RewriteDirectives     []string      `json:"rewriteDirectives"`     // Directives scanned for URI="..." attributes
	SubPlaylistDirectives []string      `json:"subPlaylistDirectives"` // Directives whose .m3u8 URIs route back through /manifest
	PageHosts             []string      `json:"pageHosts"`             // Hosting-page domains that trigger manifest extraction
	DisableExtraction     bool          `json:"disableExtraction"`     // Turns the page extractor off entirely
	UserAgent             string        `json:"userAgent"`             // User-Agent for playlist and segment fetches
	PageUserAgent         string        `json:"pageUserAgent"`         // User-Agent for hosting-page fetches
	UpstreamHeaderTimeout time.Duration `json:"upstreamHeaderTimeout"` // Time allowed for upstream response headers
	SegmentCacheControl   string        `json:"segmentCacheControl"`   // Cache-Control sent with segment responses
	MaxManifestBytes      int64         `json:"maxManifestBytes"`      // Upper bound on a playlist body
	MaxConcurrentRequests int           `json:"maxConcurrentRequests"` // In-flight request ceiling, 0 disables
	UpstreamRateLimit     int           `json:"upstreamRateLimit"`     // Outbound requests per second, 0 disables
	DisableCompression    bool          `json:"disableCompression"`    // Skip gzip on playlist and JSON responses
	UpstreamIncludeRegex  string        `json:"upstreamIncludeRegex"`  // Only upstream URLs matching this are fetched
	UpstreamExcludeRegex  string        `json:"upstreamExcludeRegex"`  // Upstream URLs matching this are refused
}

// ConfigFile represents the JSON file structure for unmarshaling configuration.
// String duration fields (e.g., "30s") are parsed into time.Duration values.
type ConfigFile struct {
	ListenAddr            string   `json:"listenAddr"`
	PublicURL             string   `json:"publicURL"`
	ProxyPrefix           string   `json:"proxyPrefix"`
	AllowedOrigins        []string `json:"allowedOrigins"`
	LogLevel              string   `json:"logLevel"`
	Debug                 bool     `json:"debug"`
	ObfuscateUrls         bool     `json:"obfuscateUrls"`
	RewriteDirectives     []string `json:"rewriteDirectives"`
	SubPlaylistDirectives []string `json:"subPlaylistDirectives"`
	PageHosts             []string `json:"pageHosts"`
	DisableExtraction     bool     `json:"disableExtraction"`
	UserAgent             string   `json:"userAgent"`
	PageUserAgent         string   `json:"pageUserAgent"`
	UpstreamHeaderTimeout string   `json:"upstreamHeaderTimeout"` // Duration as string (e.g., "30s")
	SegmentCacheControl   string   `json:"segmentCacheControl"`
	MaxManifestBytes      int64    `json:"maxManifestBytes"`
	MaxConcurrentRequests int      `json:"maxConcurrentRequests"`
	UpstreamRateLimit     int      `json:"upstreamRateLimit"`
	DisableCompression    bool     `json:"disableCompression"`
	UpstreamIncludeRegex  string   `json:"upstreamIncludeRegex"`
	UpstreamExcludeRegex  string   `json:"upstreamExcludeRegex"`
}

// Defaults used when the file or environment leaves a value unset.
var (
	DefaultRewriteDirectives = []string{
		"EXT-X-STREAM-INF",
		"EXT-X-I-FRAME-STREAM-INF",
		"EXT-X-MEDIA",
		"EXT-X-KEY",
		"EXT-X-MAP",
	}
	DefaultSubPlaylistDirectives = []string{
		"EXT-X-STREAM-INF",
		"EXT-X-I-FRAME-STREAM-INF",
		"EXT-X-MEDIA",
	}
	DefaultPageHosts = []string{"youtube.com", "youtu.be"}
)

const (
	defaultListenAddr       = ":8080"
	defaultUserAgent        = "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.7103.125 Mobile Safari/537.36"
	defaultPageUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36"
	defaultHeaderTimeout    = 30 * time.Second
	defaultSegmentCache     = "public, max-age=3600"
	defaultMaxManifestBytes = 16 << 20
)

// LoadConfig builds the runtime configuration.
//
// Process:
//   - Loads a .env file when present so the overrides below can live on disk.
//   - Reads the JSON file at path (or CONFIG_PATH, or DefaultConfigPath).
//   - Falls back to defaults when the file is missing or invalid. A missing
//     file also gets an example written next to it as <path>.example.
//   - Applies environment overrides, then fills in anything still unset.
func LoadConfig(path string) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("{config/config - LoadConfig} No .env file loaded: %v", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromFile(path)
	if err != nil {
		logger.Warn("{config/config - LoadConfig} Failed to load config from %s: %v", path, err)
		logger.Info("{config/config - LoadConfig} Falling back to default configuration")
		config = getDefaultConfig()

		if errors.Is(err, os.ErrNotExist) {
			if err := CreateExampleConfig(path + ".example"); err != nil {
				logger.Debug("{config/config - LoadConfig} Could not write example config: %v", err)
			} else {
				logger.Info("{config/config - LoadConfig} Wrote example configuration to %s.example", path)
			}
		}
	}

	applyEnv(config, os.Getenv)
	validateAndSetDefaults(config)

	logger.Debug("{config/config - LoadConfig} Configuration loaded: listen=%s origins=%d directives=%d pageHosts=%d",
		config.ListenAddr, len(config.AllowedOrigins), len(config.RewriteDirectives), len(config.PageHosts))

	return config
}

// loadFromFile reads and parses the configuration from a JSON file.
func loadFromFile(path string) (*Config, error) {

	// read from the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// unmarshal the config file
	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// convert to our settings
	return convertFromFile(&configFile)
}

// convertFromFile converts a ConfigFile to Config,
// parsing duration strings into time.Duration.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	config := &Config{
		ListenAddr:            cf.ListenAddr,
		PublicURL:             cf.PublicURL,
		ProxyPrefix:           cf.ProxyPrefix,
		AllowedOrigins:        cf.AllowedOrigins,
		LogLevel:              cf.LogLevel,
		Debug:                 cf.Debug,
		ObfuscateUrls:         cf.ObfuscateUrls,
		RewriteDirectives:     cf.RewriteDirectives,
		SubPlaylistDirectives: cf.SubPlaylistDirectives,
		PageHosts:             cf.PageHosts,
		DisableExtraction:     cf.DisableExtraction,
		UserAgent:             cf.UserAgent,
		PageUserAgent:         cf.PageUserAgent,
		SegmentCacheControl:   cf.SegmentCacheControl,
		MaxManifestBytes:      cf.MaxManifestBytes,
		MaxConcurrentRequests: cf.MaxConcurrentRequests,
		UpstreamRateLimit:     cf.UpstreamRateLimit,
		DisableCompression:    cf.DisableCompression,
		UpstreamIncludeRegex:  cf.UpstreamIncludeRegex,
		UpstreamExcludeRegex:  cf.UpstreamExcludeRegex,
	}

	if cf.UpstreamHeaderTimeout != "" {
		d, err := time.ParseDuration(cf.UpstreamHeaderTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid upstreamHeaderTimeout: %w", err)
		}
		config.UpstreamHeaderTimeout = d
	}

	return config, nil
}

// getDefaultConfig returns a baseline configuration
// with sensible defaults when no file is present.
func getDefaultConfig() *Config {
	return &Config{
		ListenAddr:            defaultListenAddr,
		LogLevel:              "INFO",
		RewriteDirectives:     append([]string(nil), DefaultRewriteDirectives...),
		SubPlaylistDirectives: append([]string(nil), DefaultSubPlaylistDirectives...),
		PageHosts:             append([]string(nil), DefaultPageHosts...),
		UserAgent:             defaultUserAgent,
		PageUserAgent:         defaultPageUserAgent,
		UpstreamHeaderTimeout: defaultHeaderTimeout,
		SegmentCacheControl:   defaultSegmentCache,
		MaxManifestBytes:      defaultMaxManifestBytes,
	}
}

// applyEnv overlays process environment onto the loaded configuration.
// getenv is injected so tests do not have to touch the real environment.
func applyEnv(config *Config, getenv func(string) string) {
	if v := getenv("LISTEN_ADDR"); v != "" {
		config.ListenAddr = v
	} else if v := getenv("PORT"); v != "" {
		config.ListenAddr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := getenv("PUBLIC_URL"); v != "" {
		config.PublicURL = v
	}
	if v := getenv("PROXY_PREFIX"); v != "" {
		config.ProxyPrefix = v
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		config.AllowedOrigins = splitList(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := getenv("DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Debug = b
		}
	}
}

// validateAndSetDefaults ensures all config values are valid,
// filling in defaults for missing/invalid ones.
func validateAndSetDefaults(config *Config) {
	if config.ListenAddr == "" {
		config.ListenAddr = defaultListenAddr
	}
	config.PublicURL = strings.TrimRight(config.PublicURL, "/")
	config.ProxyPrefix = strings.TrimRight(config.ProxyPrefix, "/")
	if config.ProxyPrefix != "" && !strings.HasPrefix(config.ProxyPrefix, "/") {
		config.ProxyPrefix = "/" + config.ProxyPrefix
	}
	if config.Debug {
		config.LogLevel = "DEBUG"
	}
	if config.LogLevel == "" {
		config.LogLevel = "INFO"
	}
	config.AllowedOrigins = cleanList(config.AllowedOrigins)
	if config.RewriteDirectives = normalizeDirectives(config.RewriteDirectives); len(config.RewriteDirectives) == 0 {
		config.RewriteDirectives = append([]string(nil), DefaultRewriteDirectives...)
	}
	if config.SubPlaylistDirectives = normalizeDirectives(config.SubPlaylistDirectives); len(config.SubPlaylistDirectives) == 0 {
		config.SubPlaylistDirectives = append([]string(nil), DefaultSubPlaylistDirectives...)
	}
	if config.PageHosts = cleanList(config.PageHosts); len(config.PageHosts) == 0 {
		config.PageHosts = append([]string(nil), DefaultPageHosts...)
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if config.PageUserAgent == "" {
		config.PageUserAgent = defaultPageUserAgent
	}
	if config.UpstreamHeaderTimeout <= 0 {
		config.UpstreamHeaderTimeout = defaultHeaderTimeout
	}
	if config.SegmentCacheControl == "" {
		config.SegmentCacheControl = defaultSegmentCache
	}
	if config.MaxManifestBytes <= 0 {
		config.MaxManifestBytes = defaultMaxManifestBytes
	}
	if config.MaxConcurrentRequests < 0 {
		config.MaxConcurrentRequests = 0
	}
	if config.UpstreamRateLimit < 0 {
		config.UpstreamRateLimit = 0
	}
}

// normalizeDirectives strips the leading '#' so "#EXT-X-KEY" and "EXT-X-KEY" mean the same thing.
func normalizeDirectives(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range cleanList(in) {
		d = strings.ToUpper(strings.TrimPrefix(d, "#"))
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

func splitList(v string) []string {
	return cleanList(strings.Split(v, ","))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CreateExampleConfig writes an example config file to path. The example
// carries every key with its default so operators can copy it into place.
func CreateExampleConfig(path string) error {
	example := ConfigFile{
		ListenAddr:            defaultListenAddr,
		PublicURL:             "https://proxy.example.com",
		ProxyPrefix:           "",
		AllowedOrigins:        []string{"https://player.example.com"},
		LogLevel:              "INFO",
		ObfuscateUrls:         true,
		RewriteDirectives:     DefaultRewriteDirectives,
		SubPlaylistDirectives: DefaultSubPlaylistDirectives,
		PageHosts:             DefaultPageHosts,
		UserAgent:             defaultUserAgent,
		PageUserAgent:         defaultPageUserAgent,
		UpstreamHeaderTimeout: "30s",
		SegmentCacheControl:   defaultSegmentCache,
		MaxManifestBytes:      defaultMaxManifestBytes,
		MaxConcurrentRequests: 0,
		UpstreamRateLimit:     0,
	}

	// setup the data properly
	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}

	// write the config file
	return os.WriteFile(path, data, 0644)
}
