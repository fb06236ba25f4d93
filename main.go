package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oxycors/work/buffer"
	"oxycors/work/client"
	"oxycors/work/config"
	"oxycors/work/extractor"
	"oxycors/work/handlers"
	"oxycors/work/logger"
	"oxycors/work/middleware"
	"oxycors/work/parser"
	"oxycors/work/proxy"
)

var (
	Version = "v0.1.0" // default version, overridden at build time
)

func main() {

	// load our config
	cfg := config.LoadConfig("")

	// setup the logger every component writes through
	log := logger.New(cfg.LogLevel, os.Stdout)
	logger.SetLogLevel(cfg.LogLevel)

	// shared outbound client with browser header profiles
	httpClient := client.NewHeaderSettingClient(cfg)

	// page extraction can be switched off entirely
	var pageExtractor extractor.PageManifestExtractor = extractor.Disabled{}
	if !cfg.DisableExtraction {
		pageExtractor = extractor.NewHLSPageExtractor(cfg.PageHosts, httpClient, log, cfg.ObfuscateUrls)
	}

	// playlist rewriter
	rewriter := parser.NewRewriter(
		parser.WithDirectives(cfg.RewriteDirectives),
		parser.WithSubPlaylistDirectives(cfg.SubPlaylistDirectives),
		parser.WithPrefix(cfg.PublicURL+cfg.ProxyPrefix),
		parser.WithLogger(log, cfg.ObfuscateUrls),
	)

	// segment copy buffers
	bufferPool := buffer.NewBufferPool(buffer.DefaultCopySize)

	proxyInstance := proxy.New(cfg, httpClient, pageExtractor, rewriter, bufferPool, log)

	cors := middleware.NewCORSPolicy(cfg.AllowedOrigins)

	router := handlers.NewRouter(proxyInstance, cors, log, Version)

	log.Info("Starting OxyCORS %s", Version)
	log.Info("Server configuration:")
	log.Info("  - Listen Address: %s", cfg.ListenAddr)
	log.Info("  - Public URL: %s", cfg.PublicURL)
	log.Info("  - Proxy Prefix: %s", cfg.ProxyPrefix)
	if cors.AllowAll() {
		log.Info("  - Allowed Origins: *")
	} else {
		log.Info("  - Allowed Origins: %v", cfg.AllowedOrigins)
	}
	log.Info("  - Page Extraction: %v (hosts: %v)", !cfg.DisableExtraction, cfg.PageHosts)
	log.Info("  - Upstream Header Timeout: %s", cfg.UpstreamHeaderTimeout)
	log.Info("  - Max Concurrent Requests: %d", cfg.MaxConcurrentRequests)
	log.Info("  - Upstream Rate Limit: %d req/s", cfg.UpstreamRateLimit)
	log.Info("  - Log Level: %s", cfg.LogLevel)
	log.Info("  - URL Obfuscation: %v", cfg.ObfuscateUrls)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// shut down cleanly on SIGINT/SIGTERM
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop

		log.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("Graceful shutdown failed: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server failed to start: %v", err)
		os.Exit(1)
	}
}
