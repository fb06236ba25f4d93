package handlers

import (
	"net/http"

	"oxycors/work/config"
	"oxycors/work/middleware"
	"oxycors/work/utils"
)

type endpointDoc struct {
	Path        string `json:"path"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

type usageDoc struct {
	Name           string        `json:"name"`
	Version        string        `json:"version"`
	Description    string        `json:"description"`
	Endpoints      []endpointDoc `json:"endpoints"`
	AllowedOrigins interface{}   `json:"allowedOrigins"`
}

// HandleUsage serves GET / with a short JSON description of the endpoints.
func HandleUsage(cfg *config.Config, cors *middleware.CORSPolicy, version string) http.HandlerFunc {
	var origins interface{} = "*"
	if !cors.AllowAll() {
		origins = cfg.AllowedOrigins
	}

	doc := usageDoc{
		Name:        "oxycors",
		Version:     version,
		Description: "Stateless HLS proxy that rewrites playlists so every request flows back through it with CORS headers.",
		Endpoints: []endpointDoc{
			{
				Path:        cfg.ProxyPrefix + "/manifest?url=",
				Description: "Fetch and rewrite an HLS playlist. Video page URLs are resolved to their live playlist first.",
				Example:     cfg.ProxyPrefix + "/manifest?url=https%3A%2F%2Fcdn.example.com%2Flive%2Findex.m3u8",
			},
			{
				Path:        cfg.ProxyPrefix + "/segment?url=",
				Description: "Stream a media segment, key or init section.",
				Example:     cfg.ProxyPrefix + "/segment?url=https%3A%2F%2Fcdn.example.com%2Flive%2Fseg001.ts",
			},
			{
				Path:        cfg.ProxyPrefix + "/youtube?url=",
				Description: "Extract the live playlist from a video page and return a proxied link to it.",
				Example:     cfg.ProxyPrefix + "/youtube?url=https%3A%2F%2Fwww.youtube.com%2Fwatch%3Fv%3DVIDEO_ID",
			},
		},
		AllowedOrigins: origins,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, doc)
	}
}
