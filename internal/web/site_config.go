package web

import (
	"net"
	"net/http"
	"strings"

	gconfig "github.com/Laisky/go-config/v2"
	"github.com/gin-gonic/gin"
)

const (
	defaultSiteTitle      = "Love Wall"
	defaultImageUploadURL = "https://api.imgur.com/3/image"
)

// SiteConfig is the public client configuration served at /api/site-config.
type SiteConfig struct {
	Title string `json:"title"`
	// Theme presets the client theme, "light" or "dark". Empty follows the browser.
	Theme string `json:"theme,omitempty"`
	// ImageUploadURL is the image host endpoint the browser uploads to.
	ImageUploadURL string `json:"imageUploadUrl"`
	// ImageClientID is the public client id sent to the image host.
	ImageClientID string `json:"imageClientId"`
}

// LoadSiteConfig reads the site configuration from settings.
func LoadSiteConfig() SiteConfig {
	site := SiteConfig{
		Title:          strings.TrimSpace(gconfig.Shared.GetString("settings.web.title")),
		Theme:          strings.ToLower(strings.TrimSpace(gconfig.Shared.GetString("settings.web.theme"))),
		ImageUploadURL: strings.TrimSpace(gconfig.Shared.GetString("settings.image_host.upload_url")),
		ImageClientID:  strings.TrimSpace(gconfig.Shared.GetString("settings.image_host.client_id")),
	}

	if site.Title == "" {
		site.Title = defaultSiteTitle
	}
	if site.Theme != "light" && site.Theme != "dark" {
		site.Theme = ""
	}
	if site.ImageUploadURL == "" {
		site.ImageUploadURL = defaultImageUploadURL
	}

	return site
}

func newSiteConfigHandler(site SiteConfig) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("Cache-Control", "no-store")
		ctx.JSON(http.StatusOK, site)
	}
}

// normalizeHostList normalizes hostnames and drops empty values.
func normalizeHostList(hosts []string) []string {
	result := make([]string, 0, len(hosts))
	for _, host := range hosts {
		normalized := normalizeHost(host)
		if normalized == "" {
			continue
		}
		result = append(result, normalized)
	}
	return result
}

// normalizeHost lowercases a hostname and removes port or trailing dot suffixes.
func normalizeHost(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	trimmed = strings.TrimSuffix(trimmed, ".")
	if trimmed == "" {
		return ""
	}

	host, _, err := net.SplitHostPort(trimmed)
	if err == nil {
		return strings.TrimSuffix(strings.ToLower(host), ".")
	}

	if strings.HasPrefix(trimmed, "[") && strings.Contains(trimmed, "]") {
		withoutBrackets := strings.TrimPrefix(trimmed, "[")
		withoutBrackets = strings.TrimSuffix(withoutBrackets, "]")
		return strings.TrimSuffix(withoutBrackets, ".")
	}

	return trimmed
}
