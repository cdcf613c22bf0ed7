package handlers

import (
	"net/http"

	"github.com/kozaktomas/punchclock/internal/config"
	"github.com/kozaktomas/punchclock/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse is the public configuration a punch client needs.
type ConfigResponse struct {
	Site             SiteInfo  `json:"site"`
	Rules            RulesInfo `json:"rules"`
	MatchThreshold   float64   `json:"match_threshold"`
	DescriptorLength int       `json:"descriptor_length"`
	Backend          string    `json:"backend,omitempty"`
}

// SiteInfo describes the geofence.
type SiteInfo struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radius_m"`
	Timezone     string  `json:"timezone"`
}

// RulesInfo describes the attendance boundaries.
type RulesInfo struct {
	OfficeStart  string `json:"office_start"`
	LateAfter    string `json:"late_after"`
	HalfDayAfter string `json:"half_day_after"`
}

// Get returns the public configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	c := h.config
	respondJSON(w, http.StatusOK, ConfigResponse{
		Site: SiteInfo{
			Lat:          c.Site.Lat,
			Lng:          c.Site.Lng,
			RadiusMeters: c.Site.RadiusMeters,
			Timezone:     c.Site.Timezone,
		},
		Rules: RulesInfo{
			OfficeStart:  c.Rules.OfficeStart,
			LateAfter:    c.Rules.LateAfter,
			HalfDayAfter: c.Rules.HalfDayAfter,
		},
		MatchThreshold:   c.Face.MatchThreshold,
		DescriptorLength: c.Face.DescriptorLength,
		Backend:          database.BackendName(),
	})
}
