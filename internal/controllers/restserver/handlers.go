package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chrissnell/vitalseg/internal/database"
	"github.com/chrissnell/vitalseg/internal/log"
	"github.com/chrissnell/vitalseg/internal/segment"
	"github.com/chrissnell/vitalseg/internal/series"
	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/chrissnell/vitalseg/pkg/responseformat"
	"github.com/gorilla/mux"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultProfile is used when an analysis request names no profile
const DefaultProfile = config.DefaultProfile

// maxRequestBody bounds the size of an analysis request
const maxRequestBody = 64 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// AnalyzeRequest is the body of POST /analyze
type AnalyzeRequest struct {
	Samples []segment.Sample `json:"samples"`
	Events  []time.Time      `json:"events,omitempty"`
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status    string `json:"status"`
	DBEnabled bool   `json:"db_enabled"`
}

// decodeAnalyzeRequest reads a JSON or MessagePack request body
func decodeAnalyzeRequest(w http.ResponseWriter, req *http.Request) (*AnalyzeRequest, error) {
	body := http.MaxBytesReader(w, req.Body, maxRequestBody)
	defer body.Close()

	var ar AnalyzeRequest
	if strings.Contains(req.Header.Get("Content-Type"), "msgpack") {
		decoder := msgpack.NewDecoder(body)
		decoder.SetCustomStructTag("json")
		if err := decoder.Decode(&ar); err != nil {
			return nil, fmt.Errorf("invalid msgpack body: %w", err)
		}
		return &ar, nil
	}

	if err := json.NewDecoder(body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return &ar, nil
}

// Analyze segments the posted samples with the requested profile.
//
// Query parameters:
//
//	profile  analysis profile name (default glucose)
//	clean    when "true", sort and de-duplicate samples before analysis
//	store    when set and a database is configured, cache the result under this series name
//	format   json or msgpack
func (h *Handlers) Analyze(w http.ResponseWriter, req *http.Request) {
	profileName := req.URL.Query().Get("profile")
	if profileName == "" {
		profileName = DefaultProfile
	}

	profile, err := h.controller.configProvider.GetProfile(profileName)
	if err != nil {
		if errors.Is(err, config.ErrProfileNotFound) {
			h.formatter.WriteError(w, req, http.StatusBadRequest, err)
			return
		}
		log.Errorf("error loading profile %s: %v", profileName, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, errors.New("error loading profile"))
		return
	}

	cfg, err := profile.SegmentConfig()
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, err)
		return
	}

	ar, err := decodeAnalyzeRequest(w, req)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, err)
		return
	}

	samples := ar.Samples
	if req.URL.Query().Get("clean") == "true" {
		var report series.CleanReport
		samples, report = series.Clean(samples)
		if report.Dropped() > 0 || report.Reordered {
			w.Header().Set("X-Samples-Dropped", fmt.Sprint(report.Dropped()))
		}
	}

	result, err := segment.Analyze(req.Context(), samples, ar.Events, cfg, h.controller.logger)
	if err != nil && !errors.Is(err, segment.ErrInsufficientData) {
		var contractErr *segment.DataContractError
		var configErr *segment.ConfigurationError
		switch {
		case errors.As(err, &contractErr), errors.As(err, &configErr):
			h.formatter.WriteError(w, req, http.StatusBadRequest, err)
		default:
			log.Errorf("error analyzing samples: %v", err)
			h.formatter.WriteError(w, req, http.StatusInternalServerError, errors.New("analysis failed"))
		}
		return
	}

	if name := req.URL.Query().Get("store"); name != "" && h.controller.DBEnabled {
		id, err := h.controller.Store.SaveResult(req.Context(), name, profileName, result)
		if err != nil {
			log.Errorf("error caching result for %s: %v", name, err)
		} else {
			w.Header().Set("X-Analysis-Run", id.String())
		}
	}

	h.formatter.WriteResponse(w, req, http.StatusOK, result)
}

// GetProfiles lists the analysis profiles
func (h *Handlers) GetProfiles(w http.ResponseWriter, req *http.Request) {
	profiles, err := h.controller.configProvider.GetProfiles()
	if err != nil {
		log.Errorf("error loading profiles: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, errors.New("error loading profiles"))
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, profiles)
}

// GetProfile returns one analysis profile
func (h *Handlers) GetProfile(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]

	profile, err := h.controller.configProvider.GetProfile(name)
	if errors.Is(err, config.ErrProfileNotFound) {
		h.formatter.WriteError(w, req, http.StatusNotFound, err)
		return
	}
	if err != nil {
		log.Errorf("error loading profile %s: %v", name, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, errors.New("error loading profile"))
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, profile)
}

// GetSeriesSegments returns the most recent cached segmentation of a series
func (h *Handlers) GetSeriesSegments(w http.ResponseWriter, req *http.Request) {
	if !h.controller.DBEnabled {
		h.formatter.WriteError(w, req, http.StatusServiceUnavailable, errors.New("no result database configured"))
		return
	}

	name := mux.Vars(req)["name"]
	stored, err := h.controller.Store.LatestResult(req.Context(), name)
	if errors.Is(err, database.ErrNoResult) {
		h.formatter.WriteError(w, req, http.StatusNotFound, err)
		return
	}
	if err != nil {
		log.Errorf("error fetching cached result for %s: %v", name, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, errors.New("error fetching cached result"))
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, stored)
}

// Healthz reports that the server is up
func (h *Handlers) Healthz(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, http.StatusOK, HealthResponse{
		Status:    "ok",
		DBEnabled: h.controller.DBEnabled,
	})
}

// GetRequestLog returns the recent HTTP requests, oldest first
func (h *Handlers) GetRequestLog(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, http.StatusOK, log.GetHTTPLogBuffer().Entries())
}
