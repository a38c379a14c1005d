package management

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chrissnell/vitalseg/internal/log"
	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Handlers contains the HTTP handlers for the management API
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new Handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
	}
}

// generateAuthToken returns a standard UUID string with hyphens.
func generateAuthToken() string {
	return uuid.New().String()
}

// sendJSON sends a JSON response with optional status code
func (h *Handlers) sendJSON(w http.ResponseWriter, data interface{}) {
	h.sendJSONWithStatus(w, http.StatusOK, data)
}

// sendJSONWithStatus sends a JSON response with a specific status code
func (h *Handlers) sendJSONWithStatus(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response in JSON format
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    statusCode,
		"timestamp": time.Now().Unix(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
	}

	h.sendJSONWithStatus(w, statusCode, errorResponse)
}

// Login handles the login request and sets a session cookie
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	if request.Token == "" {
		h.sendError(w, http.StatusBadRequest, "Token is required", nil)
		return
	}

	// Validate the token
	if request.Token != h.controller.managementConfig.AuthToken {
		h.sendError(w, http.StatusUnauthorized, "Invalid token", nil)
		return
	}

	// Set session cookie
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    request.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil, // Only set Secure flag if using HTTPS
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7, // 7 days
	})

	h.sendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Login successful",
	})
}

// Logout handles the logout request and clears the session cookie
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1, // Expire immediately
	})

	h.sendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Logout successful",
	})
}

// GetAuthStatus checks if the current session is authenticated
func (h *Handlers) GetAuthStatus(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, map[string]interface{}{
		"authenticated": h.controller.authenticated(r),
	})
}

// GetConfig returns the loaded configuration with secrets removed
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.controller.configProvider.LoadConfig()
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}

	redacted := *cfg
	redacted.Controllers = make([]config.ControllerData, len(cfg.Controllers))
	for i, c := range cfg.Controllers {
		if c.Management != nil {
			m := *c.Management
			m.AuthToken = ""
			c.Management = &m
		}
		redacted.Controllers[i] = c
	}

	h.sendJSON(w, map[string]interface{}{
		"config":    redacted,
		"read_only": h.controller.configProvider.IsReadOnly(),
	})
}

// GetProfiles lists every profile, built-in ones included
func (h *Handlers) GetProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.controller.configProvider.GetProfiles()
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to load profiles", err)
		return
	}
	h.sendJSON(w, profiles)
}

// GetProfile returns a single profile
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.controller.configProvider.GetProfile(mux.Vars(r)["name"])
	if errors.Is(err, config.ErrProfileNotFound) {
		h.sendError(w, http.StatusNotFound, "Profile not found", err)
		return
	}
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to load profile", err)
		return
	}
	h.sendJSON(w, profile)
}

// decodeProfile reads a profile body, taking the name from the URL when present
func decodeProfile(r *http.Request) (*config.ProfileData, error) {
	var profile config.ProfileData
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		return nil, err
	}
	if name := mux.Vars(r)["name"]; name != "" {
		if profile.Name != "" && profile.Name != name {
			return nil, errors.New("profile name in body does not match URL")
		}
		profile.Name = name
	}
	if profile.Name == "" {
		return nil, errors.New("profile name is required")
	}
	return &profile, nil
}

// ValidateProfile checks a profile without storing it
func (h *Handlers) ValidateProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := decodeProfile(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid profile payload", err)
		return
	}

	if _, err := profile.SegmentConfig(); err != nil {
		h.sendJSON(w, map[string]interface{}{
			"valid": false,
			"error": err.Error(),
		})
		return
	}
	h.sendJSON(w, map[string]interface{}{"valid": true})
}

// writer returns the profile writer of the configuration backend, or nil when it is read-only
func (h *Handlers) writer() ProfileWriter {
	if h.controller.configProvider.IsReadOnly() {
		return nil
	}
	pw, _ := h.controller.configProvider.(ProfileWriter)
	return pw
}

// PutProfile creates or replaces a profile
func (h *Handlers) PutProfile(w http.ResponseWriter, r *http.Request) {
	pw := h.writer()
	if pw == nil {
		h.sendError(w, http.StatusConflict, "Configuration backend is read-only", nil)
		return
	}

	profile, err := decodeProfile(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid profile payload", err)
		return
	}
	if _, err := profile.SegmentConfig(); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid profile", err)
		return
	}

	if err := pw.AddProfile(profile); err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to save profile", err)
		return
	}

	log.Infof("management API stored profile %s", profile.Name)
	h.sendJSON(w, profile)
}

// DeleteProfile removes a configured profile
func (h *Handlers) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	pw := h.writer()
	if pw == nil {
		h.sendError(w, http.StatusConflict, "Configuration backend is read-only", nil)
		return
	}

	name := mux.Vars(r)["name"]
	err := pw.DeleteProfile(name)
	if errors.Is(err, config.ErrProfileNotFound) {
		h.sendError(w, http.StatusNotFound, "Profile not found", err)
		return
	}
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to delete profile", err)
		return
	}

	log.Infof("management API deleted profile %s", name)
	w.WriteHeader(http.StatusNoContent)
}

// GetLogs returns the recent HTTP requests served by the REST API
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, log.GetHTTPLogBuffer().Entries())
}
