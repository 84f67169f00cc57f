package router

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/wolfman30/spa-availability/internal/output"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

type handlers struct {
	logger    *logging.Logger
	latest    LatestSource
	outputDir string
	trigger   ScanTrigger
	runs      RunLister
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// artifact returns the latest publish from Redis, falling back to the files
// in the output directory.
func (h *handlers) artifact(r *http.Request) (output.Artifact, bool, error) {
	if h.latest != nil {
		art, ok, err := h.latest.LatestArtifact(r.Context())
		if err != nil {
			h.logger.Warn("latest artifact unavailable, reading output dir", "error", err)
		} else if ok {
			return art, true, nil
		}
	}
	if h.outputDir == "" {
		return output.Artifact{}, false, nil
	}
	art, err := output.ReadFiles(h.outputDir)
	if errors.Is(err, fs.ErrNotExist) {
		return output.Artifact{}, false, nil
	}
	if err != nil {
		return output.Artifact{}, false, err
	}
	return art, true, nil
}

func (h *handlers) appointmentsJSON(w http.ResponseWriter, r *http.Request) {
	art, ok := h.loadArtifact(w, r)
	if !ok {
		return
	}
	etag := strconv.Quote(art.MD5)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if art.MD5 != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(art.JSON)
}

func (h *handlers) appointmentsMD5(w http.ResponseWriter, r *http.Request) {
	art, ok := h.loadArtifact(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(art.MD5))
}

func (h *handlers) loadArtifact(w http.ResponseWriter, r *http.Request) (output.Artifact, bool) {
	art, ok, err := h.artifact(r)
	switch {
	case err != nil:
		h.logger.Error("failed to load availability", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "availability unavailable"})
		return output.Artifact{}, false
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no scan published yet"})
		return output.Artifact{}, false
	}
	return art, true
}

func (h *handlers) triggerScan(w http.ResponseWriter, r *http.Request) {
	if !h.trigger.TryStart(r.Context()) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "scan already running"})
		return
	}
	h.logger.Info("scan triggered", "remote_ip", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}
	runs, err := h.runs.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
