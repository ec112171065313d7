package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wozniakbe/nutriscan/internal/barcode"
	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	app       *App
	maxUpload int64
	logger    *slog.Logger
}

// NewHandler creates a new handler around app.
func NewHandler(app *App, maxUpload int64, logger *slog.Logger) *Handler {
	return &Handler{app: app, maxUpload: maxUpload, logger: logger}
}

// authorize checks that the JWT subject matches the requested userId.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.PathValue("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return "", false
	}

	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return "", false
	}

	if claims.Subject != userID {
		writeError(w, http.StatusForbidden, "access denied")
		return "", false
	}

	return userID, true
}

// GetThresholds returns the user's thresholds, or the history-derived
// defaults when none are stored.
func (h *Handler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	th, stored, err := h.app.ThresholdsFor(r.Context(), userID)
	if err != nil {
		h.logger.Error("thresholds lookup failed", "error", err, "userId", userID)
		writeError(w, http.StatusInternalServerError, "failed to retrieve thresholds")
		return
	}

	writeJSON(w, http.StatusOK, thresholdsResponse(userID, th, stored))
}

// ReplaceThresholds stores a complete set of thresholds (PUT and POST).
func (h *Handler) ReplaceThresholds(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var patch ThresholdsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !patch.Complete() {
		writeError(w, http.StatusBadRequest, "all six thresholds are required")
		return
	}

	h.saveThresholds(w, r, userID, patch.Apply(nutrition.Thresholds{}))
}

// PatchThresholds updates some thresholds, starting from the current ones.
func (h *Handler) PatchThresholds(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var patch ThresholdsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "empty thresholds")
		return
	}

	current, _, err := h.app.ThresholdsFor(r.Context(), userID)
	if err != nil {
		h.logger.Error("thresholds lookup failed", "error", err, "userId", userID)
		writeError(w, http.StatusInternalServerError, "failed to update thresholds")
		return
	}

	h.saveThresholds(w, r, userID, patch.Apply(current))
}

func (h *Handler) saveThresholds(w http.ResponseWriter, r *http.Request, userID string, th nutrition.Thresholds) {
	if err := th.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.app.Thresholds.Put(r.Context(), userID, th); err != nil {
		h.logger.Error("thresholds store failed", "error", err, "userId", userID)
		writeError(w, http.StatusInternalServerError, "failed to save thresholds")
		return
	}

	writeJSON(w, http.StatusOK, thresholdsResponse(userID, th, true))
}

// DeleteThresholds removes the user's stored thresholds.
func (h *Handler) DeleteThresholds(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.app.Thresholds.Delete(r.Context(), userID); err != nil {
		h.logger.Error("thresholds delete failed", "error", err, "userId", userID)
		writeError(w, http.StatusInternalServerError, "failed to delete thresholds")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Scan decodes an uploaded image, resolves its barcode and evaluates the
// product against the user's thresholds. The image is either the "image"
// field of a multipart form or the raw request body.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	img, err := h.readImage(w, r)
	if err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	th, _, err := h.app.ThresholdsFor(r.Context(), userID)
	if err != nil {
		h.logger.Error("thresholds lookup failed", "error", err, "userId", userID)
		writeError(w, http.StatusInternalServerError, "failed to retrieve thresholds")
		return
	}

	rep, err := h.app.Pipeline.Scan(r.Context(), img, th)
	if errors.Is(err, barcode.ErrDecodeFailed) {
		writeError(w, http.StatusUnprocessableEntity, "image could not be decoded")
		return
	}
	if err != nil {
		h.logger.Error("scan failed", "error", err, "userId", userID)
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	resp := ScanResponse{Report: rep}
	if resp.Barcodes == nil {
		resp.Barcodes = []barcode.Barcode{}
	}
	switch {
	case rep.Found():
		resp.Status = statusFound
		writeJSON(w, http.StatusOK, resp)
	case len(rep.Barcodes) == 0:
		resp.Status = statusNoBarcode
		writeJSON(w, http.StatusNotFound, resp)
	default:
		resp.Status = statusNotFound
		writeJSON(w, http.StatusNotFound, resp)
	}
}

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			if isTooLarge(err) {
				return nil, err
			}
			return nil, errors.New("invalid multipart body")
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			return nil, errors.New("missing image field")
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

// GetProduct resolves a barcode payload through the cache and the food
// database.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("barcode")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing barcode")
		return
	}

	res := h.app.Resolver.ResolveCode(r.Context(), code)
	if !res.Found() {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	writeJSON(w, http.StatusOK, ProductResponse{Barcode: code, Source: res.Source, Record: res.Record})
}

// Stats summarises every cached record.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	records := h.app.Cache.Records()
	writeJSON(w, http.StatusOK, StatsResponse{
		Entries:   len(records),
		Nutrients: nutrition.Summarize(records),
		Defaults:  nutrition.DefaultsFrom(records),
	})
}

func thresholdsResponse(userID string, th nutrition.Thresholds, stored bool) ThresholdsResponse {
	source := "default"
	if stored {
		source = "stored"
	}
	return ThresholdsResponse{UserID: userID, Thresholds: th, Source: source}
}
