package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"textnotes/bridge"
)

// maxBodyBytes caps request bodies; notes are plain text.
const maxBodyBytes = 8 << 20

// Handler serves the text commands over HTTP.
type Handler struct {
	cmds   *bridge.Commands
	logger *zap.Logger
}

// NewHandler creates a Handler with dependencies.
func NewHandler(cmds *bridge.Commands, logger *zap.Logger) *Handler {
	return &Handler{cmds: cmds, logger: logger}
}

// invokeHandler runs POST /invoke/{command} with the body as command arguments.
func (h *Handler) invokeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/invoke/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}
	args, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request payload: %v", err))
		return
	}
	result, err := h.cmds.Invoke(r.Context(), name, args)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// textsHandler routes requests without ID: GET for list, POST for create.
func (h *Handler) textsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListTexts(w, r)
	case http.MethodPost:
		h.handleCreateText(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	}
}

// textHandler routes requests with ID: PUT, DELETE.
func (h *Handler) textHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/texts/"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: id must be an unsigned integer", ErrInvalidInput))
		return
	}
	switch r.Method {
	case http.MethodPut:
		h.handleUpdateText(w, r, id)
	case http.MethodDelete:
		h.handleDeleteText(w, r, id)
	default:
		w.Header().Set("Allow", "PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	}
}

// handleListTexts processes GET /texts.
func (h *Handler) handleListTexts(w http.ResponseWriter, r *http.Request) {
	texts, err := h.cmds.LoadTexts(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, texts)
}

// handleCreateText processes POST /texts.
func (h *Handler) handleCreateText(w http.ResponseWriter, r *http.Request) {
	var req CreateTextRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: content is required", ErrInvalidInput))
		return
	}
	item, err := h.cmds.AddText(r.Context(), *req.Content)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/texts/%d", item.ID))
	writeJSON(w, http.StatusCreated, item)
}

// handleUpdateText processes PUT /texts/{id}.
func (h *Handler) handleUpdateText(w http.ResponseWriter, r *http.Request, id uint64) {
	var req UpdateTextRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: content is required", ErrInvalidInput))
		return
	}
	item, err := h.cmds.UpdateText(r.Context(), id, *req.Content)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleDeleteText processes DELETE /texts/{id}. A missing id still yields 204.
func (h *Handler) handleDeleteText(w http.ResponseWriter, r *http.Request, id uint64) {
	if err := h.cmds.DeleteText(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// healthHandler reports liveness.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail writes err as the JSON error payload, logging server-side failures.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("command error", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody decodes a single JSON object, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request payload: %v", err)
	}
	return ensureSingleJSON(dec)
}

// ensureSingleJSON ensures only a single JSON object is in the request body.
func ensureSingleJSON(dec *json.Decoder) error {
	if t, err := dec.Token(); err != io.EOF || t != nil {
		return fmt.Errorf("request body must only contain a single JSON object")
	}
	return nil
}
