package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"timemachine/internal/gateway/service/taskevent"
)

// TraceHandler is the operational debug surface: a sink for front-end trace
// beacons and a read endpoint over recent task lifecycle events.
type TraceHandler struct {
	hub *taskevent.Hub
}

func NewTraceHandler(hub *taskevent.Hub) *TraceHandler {
	return &TraceHandler{hub: hub}
}

func (h *TraceHandler) HandleFrontendTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		Timestamp string         `json:"timestamp"`
		Level     string         `json:"level"`
		Message   string         `json:"message"`
		Fields    map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	level := strings.TrimSpace(in.Level)
	if level == "" {
		level = "info"
	}
	if len(in.Fields) > 0 {
		log.Printf("frontend: level=%s %s fields=%v", level, message, in.Fields)
	} else {
		log.Printf("frontend: level=%s %s", level, message)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok": true,
	})
}

func (h *TraceHandler) HandleTaskLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	events := h.hub.Recent()
	if kind := strings.TrimSpace(r.URL.Query().Get("kind")); kind != "" {
		filtered := events[:0]
		for _, ev := range events {
			if ev.Kind == kind {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"events":  events,
		"dropped": h.hub.Dropped(),
	})
}
