package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/homesentry/frigate-bridge/internal/auth"
	"github.com/homesentry/frigate-bridge/internal/middleware"
)

const masked = "********"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.checker.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"checks": s.checker.Results(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	cfg := s.store.Snapshot()
	for _, u := range cfg.Users {
		if u.Name != req.Username {
			continue
		}
		ok, err := auth.CheckPassword(req.Password, u.PasswordHash)
		if err != nil || !ok {
			break
		}
		token, err := s.tokens.Issue(u.Name, u.Role)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if err := s.auditLog.Write("ops.login", u.Name, "from "+r.RemoteAddr); err != nil {
			log.Printf("[WARN] API: audit write failed: %v", err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
		return
	}

	if err := s.auditLog.Write("ops.login_failed", req.Username, "from "+r.RemoteAddr); err != nil {
		log.Printf("[WARN] API: audit write failed: %v", err)
	}
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"queue_depth":    s.queue.Len(),
		"checks":         s.checker.Results(),
		"phases": map[string]bool{
			"context":      cfg.ContextEnabled,
			"memory":       cfg.MemoryEnabled,
			"confirmation": cfg.ConfirmEnabled,
		},
		"chat_enabled": cfg.ChatEnabled,
	})
}

func (s *Server) handleRecentHistory(w http.ResponseWriter, r *http.Request) {
	camera := r.URL.Query().Get("camera")
	minutes := 60
	if v := r.URL.Query().Get("minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 24*60 {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		minutes = n
	}

	recs, err := s.history.Recent(camera, time.Duration(minutes)*time.Minute)
	if err != nil {
		log.Printf("[ERROR] API: history read failed: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(recs),
		"records": recs,
	})
}

// handleConfig returns the running config with every secret masked. Only
// admins may read it; the claims role comes from the verified token.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil || claims.Role != "admin" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	view := *s.store.Snapshot()
	if view.MQTTPass != "" {
		view.MQTTPass = masked
	}
	if view.GatewayToken != "" {
		view.GatewayToken = masked
	}
	if view.HubToken != "" {
		view.HubToken = masked
	}
	if view.AuditSigningKey != "" {
		view.AuditSigningKey = masked
	}
	view.Users = nil
	writeJSON(w, http.StatusOK, view)
}
