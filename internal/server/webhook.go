package server

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/anushkapunekar/agentops/internal/review"
	"github.com/anushkapunekar/agentops/internal/storage"
	"github.com/anushkapunekar/agentops/internal/webhook"
)

const (
	hostGitLab = "gitlab"

	headerToken = "X-Gitlab-Token"
	headerEvent = "X-Gitlab-Event"

	mergeRequestHook = "Merge Request Hook"
)

// Notices returned with a 200 when an event is not reviewed.
const (
	NoticeInvalidJSON   = "Invalid JSON payload"
	NoticeMissingFields = "missing fields - review skipped"
	NoticeQueueFull     = "review queue full - review skipped"
	NoticeQueueClosed   = "review queue closed - review skipped"
	NoticeInvalidToken  = "invalid webhook token - review skipped"
)

type ackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func ack(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok", Message: message})
}

// handleWebhook always answers 200. Anything that stops an event from being
// reviewed is reported as a notice in the body.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")
	log := s.logger.With("host", host)

	if host != hostGitLab {
		log.Warn("webhook for unsupported host")
		ack(w, "unsupported host: "+host)
		return
	}

	if s.cfg.WebhookSecret != "" && !tokenMatches(r.Header.Get(headerToken), s.cfg.WebhookSecret) {
		log.Warn("webhook token mismatch")
		ack(w, NoticeInvalidToken)
		return
	}

	if kind := r.Header.Get(headerEvent); kind != "" && kind != mergeRequestHook {
		log.Info("ignoring webhook event", "event", kind)
		ack(w, "ignored event: "+kind)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		log.Warn("failed to read webhook body", "error", err)
		ack(w, NoticeInvalidJSON)
		return
	}

	decoded, err := webhook.Decode(body)
	if err != nil {
		log.Warn("could not parse webhook payload", "error", err, "bytes", len(body))
		ack(w, NoticeInvalidJSON)
		return
	}

	ev := decoded.Event
	log = log.With("project_id", ev.ProjectID, "mr_iid", ev.MRIID)
	if !ev.Valid() {
		log.Warn("webhook missing project or merge request id")
		ack(w, NoticeMissingFields)
		return
	}

	log.Info("webhook received",
		"source_branch", ev.SourceBranch,
		"target_branch", ev.TargetBranch,
		"diff_source", decoded.DiffSource,
		"diff_length", len(ev.Diff),
	)

	if notice := s.enqueue(ev); notice != "" {
		ack(w, notice)
		return
	}
	ack(w, "")
}

// handleManualWebhook schedules a review for a webhook-shaped body with an
// empty diff, so the changes are always fetched from the host.
func (s *Server) handleManualWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusOK, ackResponse{Status: "error", Message: NoticeInvalidJSON})
		return
	}
	decoded, err := webhook.Decode(body)
	if err != nil {
		writeJSON(w, http.StatusOK, ackResponse{Status: "error", Message: NoticeInvalidJSON})
		return
	}

	ev := decoded.Event
	if !ev.Valid() {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "error",
			"message": "missing project_id or mr_iid",
			"received": map[string]any{
				"project_id": nullable(ev.ProjectID != "", ev.ProjectID),
				"mr_iid":     nullable(ev.MRIID > 0, ev.MRIID),
			},
		})
		return
	}

	s.logger.Info("manual webhook test received", "project_id", ev.ProjectID, "mr_iid", ev.MRIID)
	ev.Diff = ""
	if notice := s.enqueue(ev); notice != "" {
		writeJSON(w, http.StatusOK, ackResponse{Status: "error", Message: notice})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"message":    "background task scheduled",
		"project_id": ev.ProjectID,
		"mr_iid":     ev.MRIID,
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []storage.ReviewRecord{}})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.history.ListReviews(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list reviews", "error", err)
		writeJSON(w, http.StatusInternalServerError, ackResponse{Status: "error", Message: "failed to list reviews"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// enqueue returns a notice when ev could not be scheduled.
func (s *Server) enqueue(ev review.Event) string {
	err := s.queue.Enqueue(ev)
	switch {
	case err == nil:
		s.logger.Info("review scheduled", "project_id", ev.ProjectID, "mr_iid", ev.MRIID)
		return ""
	case errors.Is(err, review.ErrQueueFull):
		s.logger.Warn("review queue full, event dropped", "project_id", ev.ProjectID, "mr_iid", ev.MRIID)
		return NoticeQueueFull
	default:
		s.logger.Warn("review queue unavailable, event dropped", "project_id", ev.ProjectID, "mr_iid", ev.MRIID, "error", err)
		return NoticeQueueClosed
	}
}

func tokenMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func nullable[T any](ok bool, v T) any {
	if !ok {
		return nil
	}
	return v
}
