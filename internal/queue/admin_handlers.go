package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-promo/internal/common"
)

// Inspector is the subset of asynq.Inspector used by the admin endpoints.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
}

// WarmEnqueuer schedules promotion cache warm-ups.
type WarmEnqueuer interface {
	EnqueueWarm(ctx context.Context, payload WarmPayload) error
}

// AdminHandler exposes archived (dead) task inspection and replay.
type AdminHandler struct {
	Inspector Inspector
	Queue     string
	PageSize  int
	Warm      WarmEnqueuer
	Logger    zerolog.Logger
}

type archivedItem struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Retried      int             `json:"retried"`
	MaxRetry     int             `json:"maxRetry"`
	LastError    string          `json:"lastError,omitempty"`
	LastFailedAt *time.Time      `json:"lastFailedAt,omitempty"`
}

type replayRequest struct {
	IDs []string `json:"ids"`
}

func (h *AdminHandler) queue() string {
	if h.Queue == "" {
		return DefaultQueue
	}
	return h.Queue
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}

// ListArchived returns archived tasks, optionally filtered by type.
func (h *AdminHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspector unavailable", nil)
		return
	}
	page := 1
	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid page", nil)
			return
		}
		page = parsed
	}
	typ := strings.TrimSpace(r.URL.Query().Get("type"))

	tasks, err := h.Inspector.ListArchivedTasks(h.queue(), asynq.PageSize(h.pageSize()), asynq.Page(page))
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	items := make([]archivedItem, 0, len(tasks))
	for _, t := range tasks {
		if typ != "" && t.Type != typ {
			continue
		}
		item := archivedItem{
			ID:        t.ID,
			Type:      t.Type,
			Retried:   t.Retried,
			MaxRetry:  t.MaxRetry,
			LastError: t.LastErr,
		}
		if json.Valid(t.Payload) {
			item.Payload = t.Payload
		}
		if !t.LastFailedAt.IsZero() {
			ts := t.LastFailedAt
			item.LastFailedAt = &ts
		}
		items = append(items, item)
	}
	resp := map[string]any{
		"data":  items,
		"queue": h.queue(),
		"page":  page,
	}
	if info, err := h.Inspector.GetQueueInfo(h.queue()); err == nil && info != nil {
		resp["archived"] = info.Archived
		resp["pending"] = info.Pending
		resp["retry"] = info.Retry
	}
	common.JSON(w, http.StatusOK, resp)
}

// Replay moves archived tasks back to pending.
func (h *AdminHandler) Replay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspector unavailable", nil)
		return
	}
	var req replayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	ids := uniqueStrings(req.IDs)
	if len(ids) == 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "ids required", nil)
		return
	}
	replayed := make([]string, 0, len(ids))
	failed := make(map[string]string)
	for _, id := range ids {
		if err := h.Inspector.RunTask(h.queue(), id); err != nil {
			failed[id] = err.Error()
			continue
		}
		replayed = append(replayed, id)
	}
	h.Logger.Info().Int("replayed", len(replayed)).Int("failed", len(failed)).Str("queue", h.queue()).Msg("archived_tasks_replayed")

	resp := map[string]any{
		"replayed": replayed,
	}
	if len(failed) > 0 {
		resp["failed"] = failed
	}
	common.JSON(w, http.StatusOK, resp)
}

// EnqueueWarm schedules a promotion warm-up for the posted targets, or for the
// worker's configured targets when the body is empty.
func (h *AdminHandler) EnqueueWarm(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Warm == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "warm enqueuer unavailable", nil)
		return
	}
	var payload WarmPayload
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
			return
		}
	}
	for _, t := range payload.Targets {
		if strings.TrimSpace(t.ShopCode) == "" || strings.TrimSpace(t.Currency) == "" {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "shopCode and currency required", nil)
			return
		}
	}
	if err := h.Warm.EnqueueWarm(r.Context(), payload); err != nil {
		h.Logger.Error().Err(err).Msg("warm_enqueue_failed")
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "could not enqueue warm-up", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"enqueued": true, "targets": len(payload.Targets)})
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
