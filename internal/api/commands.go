package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/executor"
)

// maxBatchItems bounds one batch request.
const maxBatchItems = 100

// batchRequest is the body of a batch execution.
type batchRequest struct {
	Items []struct {
		DeviceID device.UniversalID `json:"device_id"`
		commandRequest
	} `json:"items"`
	Mode            string `json:"mode"` // "sequential" (default) or "parallel"
	ContinueOnError bool   `json:"continue_on_error"`
	MaxConcurrent   int    `json:"max_concurrent"`
	Confirm         *bool  `json:"confirm,omitempty"`
}

// handleExecuteBatch runs several commands and returns one result per item
// in request order.
func (s *Server) handleExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		writeBadRequest(w, "items are required")
		return
	}
	if len(req.Items) > maxBatchItems {
		writeBadRequest(w, "too many items (max "+strconv.Itoa(maxBatchItems)+")")
		return
	}

	opts := executor.BatchOptions{
		ContinueOnError: req.ContinueOnError,
		MaxConcurrent:   req.MaxConcurrent,
		Options:         commandRequest{Confirm: req.Confirm}.options(),
	}
	switch req.Mode {
	case "", executor.Sequential.String():
		opts.Mode = executor.Sequential
	case executor.Parallel.String():
		opts.Mode = executor.Parallel
	default:
		writeBadRequest(w, "mode must be sequential or parallel")
		return
	}

	items := make([]executor.BatchItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = executor.BatchItem{DeviceID: it.DeviceID, Command: it.command()}
	}

	results := s.hub.ExecuteBatch(r.Context(), items, opts)
	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

// handleListCommands returns journaled command executions, newest first.
//
// Query parameters:
//   - device_id: filter by device
//   - failed: only unsuccessful executions
//   - since: RFC3339 lower bound on execution time
//   - limit, offset: pagination
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command journal is disabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{DeviceID: device.UniversalID(q.Get("device_id"))}
	filter.Failed, _ = strconv.ParseBool(q.Get("failed"))
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	res, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list command journal", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
