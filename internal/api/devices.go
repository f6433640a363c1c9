package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/directory"
	"github.com/nerrad567/gray-logic-hub/internal/executor"
)

// commandRequest is the body of a single command execution.
type commandRequest struct {
	Capability device.Capability `json:"capability"`
	Command    string            `json:"command"`
	Args       []device.Value    `json:"args,omitempty"`

	// Confirm overrides the executor default when set.
	Confirm *bool `json:"confirm,omitempty"`

	// ConfirmTimeoutMS overrides the confirmation window.
	ConfirmTimeoutMS int `json:"confirm_timeout_ms,omitempty"`
}

func (c commandRequest) command() device.Command {
	return device.Command{Capability: c.Capability, Name: c.Command, Args: c.Args}
}

func (c commandRequest) options() executor.Options {
	var opts executor.Options
	if c.Confirm != nil {
		opts.Confirm = executor.ConfirmOff
		if *c.Confirm {
			opts.Confirm = executor.ConfirmOn
		}
	}
	if c.ConfirmTimeoutMS > 0 {
		opts.ConfirmTimeout = time.Duration(c.ConfirmTimeoutMS) * time.Millisecond
	}
	return opts
}

// stateRequest is the body of an externally pushed unified state.
type stateRequest struct {
	Attributes map[string]device.Value `json:"attributes"`
	CapturedAt time.Time               `json:"captured_at,omitzero"`
}

// handleListDevices returns devices across every backend.
//
// Query parameters (all optional, repeatable or comma-separated where noted):
//   - backend: restrict to backends (repeatable)
//   - id: restrict to universal ids (repeatable)
//   - capability: only devices declaring this capability
//   - room: only devices in this room
//
// A failing backend is omitted rather than failing the listing.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := directory.Query{
		Capability: device.Capability(q.Get("capability")),
		Room:       q.Get("room"),
	}
	for _, b := range splitValues(q["backend"]) {
		query.Backends = append(query.Backends, device.Backend(b))
	}
	for _, id := range splitValues(q["id"]) {
		query.IDs = append(query.IDs, device.UniversalID(id))
	}

	devices, err := s.hub.ListDevices(r.Context(), query)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by universal id.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.hub.GetDevice(r.Context(), deviceID(r))
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleGetDeviceState returns the cached state, fetching on a miss.
// refresh=true bypasses the cache.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := deviceID(r)

	var (
		state device.State
		err   error
	)
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		state, err = s.hub.RefreshDeviceState(r.Context(), id)
	} else {
		state, err = s.hub.GetDeviceState(r.Context(), id)
	}
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handlePushDeviceState stores a unified state delivered by the caller.
func (s *Server) handlePushDeviceState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Attributes) == 0 {
		writeBadRequest(w, "attributes are required")
		return
	}
	if req.CapturedAt.IsZero() {
		req.CapturedAt = time.Now()
	}

	state := device.State{DeviceID: deviceID(r), CapturedAt: req.CapturedAt, Attributes: req.Attributes}
	if err := s.hub.PushState(r.Context(), state); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExecuteCommand runs one command and returns its result. The status
// code follows the result's error kind.
func (s *Server) handleExecuteCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Capability == "" || req.Command == "" {
		writeBadRequest(w, "capability and command are required")
		return
	}

	res := s.hub.ExecuteCommand(r.Context(), deviceID(r), req.command(), req.options())
	writeJSON(w, statusForKind(res.ErrorKind()), res)
}

// deviceID extracts the universal id path parameter.
func deviceID(r *http.Request) device.UniversalID {
	return device.UniversalID(chi.URLParam(r, "id"))
}

// splitValues flattens repeated and comma-separated query values.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
