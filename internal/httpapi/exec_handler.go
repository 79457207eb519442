package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type execRequest struct {
	Command        string   `json:"command" validate:"required"`
	Args           []string `json:"args"`
	TimeoutSeconds *int     `json:"timeout_seconds" validate:"omitempty,gt=0"`
	MaxOutputBytes *int     `json:"max_output_bytes" validate:"omitempty,gt=0"`
}

type execResponse struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMs int64  `json:"duration_ms"`
	Truncated  bool   `json:"truncated"`
}

// handleExec runs a whitelisted read-only command rooted at the repo's
// files directory (spec.md §4.10).
func (a *api) handleExec(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "id")

	var req execRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if !decodeAndValidate(w, err, &req) {
		return
	}

	if _, err := a.repos.Get(repoID); err != nil {
		WriteError(w, err)
		return
	}

	var timeout time.Duration
	if req.TimeoutSeconds != nil {
		timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}
	outputCap := 0
	if req.MaxOutputBytes != nil {
		outputCap = *req.MaxOutputBytes
	}

	workingDir := a.archive.Path(repoID, "")
	result, err := a.runner.Run(r.Context(), req.Command, req.Args, workingDir, timeout, outputCap)
	if err != nil {
		outcome := "error"
		a.metrics.ObserveSandboxExec(req.Command, outcome)
		WriteError(w, err)
		return
	}

	outcome := "ok"
	if result.ExitCode != 0 {
		outcome = "nonzero"
	}
	a.metrics.ObserveSandboxExec(req.Command, outcome)

	WriteJSON(w, http.StatusOK, execResponse{
		ExitCode:   result.ExitCode,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		DurationMs: result.DurationMs,
		Truncated:  result.Truncated,
	})
}
