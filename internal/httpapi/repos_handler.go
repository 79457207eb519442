package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/dittostore/dittostore/internal/reposvc"
	"github.com/dittostore/dittostore/internal/walrecord"
	"github.com/go-chi/chi/v5"
)

type repoResponse struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	MaxSizeBytes     uint64            `json:"max_size_bytes"`
	CurrentSizeBytes uint64            `json:"current_size_bytes"`
	FileCount        uint64            `json:"file_count"`
	DefaultTTLSecs   *int64            `json:"default_ttl_seconds"`
	Tags             map[string]string `json:"tags"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
	LastAccessedAt   string            `json:"last_accessed_at"`
}

func toRepoResponse(r catalog.Repo) repoResponse {
	return repoResponse{
		ID:               r.ID,
		Name:             r.Name,
		MaxSizeBytes:     r.MaxSizeBytes,
		CurrentSizeBytes: r.CurrentSizeBytes,
		FileCount:        r.FileCount,
		DefaultTTLSecs:   r.DefaultTTLSecs,
		Tags:             r.Tags,
		CreatedAt:        r.CreatedAt.Format(rfc3339),
		UpdatedAt:        r.UpdatedAt.Format(rfc3339),
		LastAccessedAt:   r.LastAccessedAt.Format(rfc3339),
	}
}

const rfc3339 = "2006-01-02T15:04:05.000Z07:00"

type createRepoRequest struct {
	Name           string  `json:"name" validate:"required,max=255"`
	MaxSizeBytes   *uint64 `json:"max_size_bytes" validate:"omitempty,gt=0"`
	DefaultTTLSecs *int64  `json:"default_ttl_seconds" validate:"omitempty,gt=0"`
}

func (a *api) handleCreateRepo(w http.ResponseWriter, r *http.Request) {
	var req createRepoRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if !decodeAndValidate(w, err, &req) {
		return
	}

	repo, err := a.repos.Create(reposvc.CreateRequest{
		Name:           req.Name,
		MaxSizeBytes:   req.MaxSizeBytes,
		DefaultTTLSecs: req.DefaultTTLSecs,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toRepoResponse(repo))
}

type repoListResponse struct {
	Repos []repoResponse `json:"repos"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
}

func (a *api) handleListRepos(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)
	sortBy := reposvc.Sort(r.URL.Query().Get("sort"))

	listPage := a.repos.List(page, perPage, sortBy)
	out := make([]repoResponse, 0, len(listPage.Repos))
	for _, repo := range listPage.Repos {
		out = append(out, toRepoResponse(repo))
	}
	WriteJSON(w, http.StatusOK, repoListResponse{Repos: out, Total: listPage.Total, Page: page})
}

func (a *api) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	repo, err := a.repos.Get(id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toRepoResponse(repo))
}

// updateRepoRequest uses json.RawMessage for default_ttl_seconds so the
// handler can distinguish "absent" from "present and null" from "present
// with a value" per spec.md §9's patch-semantics note.
type updateRepoRequest struct {
	Name           *string           `json:"name" validate:"omitempty,max=255"`
	MaxSizeBytes   *uint64           `json:"max_size_bytes" validate:"omitempty,gt=0"`
	DefaultTTL     json.RawMessage   `json:"default_ttl_seconds"`
	Tags           map[string]string `json:"tags"`
}

func (a *api) handleUpdateRepo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	raw := map[string]json.RawMessage{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		WriteErrorWithMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var req updateRepoRequest
	if err := json.Unmarshal(mustMarshalBack(raw), &req); err != nil {
		WriteErrorWithMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		WriteErrorWithMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	patch := reposvc.UpdatePatch{Name: req.Name, MaxSizeBytes: req.MaxSizeBytes}

	if ttlRaw, present := raw["default_ttl_seconds"]; present {
		if string(ttlRaw) == "null" {
			patch.DefaultTTL = walrecord.OptionalTTL{Set: true, Clear: true}
		} else {
			var v int64
			if err := json.Unmarshal(ttlRaw, &v); err != nil {
				WriteErrorWithMessage(w, http.StatusBadRequest, "default_ttl_seconds must be an integer or null")
				return
			}
			patch.DefaultTTL = walrecord.OptionalTTL{Set: true, Value: v}
		}
	}

	if _, present := raw["tags"]; present {
		patch.TagsPresent = true
		patch.Tags = req.Tags
	}

	repo, err := a.repos.Update(id, patch)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toRepoResponse(repo))
}

func (a *api) handleDeleteRepo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.repos.Delete(id); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func mustMarshalBack(m map[string]json.RawMessage) []byte {
	b, _ := json.Marshal(m)
	return b
}
