package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/go-chi/chi/v5"
)

type fileResponse struct {
	Path           string `json:"path"`
	SizeBytes      uint64 `json:"size_bytes"`
	ETag           string `json:"etag"`
	ContentType    string `json:"content_type"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	LastAccessedAt string `json:"last_accessed_at"`
	AccessCount    uint64 `json:"access_count"`
	ExpiresAt      *string `json:"expires_at"`
}

func toFileResponse(f catalog.File) fileResponse {
	resp := fileResponse{
		Path:           f.Path,
		SizeBytes:      f.SizeBytes,
		ETag:           f.ETag,
		ContentType:    f.ContentType,
		CreatedAt:      f.CreatedAt.Format(rfc3339),
		UpdatedAt:      f.UpdatedAt.Format(rfc3339),
		LastAccessedAt: f.LastAccessedAt.Format(rfc3339),
		AccessCount:    f.AccessCount,
	}
	if f.ExpiresAt != nil {
		s := f.ExpiresAt.Format(rfc3339)
		resp.ExpiresAt = &s
	}
	return resp
}

func (a *api) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "id")
	path := chi.URLParam(r, "*")

	if a.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadSize)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorWithMessage(w, http.StatusRequestEntityTooLarge, "upload exceeds maximum size")
			return
		}
		WriteErrorWithMessage(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var ttlOverride *int64
	if raw := r.Header.Get("X-File-TTL"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteErrorWithMessage(w, http.StatusBadRequest, "X-File-TTL must be an integer number of seconds")
			return
		}
		ttlOverride = &v
	}

	file, err := a.files.Upload(repoID, path, data, ttlOverride)
	if err != nil {
		WriteError(w, err)
		return
	}
	a.metrics.ObserveUpload(len(data))
	w.Header().Set("ETag", fmt.Sprintf("%q", file.ETag))
	WriteJSON(w, http.StatusCreated, toFileResponse(file))
}

func (a *api) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "id")
	path := chi.URLParam(r, "*")

	file, diskPath, err := a.files.Download(repoID, path)
	if err != nil {
		WriteError(w, err)
		return
	}

	etag := fmt.Sprintf("%q", file.ETag)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	f, err := os.Open(diskPath)
	if err != nil {
		WriteErrorWithMessage(w, http.StatusNotFound, "not found")
		return
	}
	defer f.Close()

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.FormatUint(file.SizeBytes, 10))
	w.Header().Set("Last-Modified", file.UpdatedAt.Format(http.TimeFormat))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	a.metrics.ObserveDownload()
	io.Copy(w, f)
}

func (a *api) handleHeadFile(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "id")
	path := chi.URLParam(r, "*")

	file, err := a.files.Head(repoID, path)
	if err != nil {
		w.WriteHeader(catalogStatusOnly(err))
		return
	}

	w.Header().Set("ETag", fmt.Sprintf("%q", file.ETag))
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.FormatUint(file.SizeBytes, 10))
	w.Header().Set("Last-Modified", file.UpdatedAt.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
}

func (a *api) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "id")
	path := chi.URLParam(r, "*")

	if err := a.files.Delete(repoID, path); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

type fileListResponse struct {
	Files []fileResponse `json:"files"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
}

func (a *api) handleListFiles(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "id")
	prefix := r.URL.Query().Get("prefix")
	recursive := r.URL.Query().Get("recursive") != "false"
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 100)

	listPage, err := a.files.List(repoID, prefix, recursive, page, perPage)
	if err != nil {
		WriteError(w, err)
		return
	}

	out := make([]fileResponse, 0, len(listPage.Files))
	for _, f := range listPage.Files {
		out = append(out, toFileResponse(f))
	}
	WriteJSON(w, http.StatusOK, fileListResponse{Files: out, Total: listPage.Total, Page: page})
}

type moveCopyRequest struct {
	Source      string `json:"source" validate:"required"`
	Destination string `json:"destination" validate:"required"`
}

func (a *api) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "id")
	var req moveCopyRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if !decodeAndValidate(w, err, &req) {
		return
	}

	file, err := a.files.Move(repoID, req.Source, req.Destination)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toFileResponse(file))
}

func (a *api) handleCopyFile(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "id")
	var req moveCopyRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if !decodeAndValidate(w, err, &req) {
		return
	}

	file, err := a.files.Copy(repoID, req.Source, req.Destination)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toFileResponse(file))
}
