package httpapi

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dittostore/dittostore/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"
)

type archiveRequest struct {
	Path   string `json:"path"`
	Format string `json:"format" validate:"omitempty,oneof=tar.gz"`
}

// handleArchive streams a tar.gz of a repository's files, optionally
// restricted to a path prefix (spec.md §6).
func (a *api) handleArchive(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "id")

	var req archiveRequest
	if r.ContentLength != 0 {
		err := json.NewDecoder(r.Body).Decode(&req)
		if !decodeAndValidate(w, err, &req) {
			return
		}
	}
	if req.Format == "" {
		req.Format = "tar.gz"
	}

	if _, err := a.repos.Get(repoID); err != nil {
		WriteError(w, err)
		return
	}

	paths, err := a.archive.ListPaths(repoID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if req.Path != "" {
		filtered := paths[:0]
		for _, p := range paths {
			if p == req.Path || strings.HasPrefix(p, req.Path+"/") {
				filtered = append(filtered, p)
			}
		}
		paths = filtered
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.tar.gz"`, repoID))
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, p := range paths {
		if err := writeTarEntry(tw, a.archive.Path(repoID, p), p); err != nil {
			logger.Warn("archive entry failed", "repo_id", repoID, "path", p, "error", err.Error())
			break
		}
	}

	if err := tw.Close(); err != nil {
		logger.Warn("failed to close tar writer", "repo_id", repoID, "error", err.Error())
	}
	if err := gz.Close(); err != nil {
		logger.Warn("failed to close gzip writer", "repo_id", repoID, "error", err.Error())
	}
}

func writeTarEntry(tw *tar.Writer, diskPath, archivePath string) error {
	f, err := os.Open(diskPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:    archivePath,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
