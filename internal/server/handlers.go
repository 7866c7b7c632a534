package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/mokuji/internal/archive"
	"go.uber.org/zap"
)

func jsonEncode(w io.Writer, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

// handleUploadSCORM accepts a multipart SCORM zip under the "file" field,
// runs the ingest pipeline, and returns the staged result. A corrupt or
// oversized archive fails the request; failures inside later stages are
// reported in the 200 body instead.
//
// The body is read as a stream: the filename is checked from the part
// header, so a non-zip upload is rejected before its content is consumed.
func (s *Server) handleUploadSCORM(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxUploadBytes())

	mr, err := r.MultipartReader()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "No file part in the request")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		if isBodyTooLarge(err) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "uploaded file exceeds the size limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "No file part in the request")
		return
	}
	defer part.Close()

	filename := part.FileName()
	if filename == "" {
		s.respondError(w, http.StatusBadRequest, "No selected file")
		return
	}
	if !strings.EqualFold(filepath.Ext(filename), ".zip") {
		s.respondError(w, http.StatusBadRequest, "Invalid file type, please upload a .zip file")
		return
	}

	archivePath, err := s.spoolUpload(part)
	if err != nil {
		if isBodyTooLarge(err) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "uploaded file exceeds the size limit")
			return
		}
		s.logger.Error("upload spool failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}
	defer func() {
		if err := os.Remove(archivePath); err != nil {
			s.logger.Warn("spooled archive cleanup failed", zap.String("path", archivePath), zap.Error(err))
		}
	}()

	resp, err := s.pipeline.ProcessArchive(r.Context(), archivePath, filename)
	if err != nil {
		if errors.Is(err, archive.ErrCorruptArchive) {
			s.respondError(w, http.StatusBadRequest, "Invalid or corrupted zip file")
			return
		}
		s.logger.Error("pipeline failed", zap.String("file", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to process uploaded package")
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// nextFilePart advances the reader to the "file" form field, draining any
// preceding fields. io.EOF means the field was never sent.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		_ = part.Close()
	}
}

// isBodyTooLarge reports whether err stems from the MaxBytesReader cap.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// spoolUpload writes the uploaded stream to a temp file under the uploads
// directory and returns its path.
func (s *Server) spoolUpload(file io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploads.Dir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.uploads.Dir, "upload-*.zip")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusServiceUnavailable, "course catalog is not configured")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	courses, err := s.catalog.ListCourses(r.Context(), limit)
	if err != nil {
		s.logger.Error("course listing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}
	count, err := s.catalog.CountCourses(r.Context())
	if err != nil {
		s.logger.Error("course count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"courses": courses,
		"total":   count,
	})
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusServiceUnavailable, "course catalog is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	course, err := s.catalog.GetCourse(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "course not found")
		return
	}
	s.respondJSON(w, http.StatusOK, course)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusServiceUnavailable, "course catalog is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.catalog.DeleteCourse(r.Context(), id); err != nil {
		s.respondError(w, http.StatusNotFound, "course not found")
		return
	}
	if s.index != nil {
		if err := s.index.Delete(r.Context(), id); err != nil {
			s.logger.Warn("index delete failed", zap.String("id", id), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"result": true})
}

// handleSearch runs a keyword query over indexed course text and hydrates
// hits from the catalog. Hits whose catalog record is gone are dropped.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.index == nil || s.catalog == nil {
		s.respondError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "missing query parameter 'q'")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	hits, err := s.index.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	results := make([]*searchResult, 0, len(hits))
	for _, hit := range hits {
		course, err := s.catalog.GetCourse(r.Context(), hit.ID)
		if err != nil {
			s.logger.Warn("search hit missing from catalog", zap.String("id", hit.ID))
			continue
		}
		results = append(results, &searchResult{Course: course, Score: hit.Score})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
	})
}
