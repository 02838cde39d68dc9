package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/report"
	"github.com/sells-group/bankscan/internal/store"
)

// allowedExtensions are the image types accepted for upload.
var allowedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tiff": true, ".tif": true, ".webp": true,
}

// multipartMemory is how much of an upload is buffered before spilling to disk.
const multipartMemory = 8 << 20

// maxUploadSuffix bounds the numeric suffixes tried for a colliding upload name.
const maxUploadSuffix = 1000

type batchResponse struct {
	*model.Batch
	Rejected []string `json:"rejected,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.settings.Status()})
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "empty patch")
		return
	}

	if err := s.settings.UpdateProvider(provider, patch); err != nil {
		switch {
		case errors.Is(err, config.ErrUnknownProvider):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, config.ErrInvalidSettings):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			zap.L().Error("server: update provider failed", zap.String("provider", provider), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save settings")
		}
		return
	}

	id, _ := model.ParseProviderID(provider)
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": id,
		"status":   s.settings.Status()[id],
	})
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		zap.L().Error("server: create upload dir", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "upload directory unavailable")
		return
	}

	var refs, rejected []string
	for _, fh := range files {
		if !allowedExtensions[strings.ToLower(filepath.Ext(fh.Filename))] {
			rejected = append(rejected, fh.Filename)
			continue
		}
		path, err := s.saveUpload(fh)
		if err != nil {
			zap.L().Warn("server: save upload failed", zap.String("file", fh.Filename), zap.Error(err))
			rejected = append(rejected, fh.Filename)
			continue
		}
		refs = append(refs, path)
	}

	if len(refs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "no valid image files",
			"rejected": rejected,
		})
		return
	}

	runner, err := s.newRunner()
	if err != nil {
		zap.L().Error("server: build runner", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "pipeline unavailable")
		return
	}

	batch := runner.Run(r.Context(), refs)
	if err := s.store.SaveBatch(r.Context(), batch); err != nil {
		zap.L().Error("server: save batch", zap.String("batch_id", batch.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store batch")
		return
	}

	writeJSON(w, http.StatusCreated, batchResponse{Batch: batch, Rejected: rejected})
}

// saveUpload writes an uploaded file into the upload dir under a
// timestamp-prefixed sanitized name.
func (s *Server) saveUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", eris.Wrap(err, "server: open upload")
	}
	defer src.Close() //nolint:errcheck

	name := fmt.Sprintf("%s_%s", s.now().Format("20060102_150405"), sanitizeFilename(fh.Filename))
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	// Collisions get a numeric suffix after the original name.
	path := filepath.Join(s.cfg.UploadDir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	for n := 2; errors.Is(err, os.ErrExist) && n <= maxUploadSuffix; n++ {
		path = filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		dst, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", eris.Wrap(err, "server: create upload file")
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()     //nolint:errcheck
		os.Remove(path) //nolint:errcheck
		return "", eris.Wrap(err, "server: write upload")
	}
	if err := dst.Close(); err != nil {
		return "", eris.Wrap(err, "server: close upload")
	}
	return path, nil
}

// sanitizeFilename keeps the base name and replaces anything other than
// letters, digits, dot, dash and underscore.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}
	return name
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := s.store.ListBatches(r.Context(), limit)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if list == nil {
		list = []model.BatchSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": list})
}

func (s *Server) handleLatestBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.LatestBatch(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", report.WriteExcel)
}

func (s *Server) handleExportHTML(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "html", "text/html; charset=utf-8", report.WriteHTML)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, ext, contentType string, render func(io.Writer, *model.Batch) error) {
	b, err := s.store.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, b); err != nil {
		if errors.Is(err, report.ErrEmptyBatch) {
			writeError(w, http.StatusNotFound, "batch has no records")
			return
		}
		zap.L().Error("server: render export", zap.String("batch_id", b.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(report.Filename(b.ID, ext))))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	zap.L().Error("server: store error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "store error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
