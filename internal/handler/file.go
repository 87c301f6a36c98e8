package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/middleware"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/service"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// FileService stores and serves the content of file rows.
type FileService interface {
	MaxContentBytes() int64
	AttachContent(ctx context.Context, p *xtable.Principal, fileID string, r io.Reader, mimeType string) (*model.FileContent, error)
	OpenContent(ctx context.Context, p *xtable.Principal, fileID string) (*model.FileDownload, error)
}

// FileHandler handles file content uploads and downloads
type FileHandler struct {
	files FileService
}

// NewFileHandler creates a new file handler
func NewFileHandler(files FileService) *FileHandler {
	return &FileHandler{files: files}
}

// RegisterRoutes registers file routes
func (h *FileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /v1/files/{fileId}/content", h.PutContent)
	mux.HandleFunc("GET /v1/files/{fileId}/content", h.GetContent)
}

// PutContent handles PUT /v1/files/{fileId}/content. The raw body is the
// content; Content-Type is recorded as its mime type.
func (h *FileHandler) PutContent(w http.ResponseWriter, r *http.Request) {
	limit := h.files.MaxContentBytes()
	if r.ContentLength > limit {
		WriteError(w, model.NewPayloadTooLargeError(limit))
		return
	}

	mimeType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mimeType = mt
		}
	}

	fileID := r.PathValue("fileId")
	content, err := h.files.AttachContent(r.Context(), middleware.GetPrincipal(r.Context()), fileID, r.Body, mimeType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContentTooLarge):
			WriteError(w, model.NewPayloadTooLargeError(limit))
		case errors.Is(err, service.ErrNoContent):
			WriteError(w, model.NewBadRequestError("request body is empty"))
		default:
			WriteError(w, MapServiceError(err))
		}
		return
	}

	WriteData(w, http.StatusOK, content, map[string]string{
		"content": "/v1/files/" + fileID + "/content",
		"row":     "/v1/tables/file/rows/" + fileID,
	})
}

// GetContent handles GET /v1/files/{fileId}/content. Stores that presign
// get a redirect; others are streamed through.
func (h *FileHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	dl, err := h.files.OpenContent(r.Context(), middleware.GetPrincipal(r.Context()), r.PathValue("fileId"))
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	if dl.URL != "" {
		http.Redirect(w, r, dl.URL, http.StatusFound)
		return
	}
	defer func() { _ = dl.Body.Close() }()

	if dl.MimeType != "" {
		w.Header().Set("Content-Type", dl.MimeType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	if dl.Name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": dl.Name}))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		slog.Warn("file stream interrupted",
			slog.String("file_id", r.PathValue("fileId")),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()))
	}
}
