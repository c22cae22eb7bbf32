package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/landhub/internal/audit"
	"github.com/odyssey-erp/landhub/internal/platform/httpx"
	"github.com/odyssey-erp/landhub/internal/rbac"
	"github.com/odyssey-erp/landhub/internal/shared"
)

// Auditor records privileged actions.
type Auditor interface {
	Record(ctx context.Context, p rbac.Principal, action string, target *audit.Target, details any, ipAddress string) error
}

const (
	fieldTitle   = "title"
	fieldPhoto   = "photo"
	fieldGallery = "gallery"

	maxGalleryFiles = 4
	maxTitleLen     = 200
	formOverhead    = 1 << 20
)

// Handler serves the multipart upload endpoint.
type Handler struct {
	logger    *slog.Logger
	validator *Validator
	audit     Auditor
	maxSize   int64
}

// NewHandler constructs a Handler. maxSize applies to each file.
func NewHandler(logger *slog.Logger, validator *Validator, auditor Auditor, maxSize int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Handler{logger: logger, validator: validator, audit: auditor, maxSize: maxSize}
}

// MountRoutes registers the upload route. The caller must have resolved a principal.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleUpload)
}

type uploadResponse struct {
	Title   string           `json:"title,omitempty"`
	Photo   *UploadedAsset   `json:"photo,omitempty"`
	Gallery []*UploadedAsset `json:"gallery,omitempty"`
}

// formErrors collects one message per field and remembers the worst status seen.
type formErrors struct {
	fields  map[string]string
	status  int
	message string
}

func (f *formErrors) add(field string, err error) {
	status, message := httpx.StatusFor(err)
	if _, exists := f.fields[field]; !exists {
		f.fields[field] = message
	}
	if status > f.status {
		f.status = status
		f.message = message
	}
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize*(maxGalleryFiles+1)+formOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.MsgValidation)
		return
	}

	var resp uploadResponse
	errs := formErrors{fields: make(map[string]string)}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				errs.add("form", shared.ErrFileTooLarge)
			} else {
				errs.add("form", httpx.ErrValidation)
			}
			break
		}
		h.readPart(r, part, &resp, &errs)
		_ = part.Close()
	}

	if strings.TrimSpace(resp.Title) == "" {
		errs.add(fieldTitle, httpx.ErrValidation)
	}
	if resp.Photo == nil {
		errs.add(fieldPhoto, httpx.ErrValidation)
	}

	if resp.Photo != nil || len(resp.Gallery) > 0 {
		h.record(r, p, resp)
	}
	if len(errs.fields) > 0 {
		httpx.JSON(w, errs.status, httpx.Envelope{
			Success: false,
			Message: errs.message,
			Data:    resp,
			Errors:  errs.fields,
		})
		return
	}
	httpx.OK(w, http.StatusCreated, "Upload stored.", resp)
}

func (h *Handler) readPart(r *http.Request, part *multipart.Part, resp *uploadResponse, errs *formErrors) {
	name := part.FormName()
	switch name {
	case fieldTitle:
		raw, err := io.ReadAll(io.LimitReader(part, maxTitleLen+1))
		if err != nil || len(raw) > maxTitleLen {
			errs.add(fieldTitle, httpx.ErrValidation)
			return
		}
		resp.Title = strings.TrimSpace(string(raw))
	case fieldPhoto, fieldGallery:
		if part.FileName() == "" {
			errs.add(name, httpx.ErrValidation)
			return
		}
		if name == fieldPhoto && resp.Photo != nil {
			errs.add(name, httpx.ErrValidation)
			return
		}
		if name == fieldGallery && len(resp.Gallery) >= maxGalleryFiles {
			errs.add(name, httpx.ErrValidation)
			return
		}
		asset, err := h.validator.Validate(r.Context(), part, part.FileName(), part.Header.Get("Content-Type"), h.maxSize)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				err = shared.ErrFileTooLarge
			}
			h.logger.Info("upload rejected", slog.String("field", name), slog.Any("error", err))
			errs.add(name, err)
			return
		}
		if name == fieldPhoto {
			resp.Photo = asset
		} else {
			resp.Gallery = append(resp.Gallery, asset)
		}
	}
}

func (h *Handler) record(r *http.Request, p rbac.Principal, resp uploadResponse) {
	if h.audit == nil {
		return
	}
	paths := make([]string, 0, len(resp.Gallery)+1)
	target := &audit.Target{Type: "upload"}
	if resp.Photo != nil {
		paths = append(paths, resp.Photo.StoragePath)
		target.ID = resp.Photo.StoragePath
	}
	for _, asset := range resp.Gallery {
		paths = append(paths, asset.StoragePath)
	}
	if target.ID == "" {
		target.ID = paths[0]
	}
	details := map[string]any{"title": resp.Title, "paths": paths}
	_ = h.audit.Record(r.Context(), p, "upload.create", target, details, shared.ClientIP(r))
}
