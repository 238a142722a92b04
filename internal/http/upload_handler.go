package httpapi

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"union-data/internal/repository"
	"union-data/internal/storage"
)

const maxFileUpload = 32 << 20

// slugRe is the tenant slug format, matched case-insensitively. Matching
// slugs are folded to lowercase before lookup; stored slugs are lowercase.
var slugRe = regexp.MustCompile(`(?i)^[a-z0-9-_.]+$`)

// filenameSanitizeRe strips path separators and control characters from the
// original filename before it becomes part of the object key.
var filenameSanitizeRe = regexp.MustCompile(`[^\w.\-가-힣]+`)

// UploadHandler stores files under a tenant-scoped object key and returns
// the bucket, key and public URL.
type UploadHandler struct {
	uploader storage.Uploader
	resolver repository.TenantResolver
	logger   *zap.Logger
	now      func() time.Time
}

func NewUploadHandler(uploader storage.Uploader, resolver repository.TenantResolver, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{uploader: uploader, resolver: resolver, logger: logger, now: time.Now}
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = filenameSanitizeRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "file"
	}
	return name
}

// objectKey is union/{tenant_id}/{target_table}/{target_id?}/{yyyy}/{mm}/{dd}/{uuid}_{filename}.
func (h *UploadHandler) objectKey(tenantID, targetTable, targetID, filename string) string {
	now := h.now().UTC()
	parts := []string{"union", tenantID, targetTable}
	if targetID != "" {
		parts = append(parts, targetID)
	}
	parts = append(parts,
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", int(now.Month())),
		fmt.Sprintf("%02d", now.Day()),
		fmt.Sprintf("%s_%s", uuid.New().String(), sanitizeFilename(filename)),
	)
	return strings.Join(parts, "/")
}

// uploadRequest is the decoded form regardless of transport: multipart form
// or a JSON body carrying the file as base64.
type uploadRequest struct {
	Slug        string
	TargetTable string
	TargetID    string
	Filename    string
	ContentType string
	Data        []byte
}

func (h *UploadHandler) decodeMultipart(r *http.Request) (*uploadRequest, error) {
	if err := r.ParseMultipartForm(maxFileUpload); err != nil {
		return nil, fmt.Errorf("invalid multipart form")
	}
	req := &uploadRequest{
		Slug:        r.FormValue("union"),
		TargetTable: r.FormValue("target_table"),
		TargetID:    r.FormValue("target_id"),
	}
	if req.Slug == "" {
		req.Slug = r.URL.Query().Get("union")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file field is required")
	}
	defer file.Close()
	req.Data, err = io.ReadAll(io.LimitReader(file, maxFileUpload))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload")
	}
	req.Filename = header.Filename
	req.ContentType = contentTypeOf(header)
	return req, nil
}

func (h *UploadHandler) decodeJSON(r *http.Request) (*uploadRequest, error) {
	var body struct {
		Union       string `json:"union"`
		TargetTable string `json:"target_table"`
		TargetID    string `json:"target_id"`
		FileName    string `json:"file_name"`
		FileContent string `json:"file_content"`
	}
	if err := readBodyJSON(r, maxFileUpload, &body); err != nil {
		return nil, fmt.Errorf("invalid request body")
	}
	if body.FileContent == "" {
		return nil, fmt.Errorf("file_content is required")
	}
	data, err := base64.StdEncoding.DecodeString(body.FileContent)
	if err != nil {
		return nil, fmt.Errorf("file_content is not valid base64")
	}
	return &uploadRequest{
		Slug:        body.Union,
		TargetTable: body.TargetTable,
		TargetID:    body.TargetID,
		Filename:    body.FileName,
		ContentType: "application/octet-stream",
		Data:        data,
	}, nil
}

// Upload POST /admin/api/v1/uploads — multipart form with fields
// union (slug), target_table, target_id (optional) and file, or a JSON
// body with the file content base64-encoded.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req *uploadRequest
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		req, err = h.decodeJSON(r)
	} else {
		req, err = h.decodeMultipart(r)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	if !slugRe.MatchString(req.Slug) {
		writeJSON(w, http.StatusBadRequest, Fail("invalid_slug"))
		return
	}
	tenantID, err := h.resolver.TenantIDBySlug(r.Context(), strings.ToLower(req.Slug))
	if err != nil {
		if err == repository.ErrNotFound {
			writeJSON(w, http.StatusNotFound, Fail("union not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}

	if req.TargetTable == "" {
		writeJSON(w, http.StatusBadRequest, Fail("target_table is required"))
		return
	}

	key := h.objectKey(tenantID, req.TargetTable, req.TargetID, req.Filename)
	fileURL, err := h.uploader.Upload(r.Context(), key, req.Data, req.ContentType)
	if err != nil {
		h.logger.Error("file upload failed",
			zap.String("tenant_id", tenantID),
			zap.String("key", key),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("upload failed"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"bucket":   h.uploader.Bucket(),
		"path":     key,
		"file_url": fileURL,
	}))
}

func contentTypeOf(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
