package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"union-data/internal/repository"
)

type fakeResolver struct {
	slugs   map[string]string
	members map[string]string
}

func (f *fakeResolver) TenantIDBySlug(ctx context.Context, slug string) (string, error) {
	id, ok := f.slugs[slug]
	if !ok {
		return "", repository.ErrNotFound
	}
	return id, nil
}

func (f *fakeResolver) TenantIDByMemberID(ctx context.Context, memberID string) (string, error) {
	id, ok := f.members[memberID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return id, nil
}

type fakeUploader struct {
	keys []string
}

func (f *fakeUploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://files.example.com/" + key, nil
}

func (f *fakeUploader) Bucket() string { return "union-files" }

func multipartUpload(t *testing.T, fields map[string]string, filename string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("file-content"))
	_ = mw.Close()
	return body, mw.FormDataContentType()
}

func newTestUploadHandler(uploader *fakeUploader) *UploadHandler {
	h := NewUploadHandler(uploader, &fakeResolver{slugs: map[string]string{"gangnam-union": "tenant-1"}}, zap.NewNop())
	h.now = func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }
	return h
}

func TestUpload_RejectsInvalidSlug(t *testing.T) {
	for _, slug := range []string{"My Union!", "bad slug", "한글", ""} {
		h := newTestUploadHandler(&fakeUploader{})
		body, contentType := multipartUpload(t, map[string]string{"union": slug, "target_table": "members"}, "doc.pdf")
		req := httptest.NewRequest(http.MethodPost, "/admin/api/v1/uploads", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		h.Upload(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("slug %q: status = %d, want 400", slug, rec.Code)
			continue
		}
		var res Result[any]
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Message != "invalid_slug" {
			t.Errorf("slug %q: message = %q, want invalid_slug", slug, res.Message)
		}
	}
}

func TestUpload_FoldsSlugCaseBeforeLookup(t *testing.T) {
	uploader := &fakeUploader{}
	h := newTestUploadHandler(uploader)
	body, contentType := multipartUpload(t, map[string]string{"union": "Gangnam-Union", "target_table": "members"}, "doc.pdf")
	req := httptest.NewRequest(http.MethodPost, "/admin/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestUpload_JSONBodyWithBase64Content(t *testing.T) {
	uploader := &fakeUploader{}
	h := newTestUploadHandler(uploader)
	payload := map[string]string{
		"union":        "gangnam-union",
		"target_table": "members",
		"target_id":    "m-7",
		"file_name":    "contract.pdf",
		"file_content": base64.StdEncoding.EncodeToString([]byte("file-content")),
	}
	raw, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/admin/api/v1/uploads", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(uploader.keys) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploader.keys))
	}
	if !strings.HasPrefix(uploader.keys[0], "union/tenant-1/members/m-7/2026/03/15/") {
		t.Errorf("unexpected key: %s", uploader.keys[0])
	}
	if !strings.HasSuffix(uploader.keys[0], "_contract.pdf") {
		t.Errorf("unexpected key: %s", uploader.keys[0])
	}
}

func TestUpload_UnknownUnionIs404(t *testing.T) {
	h := newTestUploadHandler(&fakeUploader{})
	body, contentType := multipartUpload(t, map[string]string{"union": "nonexistent", "target_table": "members"}, "doc.pdf")
	req := httptest.NewRequest(http.MethodPost, "/admin/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpload_ObjectKeyLayout(t *testing.T) {
	uploader := &fakeUploader{}
	h := newTestUploadHandler(uploader)
	body, contentType := multipartUpload(t, map[string]string{
		"union":        "gangnam-union",
		"target_table": "members",
		"target_id":    "m-42",
	}, "등기부등본.pdf")
	req := httptest.NewRequest(http.MethodPost, "/admin/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(uploader.keys) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploader.keys))
	}
	key := uploader.keys[0]
	if !strings.HasPrefix(key, "union/tenant-1/members/m-42/2026/03/15/") {
		t.Errorf("unexpected key prefix: %s", key)
	}
	if !strings.HasSuffix(key, "_등기부등본.pdf") {
		t.Errorf("expected sanitized original filename suffix: %s", key)
	}

	var res Result[map[string]string]
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Result["bucket"] != "union-files" {
		t.Errorf("bucket = %q", res.Result["bucket"])
	}
	if res.Result["path"] != key {
		t.Errorf("path = %q, want %q", res.Result["path"], key)
	}
	if res.Result["file_url"] != "https://files.example.com/"+key {
		t.Errorf("file_url = %q", res.Result["file_url"])
	}
}

func TestUpload_OmitsTargetIDSegmentWhenEmpty(t *testing.T) {
	uploader := &fakeUploader{}
	h := newTestUploadHandler(uploader)
	body, contentType := multipartUpload(t, map[string]string{
		"union":        "gangnam-union",
		"target_table": "tenants",
	}, "logo.png")
	req := httptest.NewRequest(http.MethodPost, "/admin/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.HasPrefix(uploader.keys[0], "union/tenant-1/tenants/2026/03/15/") {
		t.Errorf("unexpected key: %s", uploader.keys[0])
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":       "report.pdf",
		"../../etc/passwd": "passwd",
		"my file (1).pdf":  "my_file_1_.pdf",
		"등기부등본.pdf":        "등기부등본.pdf",
		"":                 "file",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
