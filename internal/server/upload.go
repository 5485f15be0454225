package server

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maauso/jobportal-api/internal/apperr"
	"github.com/maauso/jobportal-api/internal/storage"
)

// multipartOverhead is the allowance for multipart framing and form fields
// on top of the image size limit.
const multipartOverhead = 64 << 10

// Upload handles POST /upload requests. The multipart body carries an
// "image" file and an optional "jobId" whose posting gets the image URL.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeError(w, http.StatusServiceUnavailable, storage.ErrNotConfigured.Error(), "SERVICE_UNAVAILABLE")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart/form-data body is required", "INVALID_MULTIPART")
		return
	}

	var (
		jobID    string
		fileName string
		data     []byte
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.writeUploadReadError(w, r, err)
			return
		}

		switch part.FormName() {
		case "jobId":
			b, err := io.ReadAll(io.LimitReader(part, 128))
			if err != nil {
				_ = part.Close()
				h.writeUploadReadError(w, r, err)
				return
			}
			jobID = strings.TrimSpace(string(b))
		case "image":
			if data != nil {
				break
			}
			fileName = part.FileName()
			data, err = io.ReadAll(io.LimitReader(part, h.maxUpload+1))
			if err != nil {
				_ = part.Close()
				h.writeUploadReadError(w, r, err)
				return
			}
			if int64(len(data)) > h.maxUpload {
				_ = part.Close()
				writeError(w, http.StatusRequestEntityTooLarge, "image exceeds the maximum upload size", "PAYLOAD_TOO_LARGE")
				return
			}
		}
		_ = part.Close()
	}

	if len(data) == 0 {
		h.writeAppError(w, r, apperr.Validation(map[string]string{"image": "image file is required"}))
		return
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		h.writeAppError(w, r, apperr.Validation(map[string]string{"image": "only image files are allowed"}))
		return
	}

	key := storage.NewObjectKey(h.mediaFolder, contentType, time.Now())
	url, err := h.media.Upload(r.Context(), key, contentType, bytes.NewReader(data))
	if err != nil {
		h.logger.Error("failed to upload image",
			slog.String("host", h.media.Name()),
			slog.String("key", key),
			slog.String("error", err.Error()),
			slog.String("request_id", RequestIDFromContext(r.Context())),
		)
		writeError(w, http.StatusServiceUnavailable, "failed to upload image", "UPLOAD_FAILED")
		return
	}
	h.logger.Info("image uploaded",
		slog.String("host", h.media.Name()),
		slog.String("key", key),
		slog.String("file_name", fileName),
		slog.Int("size", len(data)),
	)

	resp := UploadResponse{
		URL:         url,
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
	}
	if jobID != "" {
		p, err := h.jobs.LinkImage(r.Context(), jobID, url)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		h.audit(r, "job.image_linked", p.ID)
		resp.Job = p
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) writeUploadReadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds the maximum upload size", "PAYLOAD_TOO_LARGE")
		return
	}
	h.logger.Warn("failed to read upload",
		slog.String("error", err.Error()),
		slog.String("request_id", RequestIDFromContext(r.Context())),
	)
	writeError(w, http.StatusBadRequest, "malformed multipart body", "INVALID_MULTIPART")
}
