package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/AnTengye/invoicedesk/config"
	"github.com/AnTengye/invoicedesk/middleware"
	"github.com/AnTengye/invoicedesk/service"
	"github.com/gin-gonic/gin"
)

// sniffLen is how much of each file is read for content detection
const sniffLen = 512

type UploadHandler struct {
	tracker *service.UploadTracker
	cfg     *config.UploadConfig
}

func NewUploadHandler(tracker *service.UploadTracker, cfg *config.UploadConfig) *UploadHandler {
	return &UploadHandler{tracker: tracker, cfg: cfg}
}

// Upload accepts one or more files in the multipart field "files"
func (h *UploadHandler) Upload(c *gin.Context) {
	// Enough for a full batch plus multipart overhead
	limit := h.cfg.MaxFileSize*int64(h.cfg.MaxFiles) + 1<<20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(c, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		respondError(c, http.StatusBadRequest, "No file provided")
		return
	}
	defer form.RemoveAll()

	headers := form.File["files"]
	if len(headers) == 0 {
		respondError(c, http.StatusBadRequest, "No file provided")
		return
	}

	files := make([]service.FileInfo, 0, len(headers))
	for _, fh := range headers {
		files = append(files, service.FileInfo{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Head:        readHead(fh),
		})
	}

	batch, err := h.tracker.Accept(middleware.GetUserID(c), files)
	if errors.Is(err, service.ErrTrackerClosed) {
		respondError(c, http.StatusServiceUnavailable, "Server is shutting down")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to accept upload")
		return
	}

	slog.Info("upload batch received",
		"request_id", middleware.GetRequestID(c),
		"user_id", middleware.GetUserID(c),
		"accepted", len(batch.Accepted),
		"rejected", len(batch.Rejected),
	)
	respondOK(c, batch)
}

// List returns the upload tasks visible to the user, oldest first
func (h *UploadHandler) List(c *gin.Context) {
	owner, ok := ownerScope(c)
	if !ok {
		return
	}
	respondOK(c, h.tracker.List(owner))
}

func (h *UploadHandler) Get(c *gin.Context) {
	task, err := h.tracker.Get(c.Param("id"))
	if err != nil || !visibleTo(c, task.Owner) {
		respondError(c, http.StatusNotFound, "Upload not found")
		return
	}
	respondOK(c, task)
}

// Delete removes a task and cancels its remaining work
func (h *UploadHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	task, err := h.tracker.Get(id)
	if err != nil || !visibleTo(c, task.Owner) {
		respondError(c, http.StatusNotFound, "Upload not found")
		return
	}
	if err := h.tracker.Remove(id); err != nil {
		respondError(c, http.StatusNotFound, "Upload not found")
		return
	}
	respondMessage(c, "Upload removed")
}

func readHead(fh *multipart.FileHeader) []byte {
	f, err := fh.Open()
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil
	}
	return buf[:n]
}
