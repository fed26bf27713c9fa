package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/scoolish-backend/internal/http/response"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/services"
)

type FileHandler struct {
	files    services.FileService
	maxBytes int64
}

func NewFileHandler(files services.FileService, maxBytes int64) *FileHandler {
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &FileHandler{files: files, maxBytes: maxBytes}
}

// POST /api/files (multipart "file")
func (h *FileHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondAPIError(c, apierr.BadRequest("missing_file", "No file part"))
		return
	}
	if fh.Size > h.maxBytes {
		response.RespondAPIError(c, apierr.New(http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("%w: file exceeds %d bytes", apierr.ErrInvalidArgument, h.maxBytes)))
		return
	}
	src, err := fh.Open()
	if err != nil {
		response.RespondAPIError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, h.maxBytes+1))
	if err != nil {
		response.RespondAPIError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	f, duplicate, err := h.files.Upload(dbc(c), services.UploadInput{
		UserID:   callerID(c),
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if duplicate {
		response.RespondOK(c, gin.H{"message": "File already uploaded", "duplicate": true, "file": f})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "File uploaded", "duplicate": false, "file": f})
}

// GET /api/files
func (h *FileHandler) List(c *gin.Context) {
	files, err := h.files.List(dbc(c), callerID(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"files": files})
}

// GET /api/files/:id/pages
func (h *FileHandler) Pages(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	pages, err := h.files.Pages(dbc(c), callerID(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"file_id": id, "pages": pages})
}
