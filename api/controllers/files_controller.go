package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nimbusdrive/nimbus-go/api/models"
	"github.com/nimbusdrive/nimbus-go/tool"
	"github.com/nimbusdrive/nimbus-go/types"
)

// FilesController implements the file library endpoints of the dev backend.
type FilesController struct {
	store    *models.Store
	maxBytes int64
}

func NewFilesController(store *models.Store, maxUploadMB int64) *FilesController {
	if maxUploadMB <= 0 {
		maxUploadMB = 100
	}
	return &FilesController{store: store, maxBytes: maxUploadMB << 20}
}

// HandleUpload accepts a multipart upload with optional width/height fields,
// mirroring the production contract: MIME gate, size cap, metadata record.
// POST /api/v1/files/upload
func (f *FilesController) HandleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing file field"})
		return
	}
	if header.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Empty file"})
		return
	}
	if header.Size > f.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	category, ok := tool.AllowedTypes[mimeType]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unsupported file type: " + mimeType})
		return
	}

	width, _ := strconv.Atoi(c.PostForm("width"))
	height, _ := strconv.Atoi(c.PostForm("height"))

	fileID := tool.NewID()
	rec := &types.FileRecord{
		FileID:    fileID,
		FileName:  header.Filename,
		FileType:  category,
		MIME:      mimeType,
		FileSize:  header.Size,
		Width:     width,
		Height:    height,
		ShareURL:  "/share/" + fileID,
		CreatedAt: time.Now().UTC(),
	}
	f.store.AddFile(rec)
	tool.DefaultLogger.Infof("Stored %s (%s, %d bytes)", rec.FileName, rec.FileType, rec.FileSize)

	c.JSON(http.StatusOK, gin.H{
		"message": "File uploaded successfully",
		"file":    rec,
	})
}

// HandleList returns the live library.
// GET /api/v1/files
func (f *FilesController) HandleList(c *gin.Context) {
	files := f.store.ListFiles()
	c.JSON(http.StatusOK, types.FileListResponse{Files: files, Count: len(files)})
}

// HandleGet returns one record.
// GET /api/v1/files/:id
func (f *FilesController) HandleGet(c *gin.Context) {
	rec, ok := f.store.GetFile(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleSoftDelete moves a file to the recycle bin.
// DELETE /api/v1/files/:id
func (f *FilesController) HandleSoftDelete(c *gin.Context) {
	if !f.store.SoftDelete(c.Param("id"), time.Now().UTC()) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File moved to recycle bin"})
}
