package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nimbusdrive/nimbus-go/api/models"
	"github.com/nimbusdrive/nimbus-go/types"
)

// RecycleController implements the recycle-bin endpoints of the dev backend.
type RecycleController struct {
	store *models.Store
}

func NewRecycleController(store *models.Store) *RecycleController {
	return &RecycleController{store: store}
}

// HandleList returns every soft-deleted record.
// GET /api/v1/recycle-bin
func (r *RecycleController) HandleList(c *gin.Context) {
	files := r.store.ListDeleted()
	c.JSON(http.StatusOK, types.BinListResponse{Files: files, Count: len(files)})
}

// HandleRestore moves a soft-deleted file back to the library.
// POST /api/v1/recycle-bin/:id/restore
func (r *RecycleController) HandleRestore(c *gin.Context) {
	found, wasDeleted := r.store.Restore(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}
	if !wasDeleted {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "File is not in recycle bin"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File restored to library"})
}

// HandlePurge permanently deletes a record. A repeated purge answers 404,
// which the client treats as success.
// DELETE /api/v1/recycle-bin/:id
func (r *RecycleController) HandlePurge(c *gin.Context) {
	found, wasDeleted := r.store.Purge(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}
	if !wasDeleted {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "File must be moved to recycle bin before permanent deletion"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File permanently deleted"})
}
