package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"crimewatch/internal/middleware"
	"crimewatch/internal/models"
	"crimewatch/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MediaHandler serves locally stored report media. Objects are visible to the
// report owner and to staff only.
type MediaHandler struct {
	store storage.Storage
	log   *zap.SugaredLogger
}

func NewMediaHandler(store storage.Storage, log *zap.SugaredLogger) *MediaHandler {
	return &MediaHandler{store: store, log: log}
}

func (h *MediaHandler) Serve(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	key := strings.TrimPrefix(path.Clean("/"+c.Param("key")), "/")

	owner, ok := storage.KeyOwner(key)
	if !ok || (owner != user.ID && !user.IsStaff) {
		RenderError(c, http.StatusNotFound, "Page not found.")
		return
	}

	rc, err := h.store.Open(c.Request.Context(), key)
	if errors.Is(err, storage.ErrNotExist) {
		RenderError(c, http.StatusNotFound, "Page not found.")
		return
	}
	if err != nil {
		h.log.Errorw("open media failed", "key", key, "error", err)
		RenderError(c, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}
	defer rc.Close()

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, path.Base(key), time.Time{}, rs)
		return
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
