package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tubetuner/tubetuner/internal/library"
	"github.com/tubetuner/tubetuner/internal/metrics"
	"github.com/tubetuner/tubetuner/internal/subtitle"
	"github.com/tubetuner/tubetuner/pkg/models"
)

// respondError maps library errors onto HTTP statuses.
func (api *API) respondError(c *gin.Context, err error) {
	switch {
	case library.IsValidation(err) || errors.Is(err, subtitle.ErrInvalidFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case library.IsDuplicate(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, library.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		api.log.ErrorWithErr("request failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (api *API) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// uploadVideos accepts one or more video files in a multipart form and
// stores them as one atomic batch.
func (api *API) uploadVideos(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	uploads := make([]models.FileUpload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		// Reject oversized files before buffering them into memory.
		if fh.Size > library.MaxUploadSize {
			metrics.UploadsRejectedTotal.WithLabelValues("validation").Inc()
			api.respondError(c, &library.ValidationError{Msg: fmt.Sprintf("file too large: %s", fh.Filename)})
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
			return
		}

		lastModified := int64(0)
		if v := fh.Header.Get("Last-Modified-Ms"); v != "" {
			lastModified = parseMillis(v)
		}

		uploads = append(uploads, models.FileUpload{
			Name:         fh.Filename,
			Size:         int64(len(data)),
			Mime:         fh.Header.Get("Content-Type"),
			LastModified: lastModified,
			Data:         data,
		})
	}

	records, err := api.store.AddVideos(c.Request.Context(), uploads)
	if err != nil {
		switch {
		case library.IsDuplicate(err):
			metrics.UploadsRejectedTotal.WithLabelValues("duplicate").Inc()
		case library.IsValidation(err):
			metrics.UploadsRejectedTotal.WithLabelValues("validation").Inc()
		}
		api.respondError(c, err)
		return
	}

	for _, rec := range records {
		metrics.VideoUploadsTotal.Inc()
		metrics.VideoUploadSizeBytes.Observe(float64(rec.Size))
	}

	c.JSON(http.StatusCreated, gin.H{"videos": records})
}

// listVideos lists the library, optionally filtered by ?q=.
func (api *API) listVideos(c *gin.Context) {
	records, err := api.store.SearchByName(c.Request.Context(), c.Query("q"))
	if err != nil {
		api.respondError(c, err)
		return
	}
	if records == nil {
		records = []models.VideoRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"videos": records})
}

func (api *API) getVideo(c *gin.Context) {
	rec, err := api.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// getVideoContent streams the raw video blob.
func (api *API) getVideoContent(c *gin.Context) {
	rec, err := api.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.respondError(c, err)
		return
	}

	blob, size, err := api.store.GetVideoBlob(c.Request.Context(), rec.BlobKey)
	if err != nil {
		api.respondError(c, err)
		return
	}
	defer blob.Close()

	c.DataFromReader(http.StatusOK, size, rec.Mime, blob, nil)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (api *API) renameVideo(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := api.store.Rename(c.Request.Context(), c.Param("id"), req.Name); err != nil {
		api.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (api *API) deleteVideo(c *gin.Context) {
	if err := api.store.Remove(c.Request.Context(), c.Param("id")); err != nil {
		api.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// setSubtitle attaches a subtitle file to a video, replacing any existing
// one. The content is parsed before anything is written so a malformed file
// never displaces a working track.
func (api *API) setSubtitle(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no subtitle file provided"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	_, kind, err := subtitle.Parse(string(data), fh.Filename)
	if err != nil {
		metrics.SubtitleParsesTotal.WithLabelValues(parseKindLabel(fh.Filename), "failure").Inc()
		api.respondError(c, err)
		return
	}
	metrics.SubtitleParsesTotal.WithLabelValues(string(kind), "success").Inc()

	rec, err := api.store.SetSubtitle(c.Request.Context(), c.Param("id"), models.FileUpload{
		Name: fh.Filename,
		Size: int64(len(data)),
		Data: data,
	})
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// getSubtitle returns the subtitle record with its decoded entries. A track
// that no longer parses is returned without entries rather than blocking
// the player.
func (api *API) getSubtitle(c *gin.Context) {
	id := c.Param("id")

	rec, err := api.store.GetSubtitle(c.Request.Context(), id)
	if err != nil {
		api.respondError(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video has no subtitle"})
		return
	}

	text, err := api.store.GetSubtitleBlob(c.Request.Context(), rec.BlobKey)
	if err != nil {
		api.respondError(c, err)
		return
	}

	entries, err := subtitle.ParseAs(string(text), rec.Kind)
	if err != nil {
		api.log.WithVideoID(id).ErrorWithErr("stored subtitle failed to parse", err)
		metrics.SubtitleParsesTotal.WithLabelValues(string(rec.Kind), "failure").Inc()
		entries = nil
	}
	if entries == nil {
		entries = []subtitle.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{"subtitle": rec, "entries": entries})
}

func (api *API) removeSubtitle(c *gin.Context) {
	if err := api.store.RemoveSubtitle(c.Request.Context(), c.Param("id")); err != nil {
		api.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type positionRequest struct {
	Position float64 `json:"position"`
}

// savePosition records a playback checkpoint. Writes are coalesced by the
// checkpointer, so this returns before anything is persisted.
func (api *API) savePosition(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	api.checkpointer.SavePosition(c.Param("id"), req.Position)
	c.Status(http.StatusAccepted)
}

// play resolves a playback bundle: the requested video, or the most
// recently played one. 204 means the library is empty.
func (api *API) play(c *gin.Context) {
	bundle, err := api.resolver.Resolve(c.Request.Context(), c.Query("id"))
	if err != nil {
		api.respondError(c, err)
		return
	}
	if bundle == nil {
		c.Status(http.StatusNoContent)
		return
	}
	defer bundle.Video.Close()

	resp := gin.H{
		"video":       bundle.Record,
		"content_url": "/api/v1/videos/" + bundle.Record.ID + "/content",
	}
	if bundle.Subtitle != nil {
		entries, perr := subtitle.ParseAs(bundle.Subtitle.Text, bundle.Subtitle.Record.Kind)
		if perr != nil {
			api.log.WithVideoID(bundle.Record.ID).ErrorWithErr("stored subtitle failed to parse", perr)
			entries = nil
		}
		if entries == nil {
			entries = []subtitle.Entry{}
		}
		resp["subtitle"] = gin.H{
			"record":  bundle.Subtitle.Record,
			"entries": entries,
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (api *API) stats(c *gin.Context) {
	count, totalBytes, err := api.store.Stats(c.Request.Context())
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": count, "total_bytes": totalBytes})
}

// parseKindLabel names the subtitle format a parse attempt targeted, for
// metric labels on failures where no kind was resolved.
func parseKindLabel(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".srt":
		return "srt"
	case ".json":
		return "json"
	}
	return "unknown"
}

func parseMillis(v string) int64 {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms < 0 {
		return 0
	}
	return ms
}
