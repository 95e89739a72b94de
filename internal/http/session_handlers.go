package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetguard/internal/http/middleware"
	"fleetguard/internal/inspection"
	"fleetguard/internal/model"
	"fleetguard/internal/photo"
)

const photoFormField = "photo"

func (h *Handler) getChecklist(c *gin.Context) {
	locale := strings.ToLower(strings.TrimSpace(c.DefaultQuery("locale", "en")))
	cl := h.sessions.Manager().Checklist()
	items := make([]model.ItemView, 0, cl.Len())
	for _, item := range cl.Items {
		items = append(items, model.ItemView{
			ID:             item.ID,
			Icon:           item.Icon,
			Name:           item.Label(locale),
			Description:    item.Describe(locale),
			RequiredPhotos: item.RequiredPhotos,
			Photos:         []model.PhotoView{},
		})
	}
	c.JSON(http.StatusOK, successResponse(gin.H{
		"items": items,
		"rules": h.sessions.Manager().Rules(),
	}))
}

func (h *Handler) startSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		TruckID string `json:"truck_id" binding:"required"`
		Locale  string `json:"locale"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	sess, created, err := h.sessions.Start(c.Request.Context(), principal, req.TruckID, req.Locale)
	if err != nil {
		h.handleError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, successResponse(model.NewSessionView(sess)))
}

func (h *Handler) currentSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}
	sess, err := h.sessions.Current(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(model.NewSessionView(sess)))
}

func (h *Handler) getSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}
	sess, err := h.sessions.Get(c.Request.Context(), principal, c.Param("handle"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(model.NewSessionView(sess)))
}

func (h *Handler) setItemStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	sess, err := h.sessions.SetStatus(c.Request.Context(), principal, c.Param("handle"), req.Status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(model.NewSessionView(sess)))
}

func (h *Handler) setItemComment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	sess, err := h.sessions.SetComment(c.Request.Context(), principal, c.Param("handle"), req.Comment)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(model.NewSessionView(sess)))
}

func (h *Handler) uploadPhoto(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	data, err := h.readPhoto(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	p, err := photo.FromUpload(data, h.photos.MaxBytes)
	if err != nil {
		h.handleError(c, err)
		return
	}

	sess, err := h.sessions.AttachPhoto(c.Request.Context(), principal, c.Param("handle"), p)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(model.NewSessionView(sess)))
}

// readPhoto takes a multipart "photo" file, or a JSON body whose "data" is base64 (a data: URL prefix is allowed).
func (h *Handler) readPhoto(c *gin.Context) ([]byte, error) {
	limit := int64(h.photos.MaxBytes)
	if limit <= 0 {
		limit = 10 << 20
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile(photoFormField)
		if err != nil {
			return nil, fmt.Errorf("%w: form file %q: %v", inspection.ErrEmptyPhoto, photoFormField, err)
		}
		if header.Size > limit {
			return nil, fmt.Errorf("%w: %d bytes (max %d)", photo.ErrTooLarge, header.Size, limit)
		}
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, limit+1))
	}

	// base64 inflates by 4/3; leave room for the JSON wrapper.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit*4/3+4096)
	var req struct {
		Data string `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: request body exceeds %d bytes", photo.ErrTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: %v", inspection.ErrEmptyPhoto, err)
	}
	raw := req.Data
	if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i >= 0 {
		raw = raw[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload", inspection.ErrEmptyPhoto)
	}
	return data, nil
}

func (h *Handler) deletePhoto(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid photo index"))
		return
	}

	sess, err := h.sessions.RemovePhoto(c.Request.Context(), principal, c.Param("handle"), index)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(model.NewSessionView(sess)))
}

func (h *Handler) advance(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	sess, step, err := h.sessions.Advance(c.Request.Context(), principal, c.Param("handle"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{
		"step":    step,
		"session": model.NewSessionView(sess),
	}))
}

func (h *Handler) retreat(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	sess, err := h.sessions.Retreat(c.Request.Context(), principal, c.Param("handle"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(model.NewSessionView(sess)))
}

func (h *Handler) cancelSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	if err := h.sessions.Cancel(c.Request.Context(), principal, c.Param("handle")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"status": "cancelled"}))
}
