package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier"`
		WorkerID   string `json:"worker_id"`
		Email      string `json:"email"`
		Password   string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.WorkerID
	}
	if identifier == "" {
		identifier = req.Email
	}

	token, err := h.auth.Login(c.Request.Context(), c.ClientIP(), identifier, req.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(token))
}

func (h *Handler) demoLogin(c *gin.Context) {
	token, err := h.auth.DemoLogin(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(token))
}
