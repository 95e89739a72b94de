package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetguard/internal/http/middleware"
	"fleetguard/internal/model"
	"fleetguard/internal/repository"
)

func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(stats))
}

func (h *Handler) getMetrics(c *gin.Context) {
	weeks := 0
	if raw := strings.TrimSpace(c.Query("weeks")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 52 {
			c.JSON(http.StatusBadRequest, errorResponse("weeks must be between 1 and 52"))
			return
		}
		weeks = v
	}
	dashboard, err := h.dashboard.Metrics(c.Request.Context(), weeks)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(dashboard))
}

func (h *Handler) listWorkers(c *gin.Context) {
	var filter repository.WorkerFilter
	if role := strings.ToLower(strings.TrimSpace(c.Query("role"))); role != "" {
		r := model.WorkerRole(role)
		filter.Role = &r
	}
	if status := strings.ToLower(strings.TrimSpace(c.Query("status"))); status != "" {
		s := model.WorkerStatus(status)
		filter.Status = &s
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Limit, filter.Offset = parsePaging(c)

	workers, err := h.workers.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": workers}))
}

func (h *Handler) getWorker(c *gin.Context) {
	worker, err := h.workers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(worker))
}

func (h *Handler) createWorker(c *gin.Context) {
	var req struct {
		ID       string  `json:"id" binding:"required"`
		Name     string  `json:"name" binding:"required"`
		Email    *string `json:"email"`
		Password string  `json:"password" binding:"required"`
		Role     string  `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	worker, err := h.workers.Create(c.Request.Context(), model.CreateWorkerInput{
		ID:       req.ID,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.WorkerRole(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(worker))
}

func (h *Handler) updateWorker(c *gin.Context) {
	var req struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Password *string `json:"password"`
		Role     *string `json:"role"`
		Status   *string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	input := model.UpdateWorkerInput{Name: req.Name, Email: req.Email, Password: req.Password}
	if req.Role != nil {
		role := model.WorkerRole(strings.ToLower(strings.TrimSpace(*req.Role)))
		input.Role = &role
	}
	if req.Status != nil {
		status := model.WorkerStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		input.Status = &status
	}

	worker, err := h.workers.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(worker))
}

func (h *Handler) deleteWorker(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}
	if err := h.workers.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"status": "deleted"}))
}

func (h *Handler) listVehicles(c *gin.Context) {
	var filter repository.VehicleFilter
	for _, s := range splitCSV(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, model.VehicleStatus(strings.ToLower(s)))
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Limit, filter.Offset = parsePaging(c)

	vehicles, err := h.vehicles.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": vehicles}))
}

func (h *Handler) getVehicle(c *gin.Context) {
	vehicle, err := h.vehicles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(vehicle))
}

func (h *Handler) createVehicle(c *gin.Context) {
	var req struct {
		ID     string `json:"id" binding:"required"`
		Model  string `json:"model" binding:"required"`
		Year   int    `json:"year" binding:"required"`
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	vehicle, err := h.vehicles.Create(c.Request.Context(), model.CreateVehicleInput{
		ID:     req.ID,
		Model:  req.Model,
		Year:   req.Year,
		Status: model.VehicleStatus(strings.ToLower(strings.TrimSpace(req.Status))),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(vehicle))
}

func (h *Handler) updateVehicle(c *gin.Context) {
	var req struct {
		Model  *string `json:"model"`
		Year   *int    `json:"year"`
		Status *string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	input := model.UpdateVehicleInput{Model: req.Model, Year: req.Year}
	if req.Status != nil {
		status := model.VehicleStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		input.Status = &status
	}

	vehicle, err := h.vehicles.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(vehicle))
}
