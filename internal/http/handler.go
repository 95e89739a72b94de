package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"fleetguard/internal/config"
	"fleetguard/internal/events"
	"fleetguard/internal/inspection"
	"fleetguard/internal/model"
	"fleetguard/internal/photo"
	"fleetguard/internal/service"
	"fleetguard/internal/session"
)

type Services struct {
	Auth        *service.AuthService
	Sessions    *service.SessionService
	Inspections *service.InspectionService
	Workers     *service.WorkerService
	Vehicles    *service.VehicleService
	Dashboard   *service.DashboardService
}

type Handler struct {
	auth        *service.AuthService
	sessions    *service.SessionService
	inspections *service.InspectionService
	workers     *service.WorkerService
	vehicles    *service.VehicleService
	dashboard   *service.DashboardService
	hub         *events.Hub
	upgrader    websocket.Upgrader
	photos      config.PhotoConfig
	health      func(ctx context.Context) error
	log         zerolog.Logger
}

func NewHandler(
	services Services,
	hub *events.Hub,
	photos config.PhotoConfig,
	allowedOrigins []string,
	health func(ctx context.Context) error,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		auth:        services.Auth,
		sessions:    services.Sessions,
		inspections: services.Inspections,
		workers:     services.Workers,
		vehicles:    services.Vehicles,
		dashboard:   services.Dashboard,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		photos: photos,
		health: health,
		log:    log,
	}
}

// originChecker accepts requests without an Origin header (non-browser clients). Browser origins must
// be on the allow-list, or share the request host when the list is empty.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) > 0 {
			origin = strings.TrimRight(origin, "/")
			for _, o := range allowed {
				if strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

func (h *Handler) healthz(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.log.Warn().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var incomplete *inspection.IncompleteError
	switch {
	case errors.As(err, &incomplete):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"item_id": incomplete.ItemID,
			"missing": incomplete.Missing,
		})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, errorResponse(err.Error()))
	case errors.Is(err, service.ErrAccountInactive):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, inspection.ErrInvalidStatus),
		errors.Is(err, inspection.ErrInvalidVehicleID),
		errors.Is(err, inspection.ErrPhotoIndex),
		errors.Is(err, inspection.ErrEmptyPhoto):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, inspection.ErrPhotoLimit),
		errors.Is(err, inspection.ErrPhotosNotRequired),
		errors.Is(err, inspection.ErrVehicleInactive):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
	case errors.Is(err, photo.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, errorResponse(err.Error()))
	case errors.Is(err, photo.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, inspection.ErrVehicleNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, inspection.ErrAtFirstItem),
		errors.Is(err, inspection.ErrSessionCompleted),
		errors.Is(err, inspection.ErrSessionCancelled):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, inspection.ErrPersistence):
		h.log.Error().Err(err).Msg("inspection persistence failed")
		c.JSON(http.StatusBadGateway, errorResponse("inspection could not be saved, advance again to retry"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func parseInspectionQuery(c *gin.Context) (model.InspectionFilter, error) {
	var filter model.InspectionFilter

	filter.WorkerID = strings.TrimSpace(c.Query("worker_id"))
	if truckID := strings.TrimSpace(c.Query("truck_id")); truckID != "" {
		filter.TruckID = strings.ToUpper(truckID)
	}
	if dateFrom := strings.TrimSpace(c.Query("date_from")); dateFrom != "" {
		ts, err := parseTime(dateFrom)
		if err != nil {
			return filter, err
		}
		filter.From = &ts
	}
	if dateTo := strings.TrimSpace(c.Query("date_to")); dateTo != "" {
		ts, err := parseTime(dateTo)
		if err != nil {
			return filter, err
		}
		filter.To = &ts
	}
	filter.Limit, filter.Offset = parsePaging(c)
	filter.Search = strings.TrimSpace(c.Query("search"))

	return filter, nil
}

// parseTime accepts RFC 3339 or a bare date.
func parseTime(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.DateOnly, value)
}

func parsePaging(c *gin.Context) (limit, offset int) {
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("limit"))); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("offset"))); err == nil {
		offset = v
	}
	return limit, offset
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

type responseEnvelope struct {
	Data interface{} `json:"data"`
}

func successResponse(data interface{}) responseEnvelope {
	return responseEnvelope{Data: data}
}

func errorResponse(msg string) gin.H {
	return gin.H{"error": msg}
}
