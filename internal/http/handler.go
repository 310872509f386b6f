package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/greenops-routes/internal/geo"
	"github.com/nurpe/greenops-routes/internal/http/middleware"
	"github.com/nurpe/greenops-routes/internal/model"
	"github.com/nurpe/greenops-routes/internal/service"
	"github.com/nurpe/greenops-routes/internal/state"
)

type Handler struct {
	points   *service.PointService
	routes   *service.RouteService
	checkIns *service.CheckInService
	log      zerolog.Logger
}

func NewHandler(points *service.PointService, routes *service.RouteService, checkIns *service.CheckInService, log zerolog.Logger) *Handler {
	return &Handler{points: points, routes: routes, checkIns: checkIns, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc, wsHandler gin.HandlerFunc) {
	router.GET("/ws", wsHandler)

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/points", h.createPoint)
	protected.GET("/points/pending", h.listPendingPoints)
	protected.GET("/points/nearby", h.listNearbyPoints)
	protected.GET("/points/mine", h.listOwnPoints)
	protected.GET("/points/:id", h.getPoint)
	protected.POST("/points/:id/cancel", h.cancelPoint)

	protected.POST("/routes", h.createRoute)
	protected.POST("/routes/bulk-plan", h.bulkPlan)
	protected.GET("/routes", h.listRoutesByDate)
	protected.GET("/routes/mine", h.listOwnRoutes)
	protected.GET("/routes/:id", h.getRoute)
	protected.POST("/routes/:id/start", h.startRoute)
	protected.POST("/routes/:id/complete", h.completeRoute)
	protected.POST("/routes/:id/cancel", h.cancelRoute)
	protected.POST("/routes/:id/points", h.addRoutePoint)
	protected.DELETE("/routes/:id/points/:pointID", h.removeRoutePoint)
	protected.POST("/routes/:id/check-ins", h.checkIn)
	protected.GET("/routes/:id/check-ins", h.listCheckIns)
	protected.POST("/routes/:id/breaks/start", h.startBreak)
	protected.POST("/routes/:id/breaks/end", h.endBreak)
	protected.POST("/routes/:id/incidents", h.reportIncident)

	protected.POST("/collectors/location", h.updateLocation)
	protected.GET("/stats/dashboard", h.dashboardStats)
}

type createPointRequest struct {
	Street       string  `json:"street" binding:"required"`
	Number       string  `json:"number"`
	Neighborhood string  `json:"neighborhood" binding:"required"`
	Reference    *string `json:"reference"`
	Lng          float64 `json:"lng"`
	Lat          float64 `json:"lat"`
	Unit         string  `json:"unit" binding:"required"`
	Quantity     float64 `json:"quantity" binding:"required"`
}

func (h *Handler) createPoint(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	point, err := h.points.Create(c.Request.Context(), service.CreatePointInput{
		Street:       req.Street,
		Number:       req.Number,
		Neighborhood: req.Neighborhood,
		Reference:    req.Reference,
		Location:     geo.Coordinates{Lng: req.Lng, Lat: req.Lat},
		Unit:         model.QuantityUnit(strings.ToUpper(strings.TrimSpace(req.Unit))),
		Quantity:     req.Quantity,
		Principal:    principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, point)
}

func (h *Handler) getPoint(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid point id"})
		return
	}

	point, err := h.points.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, point)
}

type cancelPointRequest struct {
	Note *string `json:"note"`
}

func (h *Handler) cancelPoint(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid point id"})
		return
	}

	var req cancelPointRequest
	_ = c.ShouldBindJSON(&req)

	point, err := h.points.Cancel(c.Request.Context(), principal, id, req.Note)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, point)
}

func (h *Handler) listPendingPoints(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	points, err := h.points.ListPending(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *Handler) listNearbyPoints(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	radius, errRadius := strconv.ParseFloat(c.DefaultQuery("radius_m", "1000"), 64)
	if errLng != nil || errLat != nil || errRadius != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lng, lat and radius_m must be numbers"})
		return
	}

	points, err := h.points.ListNearby(c.Request.Context(), principal, geo.Coordinates{Lng: lng, Lat: lat}, radius)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *Handler) listOwnPoints(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	points, err := h.points.ListOwn(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

type createRouteRequest struct {
	CollectorID   string   `json:"collector_id" binding:"required"`
	ScheduledDate string   `json:"scheduled_date" binding:"required"`
	WindowStart   string   `json:"window_start"`
	WindowEnd     string   `json:"window_end"`
	PointIDs      []string `json:"point_ids" binding:"required"`
	StartLng      *float64 `json:"start_lng"`
	StartLat      *float64 `json:"start_lat"`
}

func (h *Handler) createRoute(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	collectorID, err := uuid.Parse(strings.TrimSpace(req.CollectorID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid collector_id"})
		return
	}
	date, err := parseDate(req.ScheduledDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_date"})
		return
	}
	pointIDs, err := parseUUIDs(req.PointIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid point_ids"})
		return
	}

	input := service.CreateRouteInput{
		CollectorID:   collectorID,
		ScheduledDate: date,
		WindowStart:   req.WindowStart,
		WindowEnd:     req.WindowEnd,
		PointIDs:      pointIDs,
		Principal:     principal,
	}
	if req.StartLng != nil && req.StartLat != nil {
		input.Start = &geo.Coordinates{Lng: *req.StartLng, Lat: *req.StartLat}
	}

	route, err := h.routes.Create(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, route)
}

type bulkPlanRequest struct {
	Strategy          string   `json:"strategy" binding:"required"`
	CollectorIDs      []string `json:"collector_ids" binding:"required"`
	MaxPointsPerRoute int      `json:"max_points_per_route"`
	ScheduledDate     string   `json:"scheduled_date" binding:"required"`
	WindowStart       string   `json:"window_start"`
	WindowEnd         string   `json:"window_end"`
}

func (h *Handler) bulkPlan(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req bulkPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	collectorIDs, err := parseUUIDs(req.CollectorIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid collector_ids"})
		return
	}
	date, err := parseDate(req.ScheduledDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_date"})
		return
	}

	routes, err := h.routes.BulkPlan(c.Request.Context(), service.BulkPlanInput{
		Strategy:          service.PlanStrategy(strings.ToLower(strings.TrimSpace(req.Strategy))),
		CollectorIDs:      collectorIDs,
		MaxPointsPerRoute: req.MaxPointsPerRoute,
		ScheduledDate:     date,
		WindowStart:       req.WindowStart,
		WindowEnd:         req.WindowEnd,
		Principal:         principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, routes)
}

func (h *Handler) getRoute(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	route, err := h.routes.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *Handler) listOwnRoutes(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	routes, err := h.routes.ListOwn(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, routes)
}

func (h *Handler) listRoutesByDate(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	date, err := parseDate(c.DefaultQuery("date", time.Now().UTC().Format("2006-01-02")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}
	routes, err := h.routes.ListByDate(c.Request.Context(), principal, date)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, routes)
}

type locationRequest struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

func (h *Handler) startRoute(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route, err := h.routes.Start(c.Request.Context(), principal, id, geo.Coordinates{Lng: req.Lng, Lat: req.Lat})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *Handler) completeRoute(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route, err := h.routes.Complete(c.Request.Context(), principal, id, geo.Coordinates{Lng: req.Lng, Lat: req.Lat})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *Handler) cancelRoute(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	route, err := h.routes.Cancel(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

type addRoutePointRequest struct {
	PointID string `json:"point_id" binding:"required"`
}

func (h *Handler) addRoutePoint(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	var req addRoutePointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pointID, err := uuid.Parse(strings.TrimSpace(req.PointID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid point_id"})
		return
	}

	route, err := h.routes.AddPoint(c.Request.Context(), principal, routeID, pointID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *Handler) removeRoutePoint(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}
	pointID, err := uuid.Parse(c.Param("pointID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid point id"})
		return
	}

	route, err := h.routes.RemovePoint(c.Request.Context(), principal, routeID, pointID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

type checkInRequest struct {
	PointID  string  `json:"point_id" binding:"required"`
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
	Quantity float64 `json:"quantity" binding:"required"`
	Notes    *string `json:"notes"`
}

func (h *Handler) checkIn(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pointID, err := uuid.Parse(strings.TrimSpace(req.PointID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid point_id"})
		return
	}

	result, err := h.checkIns.Process(c.Request.Context(), service.CheckInInput{
		RouteID:   routeID,
		PointID:   pointID,
		Location:  geo.Coordinates{Lng: req.Lng, Lat: req.Lat},
		Quantity:  req.Quantity,
		Notes:     req.Notes,
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) listCheckIns(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	checkIns, err := h.checkIns.ListByRoute(c.Request.Context(), principal, routeID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkIns)
}

func (h *Handler) startBreak(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	if err := h.routes.StartBreak(c.Request.Context(), principal, routeID); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) endBreak(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	if err := h.routes.EndBreak(c.Request.Context(), principal, routeID); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type incidentRequest struct {
	Severity    string   `json:"severity" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Lng         *float64 `json:"lng"`
	Lat         *float64 `json:"lat"`
}

func (h *Handler) reportIncident(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	var req incidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.IncidentInput{
		RouteID:     routeID,
		Severity:    model.IncidentSeverity(strings.ToUpper(strings.TrimSpace(req.Severity))),
		Description: req.Description,
		Principal:   principal,
	}
	if req.Lng != nil && req.Lat != nil {
		input.Location = &geo.Coordinates{Lng: *req.Lng, Lat: *req.Lat}
	}

	incident, err := h.routes.ReportIncident(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, incident)
}

func (h *Handler) updateLocation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update, err := h.routes.UpdateLocation(c.Request.Context(), principal, geo.Coordinates{Lng: req.Lng, Lat: req.Lat})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, update)
}

func (h *Handler) dashboardStats(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	stats, err := h.points.Stats(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var unresolved *state.UnresolvedPointsError
	switch {
	case errors.As(err, &unresolved):
		c.JSON(http.StatusConflict, gin.H{
			"error":             "route has unresolved points",
			"unresolved_points": unresolved.PointIDs,
		})
	case errors.Is(err, service.ErrAlreadyCollected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, state.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(strings.TrimSpace(r))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
