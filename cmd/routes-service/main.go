package main

import (
	"fmt"
	"os"

	"github.com/nurpe/greenops-routes/internal/auth"
	"github.com/nurpe/greenops-routes/internal/cache"
	"github.com/nurpe/greenops-routes/internal/config"
	"github.com/nurpe/greenops-routes/internal/db"
	httphandler "github.com/nurpe/greenops-routes/internal/http"
	"github.com/nurpe/greenops-routes/internal/http/middleware"
	"github.com/nurpe/greenops-routes/internal/logger"
	"github.com/nurpe/greenops-routes/internal/repository"
	"github.com/nurpe/greenops-routes/internal/service"
	"github.com/nurpe/greenops-routes/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	pointRepo := repository.NewPointRepository(database)
	routeRepo := repository.NewRouteRepository(database)
	collectorRepo := repository.NewCollectorRepository(database)
	checkInRepo := repository.NewCheckInRepository(database)

	hub := ws.NewHub(log)
	defer hub.Close()

	statsCache := cache.New[service.DashboardStats](cfg.Cache.StatsTTL)

	pointService := service.NewPointService(pointRepo, routeRepo, hub, statsCache, log)
	routeService := service.NewRouteService(pointRepo, routeRepo, collectorRepo, hub, statsCache, cfg.Planner.AvgSpeedKmh, log)
	checkInService := service.NewCheckInService(pointRepo, routeRepo, collectorRepo, checkInRepo, hub, statsCache, cfg.CheckIn.ToleranceM, log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	wsHandler := ws.NewHandler(hub, tokenParser, routeService, log)

	handler := httphandler.NewHandler(pointService, routeService, checkInService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, wsHandler.Serve, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting routes service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
