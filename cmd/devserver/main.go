package main

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"marketlive/internal/devserver"
	"marketlive/pkg/config"
	"marketlive/pkg/logger"
)

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Validator = &requestValidator{validate: validator.New()}

	store := devserver.NewStore()
	store.Seed()

	hub := devserver.NewHub()
	h := devserver.NewHandler(store, hub, cfg.JWTSecret)
	devserver.SetupRouter(e, h)

	logger.Info("dev server listening on :%s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
