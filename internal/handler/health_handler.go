package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/docuveda/lab-service/pkg/database"
)

var startTime = time.Now()

// HealthCheck reports service and database health
func HealthCheck(c echo.Context) error {
	dbStatus := "ok"
	if pool, err := database.SQLPool(); err != nil {
		dbStatus = "uninitialized"
	} else if err := pool.PingContext(c.Request().Context()); err != nil {
		dbStatus = "unreachable"
	}

	status := http.StatusOK
	overall := "ok"
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	return c.JSON(status, echo.Map{
		"status":   overall,
		"uptime":   time.Since(startTime).String(),
		"database": dbStatus,
	})
}
