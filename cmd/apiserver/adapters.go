package main

import (
	"context"
	"net/http"

	"github.com/Sira-Clinica/backend/internal/bootstrap"
	"github.com/Sira-Clinica/backend/internal/interfaces/http/handlers"
)

// healthCheckers exposes the application's readiness probes to the health
// handler.  The pipeline is always ready once the process is serving.
func healthCheckers(app *bootstrap.App) []handlers.HealthChecker {
	out := []handlers.HealthChecker{
		handlers.CheckerFunc{Component: "pipeline", Fn: func(context.Context) error { return nil }},
	}
	for _, c := range app.Checkers {
		out = append(out, handlers.CheckerFunc{Component: c.Name, Fn: c.Check})
	}
	return out
}

func metricsHandler(app *bootstrap.App) http.Handler {
	if !app.Config.Metrics.Enabled {
		return nil
	}
	return app.Collector.Handler()
}
