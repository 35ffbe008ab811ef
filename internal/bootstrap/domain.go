// Package bootstrap assembles the engine from configuration.  The worker and
// dossierctl both start from a Runtime so they share one wiring.
package bootstrap

import (
	"time"

	"github.com/turtacn/dossier-engine/internal/config"
	"github.com/turtacn/dossier-engine/internal/domain/alerting"
	"github.com/turtacn/dossier-engine/internal/domain/lifecycle"
	"github.com/turtacn/dossier-engine/internal/domain/obligation"
)

// Domain holds the pure components built from configuration.
type Domain struct {
	Generator *obligation.Generator
	Engine    *lifecycle.Engine
	Evaluator *alerting.Evaluator
	Dedup     *alerting.Deduplicator
}

// NewDomain builds the catalog, the lifecycle engine and the alert
// evaluator from cfg.
func NewDomain(cfg *config.Config) Domain {
	catalog := obligation.DefaultCatalog(
		obligation.FromConfig(cfg.Catalog.ShiftDeclarationDates, cfg.Catalog.PriorYearLag)...,
	)
	inactivity := time.Duration(cfg.Scan.InactivityDays) * 24 * time.Hour
	return Domain{
		Generator: obligation.NewGenerator(catalog),
		Engine:    lifecycle.NewEngine(lifecycle.WithInactivityThreshold(inactivity)),
		Evaluator: alerting.NewEvaluator(alerting.Thresholds{
			ApproachingDays:       cfg.Scan.ApproachingDays,
			OverdueEscalationDays: cfg.Scan.OverdueEscalationDays,
			Inactivity:            inactivity,
		}),
		Dedup: alerting.NewDeduplicator(nil),
	}
}
