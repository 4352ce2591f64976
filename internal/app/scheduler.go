package app

import (
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"incidentbot/internal/catalog"
	"incidentbot/internal/config"
	"incidentbot/internal/export"
	"incidentbot/internal/router"
)

// startCatalogRefresh reloads the place catalog on a cron schedule so admin
// edits to the catalog file land without a restart. A failed reload keeps the
// previous snapshot.
func startCatalogRefresh(cfg config.Config, cat *catalog.Store) {
	schedule := strings.TrimSpace(cfg.CatalogRefreshCron)
	if schedule == "" {
		log.Println("Catalog refresh disabled (catalog_refresh_cron not set)")
		return
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid catalog_refresh_cron '%s': %v, refresh disabled", schedule, err)
		return
	}
	log.Printf("Catalog refresh scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			time.Sleep(sched.Next(now).Sub(now))

			if err := cat.Reload(); err != nil {
				log.Printf("Catalog refresh error: %v (keeping previous snapshot)", err)
				continue
			}
			log.Printf("Catalog refreshed entries=%d", len(cat.Entries()))
		}
	}()
}

// startWeeklyExport writes the previous week's incident spreadsheet and
// prunes the dedupe table on the configured schedule.
func startWeeklyExport(cfg config.Config, db *sql.DB, r *router.Router) {
	schedule := strings.TrimSpace(cfg.ExportCron)
	if schedule == "" {
		log.Println("Weekly export disabled (export_cron not set)")
		return
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid export_cron '%s': %v, export disabled", schedule, err)
		return
	}
	log.Printf("Weekly export scheduled (cron: %s) dir=%s", schedule, cfg.ExportOutputDir)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			time.Sleep(sched.Next(now).Sub(now))

			r.PruneDedupe()

			to := time.Now().In(cfg.Location).Truncate(24 * time.Hour)
			from := to.AddDate(0, 0, -7)
			path, err := export.WeeklyReport(db, cfg.ExportOutputDir, from, to)
			if err != nil {
				log.Printf("Weekly export error: %v", err)
				continue
			}
			log.Printf("Weekly export complete: %s", path)
		}
	}()
}
