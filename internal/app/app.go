// Package app wires the triage pipeline together and runs the HTTP server.
package app

import (
	"log"

	"github.com/joho/godotenv"

	"incidentbot/internal/access"
	"incidentbot/internal/areas"
	"incidentbot/internal/catalog"
	"incidentbot/internal/config"
	"incidentbot/internal/httpapi"
	"incidentbot/internal/incident"
	"incidentbot/internal/intent"
	"incidentbot/internal/llm"
	"incidentbot/internal/places"
	"incidentbot/internal/router"
	"incidentbot/internal/session"
	"incidentbot/internal/storage"
)

func Main() {
	_ = godotenv.Load()
	cfg := config.LoadConfig()
	log.Printf(
		"Config loaded. Hotel=%s Timezone=%s LLMProvider=%s DraftTTL=%s DedupeTTL=%s Freeform=%v Admins=%d",
		cfg.HotelName, cfg.Timezone, cfg.LLMProvider,
		cfg.DraftTTL(), cfg.DedupeTTL(), cfg.AllowFreeformPlaces,
		len(cfg.AdminConversations),
	)

	db, err := storage.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	cat, err := catalog.NewStore(catalog.FileLoader(cfg.CatalogPath))
	if err != nil {
		log.Fatalf("Failed to load place catalog from %s: %v", cfg.CatalogPath, err)
	}
	log.Printf("Place catalog loaded entries=%d", len(cat.Entries()))

	zones, err := catalog.LoadZones(cfg.ZonesPath)
	if err != nil {
		log.Fatalf("Failed to load ambiguous zones from %s: %v", cfg.ZonesPath, err)
	}
	log.Printf("Ambiguous zones loaded zones=%d", len(zones))

	lex, err := areas.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		log.Fatalf("Failed to load department lexicon from %s: %v", cfg.LexiconPath, err)
	}
	if err := areas.ValidateLexicon(lex); err != nil {
		log.Fatalf("Invalid department lexicon: %v", err)
	}
	log.Printf("Department lexicon loaded departments=%d", len(lex.Departments))

	sem := llm.New(llm.Options{
		Provider:        cfg.LLMProvider,
		Model:           cfg.LLMModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		Timeout:         cfg.LLMTimeout(),
	})
	if !cfg.SemanticEnabled() {
		log.Println("Semantic service disabled, running on local heuristics only")
	}

	drafts := session.NewStore(cfg.DraftTTL(), cfg.HistoryLimit, lex.FailurePhrases, nil)
	creator := incident.NewCreator(db)
	r := router.New(
		cfg, db, drafts,
		intent.NewClassifier(lex),
		places.NewResolver(cfg, cat, zones, sem),
		areas.NewDetector(cfg, lex, sem),
		access.NewGate(cfg, db),
		creator,
		nil,
	)

	startCatalogRefresh(cfg, cat)
	startWeeklyExport(cfg, db, r)

	engine := httpapi.New(r, cat, creator)
	log.Printf("Starting incident triage bot on %s", cfg.HTTPAddr)
	if err := engine.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}
