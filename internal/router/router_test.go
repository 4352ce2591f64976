package router

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"incidentbot/internal/access"
	"incidentbot/internal/areas"
	"incidentbot/internal/catalog"
	"incidentbot/internal/config"
	"incidentbot/internal/domain"
	"incidentbot/internal/incident"
	"incidentbot/internal/intent"
	"incidentbot/internal/llm"
	"incidentbot/internal/places"
	"incidentbot/internal/session"
	"incidentbot/internal/storage"
)

func testConfig() config.Config {
	return config.Config{
		PhraseDecisiveScore: 0.55,
		PhraseClusterMargin: 0.08,
		FuzzyAliasCutoff:    0.84,
		DirectNameCutoff:    0.90,
		DetectorScoreFloor:  0.75,
		DetectorMargin:      0.35,
		SemanticFloor:       0.60,
		DraftTTLMinutes:     45,
		DedupeTTLMinutes:    10,
		HistoryLimit:        12,
		AdminConversations:  []string{"conv-admin"},
	}
}

func testEntries() []domain.PlaceEntry {
	return []domain.PlaceEntry{
		{ID: "villa-1205", Label: "Villa 1205", RoomNumber: 1205, Active: true},
		{ID: "cocina-principal", Label: "Cocina Principal", Active: true},
		{ID: "cocina-nido", Label: "Cocina Nido", Active: true},
		{ID: "cocina-nidito", Label: "Cocina Nidito", Active: true},
		{ID: "alberca-familiar", Label: "Alberca Familiar", Aliases: []string{"alberca"}, Active: true},
	}
}

func testZones() []domain.AmbiguousZone {
	return []domain.AmbiguousZone{{
		Key:      "cocina",
		Triggers: []string{"cocina"},
		Prompt:   "Cual cocina?",
		Options: []domain.ZoneOption{
			{Code: "1", Label: "Cocina Principal", Canonical: "cocina-principal"},
			{Code: "2", Label: "Cocina Nido", Canonical: "cocina-nido"},
			{Code: "3", Label: "Cocina Nidito", Canonical: "cocina-nidito"},
		},
	}}
}

func testLexicon() *areas.Lexicon {
	return &areas.Lexicon{
		Departments: []areas.DeptLexicon{
			{
				Code:    "mantenimiento",
				Label:   "Mantenimiento",
				Aliases: []string{"mantenimiento", "manto"},
				Hints:   []string{"aire", "clima", "fuga", "foco", "estufa"},
				Devices: []string{"aire", "clima", "boiler", "estufa"},
			},
			{
				Code:    "ama_de_llaves",
				Label:   "Ama de Llaves",
				Aliases: []string{"ama de llaves", "limpieza"},
				Hints:   []string{"toallas", "sabanas", "sucio"},
			},
			{
				Code:    "sistemas",
				Label:   "Sistemas",
				Aliases: []string{"sistemas", "ti"},
				Hints:   []string{"wifi", "internet", "tele"},
				Devices: []string{"wifi", "router", "modem"},
			},
		},
		FailurePhrases: []string{"no sirve", "no funciona", "no enciende"},
	}
}

type harness struct {
	router  *Router
	creator *incident.Creator
	drafts  *session.Store
	db      *sql.DB
	nextMsg int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testConfig()

	db, err := storage.InitDB(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, g := range []storage.Grant{
		{ConversationID: "conv-staff", Role: "staff", MayCreate: true},
		{ConversationID: "conv-team", Role: "team", MayCreate: true, MayUpdate: true},
	} {
		if err := storage.UpsertGrant(db, g); err != nil {
			t.Fatalf("seed grant: %v", err)
		}
	}

	cat, err := catalog.NewStore(func() ([]domain.PlaceEntry, error) { return testEntries(), nil })
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	lex := testLexicon()

	drafts := session.NewStore(cfg.DraftTTL(), cfg.HistoryLimit, lex.FailurePhrases, nil)
	creator := incident.NewCreator(db)
	r := New(
		cfg, db, drafts,
		intent.NewClassifier(lex),
		places.NewResolver(cfg, cat, testZones(), llm.Disabled{}),
		areas.NewDetector(cfg, lex, llm.Disabled{}),
		access.NewGate(cfg, db),
		creator,
		nil,
	)
	return &harness{router: r, creator: creator, drafts: drafts, db: db}
}

func (h *harness) send(conv, text string) domain.Reply {
	h.nextMsg++
	return h.router.Handle(context.Background(), domain.InboundMessage{
		MessageID:      fmt.Sprintf("msg-%d", h.nextMsg),
		ConversationID: conv,
		SenderID:       "u-1",
		Text:           text,
	})
}

func TestFullDraftingFlowSingleTurn(t *testing.T) {
	h := newHarness(t)

	reply := h.send("conv-staff", "no enciende el aire de la villa 1205")
	if reply.Kind != domain.ReplyPreview {
		t.Fatalf("complete message must go straight to preview: %+v", reply)
	}
	if reply.Draft.Place == nil || reply.Draft.Place.ID != "villa-1205" {
		t.Fatalf("numeric place not resolved: %+v", reply.Draft)
	}
	if reply.Draft.Department != domain.DeptMaintenance {
		t.Fatalf("department not detected: %+v", reply.Draft)
	}

	reply = h.send("conv-staff", "si")
	if reply.Kind != domain.ReplyCreated || reply.Incident == nil || reply.Incident.Folio == "" {
		t.Fatalf("confirmation must create the incident: %+v", reply)
	}
	if _, active := h.drafts.Active("conv-staff"); active {
		t.Fatal("draft must be closed after creation")
	}
}

func TestZoneDisambiguationFlow(t *testing.T) {
	h := newHarness(t)

	reply := h.send("conv-staff", "se descompuso la estufa de la cocina")
	if reply.Kind != domain.ReplyDisambiguate {
		t.Fatalf("generic zone must prompt for disambiguation: %+v", reply)
	}
	if len(reply.ZoneOptions) != 3 {
		t.Fatalf("zone options missing: %+v", reply)
	}

	reply = h.send("conv-staff", "2")
	if reply.Kind != domain.ReplyAskArea {
		t.Fatalf("after place, the weak department signal must ask for area: %+v", reply)
	}
	if reply.Draft.Place == nil || reply.Draft.Place.ID != "cocina-nido" {
		t.Fatalf("zone reply not resolved: %+v", reply.Draft)
	}

	reply = h.send("conv-staff", "mantenimiento")
	if reply.Kind != domain.ReplyPreview {
		t.Fatalf("direct department answer must complete the draft: %+v", reply)
	}

	reply = h.send("conv-staff", "/confirmar")
	if reply.Kind != domain.ReplyCreated || reply.Incident.PlaceID != "cocina-nido" {
		t.Fatalf("confirm command must finalize: %+v", reply)
	}
}

func TestAuditRecordsDepartmentDecision(t *testing.T) {
	h := newHarness(t)

	h.send("conv-staff", "no enciende el aire de la villa 1205")

	lastAudit := func() (source string, confidence float64) {
		t.Helper()
		err := h.db.QueryRow(
			`SELECT dept_source, dept_confidence FROM triage_audit
			 WHERE conversation_id = 'conv-staff' ORDER BY id DESC LIMIT 1`,
		).Scan(&source, &confidence)
		if err != nil {
			t.Fatalf("audit row: %v", err)
		}
		return source, confidence
	}

	source, confidence := lastAudit()
	if source != "lexicon" || confidence <= 0 {
		t.Fatalf("audit must keep the detector tier: source=%q confidence=%f", source, confidence)
	}

	// The decision survives finalization even though the draft closes.
	if reply := h.send("conv-staff", "si"); reply.Kind != domain.ReplyCreated {
		t.Fatalf("confirmation: %+v", reply)
	}
	source, confidence = lastAudit()
	if source != "lexicon" || confidence <= 0 {
		t.Fatalf("finalized turn lost the decision: source=%q confidence=%f", source, confidence)
	}
}

func TestDedupeByMessageID(t *testing.T) {
	h := newHarness(t)

	msg := domain.InboundMessage{
		MessageID:      "dup-1",
		ConversationID: "conv-staff",
		SenderID:       "u-1",
		Text:           "hola",
	}
	first := h.router.Handle(context.Background(), msg)
	if first.Kind != domain.ReplySmalltalk {
		t.Fatalf("first delivery: %+v", first)
	}
	second := h.router.Handle(context.Background(), msg)
	if second.Kind != domain.ReplyDuplicate {
		t.Fatalf("redelivery must be absorbed: %+v", second)
	}
}

func TestUnauthorizedConversationGetsAccessFlow(t *testing.T) {
	h := newHarness(t)

	reply := h.send("conv-stranger", "se rompio el foco del pasillo")
	if reply.Kind != domain.ReplyAccessPending || reply.Reason != "request_filed" {
		t.Fatalf("unauthorized conversation must file an access request: %+v", reply)
	}
	// Never drafting for unauthorized conversations.
	if _, active := h.drafts.Active("conv-stranger"); active {
		t.Fatal("access flow must not open a draft")
	}

	reply = h.send("conv-stranger", "sigo esperando acceso")
	if reply.Kind != domain.ReplyAccessPending || reply.Reason != "already_pending" {
		t.Fatalf("repeat request must report pending: %+v", reply)
	}
}

func TestSmalltalkNeverOpensDraft(t *testing.T) {
	h := newHarness(t)

	reply := h.send("conv-staff", "hola")
	if reply.Kind != domain.ReplySmalltalk {
		t.Fatalf("greeting: %+v", reply)
	}
	if _, active := h.drafts.Active("conv-staff"); active {
		t.Fatal("smalltalk must not open a draft")
	}
}

func TestStatusQueryByFolio(t *testing.T) {
	h := newHarness(t)

	inc, err := h.creator.CreateFromDraft(&domain.Draft{
		ConversationID: "conv-staff",
		Description:    "fuga en el lavabo",
		Place:          &domain.PlaceEntry{ID: "villa-1205", Label: "Villa 1205"},
		Department:     domain.DeptMaintenance,
	}, "u-1")
	if err != nil {
		t.Fatalf("seed incident: %v", err)
	}

	reply := h.send("conv-staff", "como va "+inc.Folio)
	if reply.Kind != domain.ReplyStatus || reply.Incident == nil || reply.Incident.Folio != inc.Folio {
		t.Fatalf("status by folio: %+v", reply)
	}

	reply = h.send("conv-staff", "como va INC-1999-0001")
	if reply.Kind != domain.ReplyFallback || reply.Reason != "unknown_folio" {
		t.Fatalf("unknown folio: %+v", reply)
	}
}

func TestTeamUpdateRequiresCapability(t *testing.T) {
	h := newHarness(t)

	inc, err := h.creator.CreateFromDraft(&domain.Draft{
		ConversationID: "conv-staff",
		Description:    "no sirve el boiler",
		Place:          &domain.PlaceEntry{ID: "villa-1205", Label: "Villa 1205"},
		Department:     domain.DeptMaintenance,
	}, "u-1")
	if err != nil {
		t.Fatalf("seed incident: %v", err)
	}

	update := inc.Folio + " ya quedo arreglado el boiler del cuarto"
	reply := h.send("conv-staff", update)
	if reply.Kind != domain.ReplyDenied || reply.Reason != "may_not_update" {
		t.Fatalf("staff without may_update must be denied: %+v", reply)
	}

	reply = h.send("conv-team", update)
	if reply.Kind != domain.ReplyUpdated || reply.Incident.Status != domain.StatusResolved {
		t.Fatalf("team update must move the lifecycle: %+v", reply)
	}
}

func TestCancelCommand(t *testing.T) {
	h := newHarness(t)

	if reply := h.send("conv-staff", "/cancelar"); reply.Kind != domain.ReplyFallback || reply.Reason != "no_draft" {
		t.Fatalf("cancel without a draft: %+v", reply)
	}

	h.send("conv-staff", "gotea el aire de la villa 1205")
	reply := h.send("conv-staff", "/cancelar")
	if reply.Kind != domain.ReplyCancelled {
		t.Fatalf("cancel command: %+v", reply)
	}
	if _, active := h.drafts.Active("conv-staff"); active {
		t.Fatal("cancelled draft must be gone")
	}
}

func TestRouterNeverPanics(t *testing.T) {
	h := newHarness(t)

	// A nil incident service inside finalize would panic without the
	// recover guard; force the closest equivalent with a poisoned message.
	h.router.incidents = nil
	reply := h.send("conv-staff", "no sirve el aire de la villa 1205")
	reply = h.send("conv-staff", "si")
	if reply.Kind != domain.ReplyFallback || reply.Reason != "internal_error" {
		t.Fatalf("panic must degrade to fallback: %+v", reply)
	}
}
