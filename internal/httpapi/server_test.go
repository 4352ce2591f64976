package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incidentbot/internal/access"
	"incidentbot/internal/areas"
	"incidentbot/internal/catalog"
	"incidentbot/internal/config"
	"incidentbot/internal/domain"
	"incidentbot/internal/incident"
	"incidentbot/internal/intent"
	"incidentbot/internal/llm"
	"incidentbot/internal/places"
	"incidentbot/internal/router"
	"incidentbot/internal/session"
	"incidentbot/internal/storage"
)

func testEngine(t *testing.T) (*gin.Engine, *incident.Creator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
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
	}

	db, err := storage.InitDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.UpsertGrant(db, storage.Grant{
		ConversationID: "conv-staff", Role: "staff", MayCreate: true,
	}))

	cat, err := catalog.NewStore(func() ([]domain.PlaceEntry, error) {
		return []domain.PlaceEntry{
			{ID: "villa-1205", Label: "Villa 1205", RoomNumber: 1205, Active: true},
			{ID: "lobby", Label: "Lobby", Aliases: []string{"recepcion"}, Active: true},
		}, nil
	})
	require.NoError(t, err)

	lex := &areas.Lexicon{
		Departments: []areas.DeptLexicon{
			{Code: "mantenimiento", Label: "Mantenimiento", Aliases: []string{"mantenimiento"},
				Hints: []string{"aire", "fuga"}, Devices: []string{"aire", "boiler"}},
		},
		FailurePhrases: []string{"no sirve", "no funciona", "no enciende"},
	}

	drafts := session.NewStore(cfg.DraftTTL(), cfg.HistoryLimit, lex.FailurePhrases, nil)
	creator := incident.NewCreator(db)
	r := router.New(
		cfg, db, drafts,
		intent.NewClassifier(lex),
		places.NewResolver(cfg, cat, nil, llm.Disabled{}),
		areas.NewDetector(cfg, lex, llm.Disabled{}),
		access.NewGate(cfg, db),
		creator,
		nil,
	)
	return New(r, cat, creator), creator
}

func TestHealthz(t *testing.T) {
	e, _ := testEngine(t)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostMessage(t *testing.T) {
	e, _ := testEngine(t)

	body := `{"message_id":"m1","conversation_id":"conv-staff","sender_id":"u1","text":"no enciende el aire de la villa 1205"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	e.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.ReplyPreview), resp["kind"])
	draft, ok := resp["draft"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Villa 1205", draft["place"])
	assert.Equal(t, "mantenimiento", draft["department"])
}

func TestPostMessageRejectsBadPayload(t *testing.T) {
	e, _ := testEngine(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"text":"sin ids"}`))
	req.Header.Set("Content-Type", "application/json")
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetIncident(t *testing.T) {
	e, creator := testEngine(t)

	inc, err := creator.CreateFromDraft(&domain.Draft{
		ConversationID: "conv-staff",
		Description:    "fuga en el lavabo",
		Place:          &domain.PlaceEntry{ID: "villa-1205", Label: "Villa 1205"},
		Department:     domain.DeptMaintenance,
	}, "u1")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/incidents/"+inc.Folio, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, inc.Folio, resp["folio"])

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/incidents/INC-1999-0001", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCatalogPlaces(t *testing.T) {
	e, _ := testEngine(t)

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/places", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Places []struct {
			ID string `json:"id"`
		} `json:"places"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Places, 2)
}
