// Package httpapi exposes the triage pipeline over HTTP: the transport
// gateway posts inbound messages here and renders the structured replies.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"incidentbot/internal/catalog"
	"incidentbot/internal/domain"
	"incidentbot/internal/incident"
	"incidentbot/internal/router"
)

type inboundPayload struct {
	MessageID      string `json:"message_id" binding:"required"`
	ConversationID string `json:"conversation_id" binding:"required"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
	QuotedText     string `json:"quoted_text"`
}

// IncidentLookup is the read side the API needs from the incident service.
type IncidentLookup interface {
	Lookup(folio string) (*domain.Incident, error)
}

// New builds the gin engine. The caller owns listening and shutdown.
func New(r *router.Router, cat *catalog.Store, incidents IncidentLookup) *gin.Engine {
	e := gin.Default()
	e.Use(cors.Default())

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := e.Group("/api/v1")
	{
		v1.POST("/messages", func(c *gin.Context) {
			var p inboundPayload
			if err := c.ShouldBindJSON(&p); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			reply := r.Handle(c.Request.Context(), domain.InboundMessage{
				MessageID:      p.MessageID,
				ConversationID: p.ConversationID,
				SenderID:       p.SenderID,
				Text:           p.Text,
				QuotedText:     p.QuotedText,
				ReceivedAt:     time.Now(),
			})
			c.JSON(http.StatusOK, renderReply(reply))
		})

		v1.GET("/incidents/:folio", func(c *gin.Context) {
			inc, err := incidents.Lookup(c.Param("folio"))
			if errors.Is(err, incident.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown folio"})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
				return
			}
			c.JSON(http.StatusOK, renderIncident(inc))
		})

		v1.GET("/catalog/places", func(c *gin.Context) {
			entries := cat.Entries()
			out := make([]gin.H, 0, len(entries))
			for _, p := range entries {
				out = append(out, gin.H{
					"id":          p.ID,
					"label":       p.Label,
					"room_number": p.RoomNumber,
					"zone":        p.Zone,
				})
			}
			c.JSON(http.StatusOK, gin.H{"places": out})
		})
	}

	return e
}

func renderReply(r domain.Reply) gin.H {
	out := gin.H{"kind": string(r.Kind)}
	if r.Reason != "" {
		out["reason"] = r.Reason
	}
	if r.Draft != nil {
		draft := gin.H{
			"description": r.Draft.Description,
			"mode":        string(r.Draft.Mode),
		}
		if r.Draft.Place != nil {
			draft["place"] = r.Draft.Place.Label
		}
		if r.Draft.Department != "" {
			draft["department"] = string(r.Draft.Department)
		}
		out["draft"] = draft
	}
	if r.Incident != nil {
		out["incident"] = renderIncident(r.Incident)
	}
	if len(r.Candidates) > 0 {
		candidates := make([]gin.H, 0, len(r.Candidates))
		for _, c := range r.Candidates {
			candidates = append(candidates, gin.H{"id": c.Entry.ID, "label": c.Entry.Label, "score": c.Score})
		}
		out["candidates"] = candidates
	}
	if len(r.Departments) > 0 {
		depts := make([]gin.H, 0, len(r.Departments))
		for _, d := range r.Departments {
			depts = append(depts, gin.H{"department": string(d.Department), "score": d.Score})
		}
		out["departments"] = depts
	}
	if r.ZonePrompt != "" {
		options := make([]gin.H, 0, len(r.ZoneOptions))
		for _, o := range r.ZoneOptions {
			options = append(options, gin.H{"code": o.Code, "label": o.Label})
		}
		out["zone_prompt"] = r.ZonePrompt
		out["zone_options"] = options
	}
	return out
}

func renderIncident(inc *domain.Incident) gin.H {
	return gin.H{
		"folio":       inc.Folio,
		"description": inc.Description,
		"place":       inc.PlaceLabel,
		"department":  string(inc.Department),
		"status":      string(inc.Status),
		"priority":    inc.Priority,
		"created_at":  inc.CreatedAt,
		"updated_at":  inc.UpdatedAt,
	}
}
