// Package session owns the per-conversation incident drafts: mutation
// primitives, the completeness predicates, and lazy TTL expiry. The store
// never schedules background sweeps; staleness is enforced on access.
package session

import (
	"sync"
	"time"

	"incidentbot/internal/domain"
	"incidentbot/internal/textnorm"
)

// A description shorter than this is only usable when it carries failure
// phrasing ("no sirve").
const minUsableDescriptionLen = 12

type Store struct {
	ttl            time.Duration
	historyLimit   int
	failurePhrases []string
	now            func() time.Time

	// locks orders turns within one conversation; mu guards the map itself,
	// since distinct conversations run concurrently.
	locks  *keyedMutex
	mu     sync.Mutex
	drafts map[string]*domain.Draft
}

// NewStore builds a draft store. The clock is injected so expiry is
// deterministic under test.
func NewStore(ttl time.Duration, historyLimit int, failurePhrases []string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		ttl:            ttl,
		historyLimit:   historyLimit,
		failurePhrases: failurePhrases,
		now:            now,
		locks:          newKeyedMutex(),
		drafts:         make(map[string]*domain.Draft),
	}
}

// LockConversation serializes turns for one conversation id. Distinct ids
// never contend. The caller must invoke the returned unlock.
func (s *Store) LockConversation(id string) func() {
	return s.locks.lock(id)
}

// Active returns the live draft for a conversation, enforcing TTL lazily: a
// draft untouched past the window is cleared and reported absent. Callers
// must hold the conversation lock.
func (s *Store) Active(id string) (*domain.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, false
	}
	if d.Closed || s.now().Sub(d.UpdatedAt) > s.ttl {
		delete(s.drafts, id)
		return nil, false
	}
	return d, true
}

// Create starts a fresh draft, replacing any stale leftover for the id.
func (s *Store) Create(id string) *domain.Draft {
	now := s.now()
	d := &domain.Draft{
		ConversationID: id,
		Mode:           domain.ModeNeutral,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.mu.Lock()
	s.drafts[id] = d
	s.mu.Unlock()
	return d
}

func (s *Store) touch(id string, mutate func(*domain.Draft)) {
	s.mu.Lock()
	d, ok := s.drafts[id]
	s.mu.Unlock()
	if !ok || d.Closed {
		return
	}
	mutate(d)
	d.UpdatedAt = s.now()
}

func (s *Store) SetDescription(id, description, interpretation string) {
	s.touch(id, func(d *domain.Draft) {
		d.Description = description
		d.Interpretation = interpretation
	})
}

func (s *Store) SetPlace(id string, place *domain.PlaceEntry) {
	s.touch(id, func(d *domain.Draft) { d.Place = place })
}

// SetDepartment records the decision together with the tier that made it, so
// the audit trail can tell alias answers from semantic ones.
func (s *Store) SetDepartment(id string, dept domain.Department, source string, confidence float64) {
	s.touch(id, func(d *domain.Draft) {
		d.Department = dept
		d.DeptSource = source
		d.DeptConfidence = confidence
	})
}

func (s *Store) SetCandidateDepts(id string, depts []domain.Department) {
	s.touch(id, func(d *domain.Draft) { d.CandidateDepts = depts })
}

func (s *Store) AddCandidateDept(id string, dept domain.Department) {
	s.touch(id, func(d *domain.Draft) {
		for _, c := range d.CandidateDepts {
			if c == dept {
				return
			}
		}
		d.CandidateDepts = append(d.CandidateDepts, dept)
	})
}

func (s *Store) RemoveCandidateDept(id string, dept domain.Department) {
	s.touch(id, func(d *domain.Draft) {
		kept := d.CandidateDepts[:0]
		for _, c := range d.CandidateDepts {
			if c != dept {
				kept = append(kept, c)
			}
		}
		d.CandidateDepts = kept
	})
}

func (s *Store) SetMode(id string, mode domain.Mode) {
	s.touch(id, func(d *domain.Draft) { d.Mode = mode })
}

func (s *Store) SetPendingZone(id, zoneKey string) {
	s.touch(id, func(d *domain.Draft) { d.PendingZone = zoneKey })
}

func (s *Store) MarkAskedForPlace(id string) {
	s.touch(id, func(d *domain.Draft) { d.AskedForPlace = true })
}

func (s *Store) MarkAskedForArea(id string) {
	s.touch(id, func(d *domain.Draft) { d.AskedForArea = true })
}

func (s *Store) SetPriority(id, priority string) {
	s.touch(id, func(d *domain.Draft) { d.Priority = priority })
}

func (s *Store) SetSeverity(id, severity string) {
	s.touch(id, func(d *domain.Draft) { d.Severity = severity })
}

func (s *Store) SetDueDate(id, due string) {
	s.touch(id, func(d *domain.Draft) { d.DueDate = due })
}

func (s *Store) AddTag(id, tag string) {
	s.touch(id, func(d *domain.Draft) {
		for _, t := range d.Tags {
			if t == tag {
				return
			}
		}
		d.Tags = append(d.Tags, tag)
	})
}

func (s *Store) AddNote(id, note string) {
	s.touch(id, func(d *domain.Draft) { d.Notes = append(d.Notes, note) })
}

// AppendHistory remembers one turn, keeping at most the configured window.
func (s *Store) AppendHistory(id, role, text string) {
	s.touch(id, func(d *domain.Draft) {
		d.History = append(d.History, domain.HistoryEntry{Role: role, Text: text, At: s.now()})
		if s.historyLimit > 0 && len(d.History) > s.historyLimit {
			d.History = d.History[len(d.History)-s.historyLimit:]
		}
	})
}

// Close ends the draft (submit or cancel) and drops it from the store.
func (s *Store) Close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[id]; ok {
		d.Closed = true
		delete(s.drafts, id)
	}
}

// HasUsableDescription reports whether the draft's description can anchor an
// incident: failure-indicator phrasing counts at any length, anything else
// needs some substance.
func (s *Store) HasUsableDescription(d *domain.Draft) bool {
	if d == nil {
		return false
	}
	text := textnorm.Normalize(d.Description)
	if text == "" {
		return false
	}
	for _, phrase := range s.failurePhrases {
		if textnorm.ContainsWord(text, phrase) {
			return true
		}
	}
	return len(text) >= minUsableDescriptionLen
}

// ReadyForPreview holds only when description, place and department are all
// set, for any mutation order.
func (s *Store) ReadyForPreview(d *domain.Draft) bool {
	return d != nil &&
		d.Description != "" &&
		d.Place != nil &&
		d.Department != ""
}
