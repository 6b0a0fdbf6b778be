package memory

import (
	"maps"
	"slices"
	"sync"

	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/draft"
	"github.com/riskibarqy/castaway-league/internal/domain/episode"
	"github.com/riskibarqy/castaway-league/internal/domain/jobscheduler"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
)

// Store holds every table behind one lock. Units of work run against a
// copy of the tables and swap it in on success, so a failed unit leaves no
// trace and concurrent units are fully serialized.
type Store struct {
	mu     sync.RWMutex
	tables *tables
}

type stagedKey struct {
	castawayID string
	ruleID     string
}

type memberKey struct {
	leagueID string
	userID   string
}

type tables struct {
	leagues    map[string]league.League
	members    map[memberKey]league.Member
	castaways  map[string]castaway.Castaway
	roster     map[string][]draft.RosterEntry
	receipts   map[draft.IdempotencyKey]draft.Receipt
	episodes   map[string]episode.Episode
	sessions   map[string]scoring.Session
	staged     map[string]map[stagedKey]scoring.StagedScore
	rules      map[string]scoring.Rule
	points     map[string][]scoring.CastawayPoints
	picks      map[string]scoring.WeeklyPick
	audit      []audit.Entry
	outbox     map[string]notification.Message
	executions []jobscheduler.Execution
}

func NewStore() *Store {
	return &Store{tables: newTables()}
}

func newTables() *tables {
	return &tables{
		leagues:   make(map[string]league.League),
		members:   make(map[memberKey]league.Member),
		castaways: make(map[string]castaway.Castaway),
		roster:    make(map[string][]draft.RosterEntry),
		receipts:  make(map[draft.IdempotencyKey]draft.Receipt),
		episodes:  make(map[string]episode.Episode),
		sessions:  make(map[string]scoring.Session),
		staged:    make(map[string]map[stagedKey]scoring.StagedScore),
		rules:     make(map[string]scoring.Rule),
		points:    make(map[string][]scoring.CastawayPoints),
		picks:     make(map[string]scoring.WeeklyPick),
		outbox:    make(map[string]notification.Message),
	}
}

func (t *tables) clone() *tables {
	out := &tables{
		leagues:    make(map[string]league.League, len(t.leagues)),
		members:    maps.Clone(t.members),
		castaways:  maps.Clone(t.castaways),
		roster:     make(map[string][]draft.RosterEntry, len(t.roster)),
		receipts:   make(map[draft.IdempotencyKey]draft.Receipt, len(t.receipts)),
		episodes:   make(map[string]episode.Episode, len(t.episodes)),
		sessions:   maps.Clone(t.sessions),
		staged:     make(map[string]map[stagedKey]scoring.StagedScore, len(t.staged)),
		rules:      maps.Clone(t.rules),
		points:     make(map[string][]scoring.CastawayPoints, len(t.points)),
		picks:      make(map[string]scoring.WeeklyPick, len(t.picks)),
		audit:      slices.Clone(t.audit),
		outbox:     make(map[string]notification.Message, len(t.outbox)),
		executions: slices.Clone(t.executions),
	}
	for k, v := range t.leagues {
		out.leagues[k] = cloneLeague(v)
	}
	for k, v := range t.roster {
		out.roster[k] = slices.Clone(v)
	}
	for k, v := range t.receipts {
		out.receipts[k] = cloneReceipt(v)
	}
	for k, v := range t.episodes {
		out.episodes[k] = cloneEpisode(v)
	}
	for k, v := range t.staged {
		out.staged[k] = maps.Clone(v)
	}
	for k, v := range t.points {
		out.points[k] = slices.Clone(v)
	}
	for k, v := range t.picks {
		out.picks[k] = clonePick(v)
	}
	for k, v := range t.outbox {
		out.outbox[k] = cloneMessage(v)
	}
	return out
}

// update runs fn against a copy of the tables and commits it when fn succeeds.
func (s *Store) update(fn func(t *tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.tables.clone()
	if err := fn(working); err != nil {
		return err
	}
	s.tables = working
	return nil
}

func (s *Store) view(fn func(t *tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.tables)
}

func (s *Store) SeedLeague(item league.League, members ...league.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables.leagues[item.ID] = cloneLeague(item)
	for _, m := range members {
		m.LeagueID = item.ID
		s.tables.members[memberKey{leagueID: item.ID, userID: m.UserID}] = m
	}
}

func (s *Store) SeedCastaways(items ...castaway.Castaway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.tables.castaways[item.ID] = item
	}
}

func (s *Store) SeedEpisodes(items ...episode.Episode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.tables.episodes[item.ID] = cloneEpisode(item)
	}
}

func (s *Store) SeedRules(items ...scoring.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.tables.rules[item.ID] = item
	}
}

func (s *Store) SeedWeeklyPicks(items ...scoring.WeeklyPick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.tables.picks[item.ID] = clonePick(item)
	}
}

func (s *Store) SeedRosterEntries(items ...draft.RosterEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.tables.roster[item.LeagueID] = append(s.tables.roster[item.LeagueID], item)
	}
}

func (s *Store) SeedNotifications(items ...notification.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.tables.outbox[item.ID] = cloneMessage(item)
	}
}

func (t *tables) leagueMembers(leagueID string) []league.Member {
	out := make([]league.Member, 0)
	for key, m := range t.members {
		if key.leagueID == leagueID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b league.Member) int {
		if a.DraftPosition != b.DraftPosition {
			return a.DraftPosition - b.DraftPosition
		}
		if a.UserID < b.UserID {
			return -1
		}
		if a.UserID > b.UserID {
			return 1
		}
		return 0
	})
	return out
}

func cloneLeague(l league.League) league.League {
	copied := l
	copied.DraftOrder = slices.Clone(l.DraftOrder)
	if l.DraftDeadlineAt != nil {
		deadline := *l.DraftDeadlineAt
		copied.DraftDeadlineAt = &deadline
	}
	return copied
}

func cloneEpisode(e episode.Episode) episode.Episode {
	copied := e
	if e.ScoredAt != nil {
		at := *e.ScoredAt
		copied.ScoredAt = &at
	}
	return copied
}

func cloneReceipt(r draft.Receipt) draft.Receipt {
	copied := r
	if r.NextPicker != nil {
		next := *r.NextPicker
		copied.NextPicker = &next
	}
	return copied
}

func clonePick(p scoring.WeeklyPick) scoring.WeeklyPick {
	copied := p
	if p.PointsEarned != nil {
		points := *p.PointsEarned
		copied.PointsEarned = &points
	}
	return copied
}

func cloneMessage(m notification.Message) notification.Message {
	copied := m
	copied.Payload = maps.Clone(m.Payload)
	if m.SentAt != nil {
		at := *m.SentAt
		copied.SentAt = &at
	}
	return copied
}
