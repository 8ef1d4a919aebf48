package engine

import (
	"strings"
	"time"
)

// Domain selects which entity collection a resolution runs against.
type Domain string

const (
	DomainList     Domain = "list"
	DomainSchedule Domain = "schedule"
	DomainMemory   Domain = "memory"
)

// EntityRef is the read-only view of a named entity the resolver matches
// against.
type EntityRef struct {
	Name        string
	Created     time.Time
	LastUpdated time.Time
}

// Snapshot is an insertion-ordered set of entity refs for one user and
// domain. Iteration order is the order refs were added, which keeps
// tie-breaks deterministic.
type Snapshot struct {
	refs  []EntityRef
	index map[string]int
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{index: make(map[string]int)}
}

// Add appends a ref. A duplicate name replaces the earlier entry in place,
// preserving its position.
func (s *Snapshot) Add(ref EntityRef) {
	if i, ok := s.index[ref.Name]; ok {
		s.refs[i] = ref
		return
	}
	s.index[ref.Name] = len(s.refs)
	s.refs = append(s.refs, ref)
}

// Len returns the number of entities in the snapshot.
func (s *Snapshot) Len() int { return len(s.refs) }

// Names returns entity names in insertion order.
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.refs))
	for i, r := range s.refs {
		out[i] = r.Name
	}
	return out
}

// Vague-request phrase tables. Kept as enumerable package-level sets so the
// fallback policy can be tested exhaustively.
var (
	// VaguePhrases gates the vague-request fallback: only these generic
	// phrases ever trigger recency or keyword heuristics.
	VaguePhrases = map[string]bool{
		"list": true, "the list": true, "my list": true,
		"schedule": true, "the schedule": true, "my schedule": true,
		"memory": true,
	}

	// GenericListPhrases are the exact phrases that select the most
	// recently updated list.
	GenericListPhrases = map[string]bool{
		"list": true, "the list": true, "my list": true,
	}

	// scheduleKeywords mark a request as schedule-ish.
	scheduleKeywords = []string{"schedule", "calendar", "agenda", "appointment", "meeting", "event"}

	// memoryKeywordOrder fixes the iteration order of the category-type
	// keyword table.
	memoryKeywordOrder = []string{"contacts", "passwords", "notes", "general"}

	// MemoryCategoryKeywords maps a category type to the request keywords
	// associated with it.
	MemoryCategoryKeywords = map[string][]string{
		"contacts":  {"contact", "person", "people", "phone", "number", "email"},
		"passwords": {"password", "login", "account", "credential"},
		"notes":     {"note", "reminder", "remember", "info", "information"},
		"general":   {"general", "misc", "other"},
	}
)

// Resolve fuzzy-matches a requested name against the snapshot using the
// ranked policy: exact key, case-insensitive, substring containment, then
// the vague-request fallback. It returns the matched entity name, or false
// when the caller should create a new entity under the original request
// string. Resolve is pure and never mutates the snapshot.
func Resolve(requested string, snap *Snapshot, domain Domain) (string, bool) {
	if snap == nil || requested == "" {
		return "", false
	}

	// 1. Exact key match.
	if _, ok := snap.index[requested]; ok {
		return requested, true
	}

	lower := strings.ToLower(requested)

	// 2. Case-insensitive match.
	for _, r := range snap.refs {
		if strings.ToLower(r.Name) == lower {
			return r.Name, true
		}
	}

	// 3. Substring containment, either direction.
	for _, r := range snap.refs {
		rl := strings.ToLower(r.Name)
		if strings.Contains(rl, lower) || strings.Contains(lower, rl) {
			return r.Name, true
		}
	}

	// 4. Vague-request fallback.
	if VaguePhrases[lower] {
		if snap.Len() == 1 {
			return snap.refs[0].Name, true
		}
		if name, ok := vagueFallback(lower, snap, domain); ok {
			return name, true
		}
	}

	return "", false
}

func vagueFallback(lower string, snap *Snapshot, domain Domain) (string, bool) {
	if snap.Len() == 0 {
		return "", false
	}
	switch domain {
	case DomainList:
		if GenericListPhrases[lower] {
			return mostRecent(snap), true
		}
	case DomainSchedule:
		for _, kw := range scheduleKeywords {
			if strings.Contains(lower, kw) {
				return mostRecent(snap), true
			}
		}
	case DomainMemory:
		return matchMemoryKeywords(lower, snap)
	}
	return "", false
}

// matchMemoryKeywords returns the first existing category, in snapshot
// order, whose name or associated keyword set overlaps the request.
func matchMemoryKeywords(lower string, snap *Snapshot) (string, bool) {
	for _, r := range snap.refs {
		nameLower := strings.ToLower(r.Name)
		for _, catType := range memoryKeywordOrder {
			kws := MemoryCategoryKeywords[catType]
			if !strings.Contains(nameLower, catType) && !containsAnyWord(nameLower, kws) {
				continue
			}
			if strings.Contains(lower, catType) || containsAnyWord(lower, kws) {
				return r.Name, true
			}
		}
	}
	return "", false
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// mostRecent picks the entity with the latest lastUpdated (falling back to
// created, then the zero time); ties keep the earliest in iteration order.
func mostRecent(snap *Snapshot) string {
	best := 0
	bestAt := effectiveTime(snap.refs[0])
	for i := 1; i < len(snap.refs); i++ {
		if at := effectiveTime(snap.refs[i]); at.After(bestAt) {
			best, bestAt = i, at
		}
	}
	return snap.refs[best].Name
}

func effectiveTime(r EntityRef) time.Time {
	if !r.LastUpdated.IsZero() {
		return r.LastUpdated
	}
	return r.Created
}
