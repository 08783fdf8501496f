package services

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// Ensure Merger implements the interface.
var _ driven.RecordMerger = (*Merger)(nil)

// Merger folds records that describe the same message, call or contact
// but were extracted from different entries of one archive.
type Merger struct {
	tolerance time.Duration
}

// NewMerger creates a merger. Timestamps within tolerance of each other
// are considered the same moment.
func NewMerger(tolerance time.Duration) *Merger {
	if tolerance < 0 {
		tolerance = 0
	}
	return &Merger{tolerance: tolerance}
}

// Tolerance returns the configured timestamp window.
func (m *Merger) Tolerance() time.Duration {
	return m.tolerance
}

// Merge deduplicates records and returns the kept set plus the number of
// records folded away. Input order is preserved for kept records.
func (m *Merger) Merge(records []domain.Record) ([]domain.Record, int) {
	groups := make(map[string][]int)
	var order []string
	for i, rec := range records {
		key, ok := mergeKey(rec)
		if !ok {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	out := make([]domain.Record, len(records))
	copy(out, records)
	dropped := make([]bool, len(records))
	removed := 0

	for _, key := range order {
		idx := groups[key]
		if len(idx) < 2 {
			continue
		}
		removed += m.fold(records, out, dropped, idx)
	}

	kept := make([]domain.Record, 0, len(records)-removed)
	for i, rec := range out {
		if !dropped[i] {
			kept = append(kept, rec)
		}
	}
	return kept, removed
}

// mergeGroup is a kept record and the records folded into it, at most one
// per source entry.
type mergeGroup struct {
	rep     int
	members []int
}

// fold pairs the records of one key across source entries. Sources are
// visited largest first; each record pairs with at most one group, the one
// nearest in time within tolerance, and a group takes at most one record
// per source. Unpaired records are kept and open their own group.
func (m *Merger) fold(records, out []domain.Record, dropped []bool, idx []int) int {
	bySource := make(map[string][]int)
	var sources []string
	for _, i := range idx {
		src := records[i].SourceEntryPath()
		if _, ok := bySource[src]; !ok {
			sources = append(sources, src)
		}
		bySource[src] = append(bySource[src], i)
	}
	if len(sources) < 2 {
		return 0
	}

	decoded := func(src string) int {
		n := 0
		for _, i := range bySource[src] {
			if records[i].Timestamp() != nil {
				n++
			}
		}
		return n
	}
	sort.Slice(sources, func(a, b int) bool {
		sa, sb := sources[a], sources[b]
		if la, lb := len(bySource[sa]), len(bySource[sb]); la != lb {
			return la > lb
		}
		if da, db := decoded(sa), decoded(sb); da != db {
			return da > db
		}
		return sa < sb
	})

	var groups []*mergeGroup
	for _, i := range bySource[sources[0]] {
		groups = append(groups, &mergeGroup{rep: i})
	}

	type pairing struct {
		group  int
		record int
		gap    time.Duration
	}
	for _, src := range sources[1:] {
		var pairs []pairing
		for gi, g := range groups {
			for _, i := range bySource[src] {
				if gap, ok := m.nearest(records, g, i); ok {
					pairs = append(pairs, pairing{group: gi, record: i, gap: gap})
				}
			}
		}
		sort.SliceStable(pairs, func(a, b int) bool {
			if pairs[a].gap != pairs[b].gap {
				return pairs[a].gap < pairs[b].gap
			}
			if pairs[a].group != pairs[b].group {
				return pairs[a].group < pairs[b].group
			}
			return pairs[a].record < pairs[b].record
		})

		usedGroup := make(map[int]bool)
		usedRecord := make(map[int]bool)
		for _, p := range pairs {
			if usedGroup[p.group] || usedRecord[p.record] {
				continue
			}
			usedGroup[p.group] = true
			usedRecord[p.record] = true
			groups[p.group].members = append(groups[p.group].members, p.record)
		}
		for _, i := range bySource[src] {
			if !usedRecord[i] {
				groups = append(groups, &mergeGroup{rep: i})
			}
		}
	}

	removed := 0
	for _, g := range groups {
		if len(g.members) == 0 {
			continue
		}
		rec := out[g.rep]
		var from, extraIDs []string
		for _, i := range g.members {
			dropped[i] = true
			removed++
			from = append(from, records[i].SourceEntryPath())
			if c := records[i].Contact; c != nil {
				extraIDs = append(extraIDs, c.Identifiers...)
			}
		}
		rec.MergedFrom = unionSorted(rec.MergedFrom, from)
		if rec.Contact != nil && len(extraIDs) > 0 {
			contact := *rec.Contact
			contact.Identifiers = unionSorted(contact.Identifiers, extraIDs)
			rec.Contact = &contact
		}
		out[g.rep] = rec
	}
	return removed
}

// nearest returns the smallest gap between record i and any record of the
// group, and false when none lies within tolerance. Contacts carry no time
// and always pair. Undecoded timestamps only pair with the same raw value.
func (m *Merger) nearest(records []domain.Record, g *mergeGroup, i int) (time.Duration, bool) {
	rec := records[i]
	if rec.Family == domain.FamilyContact {
		return 0, true
	}
	var best time.Duration
	found := false
	for _, j := range append([]int{g.rep}, g.members...) {
		gap, ok := m.gap(records[j], rec)
		if ok && (!found || gap < best) {
			best, found = gap, true
		}
	}
	return best, found
}

func (m *Merger) gap(a, b domain.Record) (time.Duration, bool) {
	ta, tb := a.Timestamp(), b.Timestamp()
	switch {
	case ta == nil && tb == nil:
		return 0, a.RawTimestamp() == b.RawTimestamp()
	case ta == nil || tb == nil:
		return 0, false
	}
	d := ta.Sub(*tb)
	if d < 0 {
		d = -d
	}
	return d, d <= m.tolerance
}

// mergeKey returns the identity of a record ignoring time and source.
func mergeKey(rec domain.Record) (string, bool) {
	switch {
	case rec.Family == domain.FamilyChat && rec.Chat != nil:
		c := rec.Chat
		return fmt.Sprintf("chat|%s|%s|%s", normalizeParticipant(c.ParticipantIdentifier), c.Direction, c.Body), true
	case rec.Family == domain.FamilyCall && rec.Call != nil:
		c := rec.Call
		dur := "-"
		if c.DurationSeconds != nil {
			dur = fmt.Sprint(*c.DurationSeconds)
		}
		return fmt.Sprintf("call|%s|%s|%s", normalizeParticipant(c.ParticipantIdentifier), c.Direction, dur), true
	case rec.Family == domain.FamilyContact && rec.Contact != nil:
		c := rec.Contact
		if name := strings.ToLower(strings.TrimSpace(c.DisplayName)); name != "" {
			return "contact|" + name, true
		}
		ids := make([]string, 0, len(c.Identifiers))
		for _, id := range c.Identifiers {
			ids = append(ids, normalizeParticipant(id))
		}
		sort.Strings(ids)
		return "contact-ids|" + strings.Join(ids, ","), true
	default:
		return "", false
	}
}

// normalizeParticipant reduces a phone number to a leading plus and its
// digits. Identifiers containing letters are handles and are only
// case-folded.
func normalizeParticipant(id string) string {
	id = strings.TrimSpace(id)
	if strings.IndexFunc(id, unicode.IsLetter) >= 0 {
		return strings.ToLower(id)
	}
	var b strings.Builder
	for i, r := range id {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return id
	}
	return b.String()
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
