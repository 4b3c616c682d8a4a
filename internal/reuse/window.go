package reuse

import (
	"sort"
	"time"

	"github.com/aryannaik/assetreuse/internal/catalog"
)

// candidate is a scored entry; order is its catalog insertion index.
type candidate struct {
	entry catalog.Entry
	score float64
	order int
}

// eligible reports whether e is outside its category's reuse window.
func (c Config) eligible(e catalog.Entry, now time.Time) bool {
	if e.LastUsedAt == nil {
		return true
	}
	return now.Sub(*e.LastUsedAt) >= c.window(e.Category)
}

// partition splits candidates into those past their reuse window and those
// used too recently.
func (c Config) partition(cands []candidate, now time.Time) (eligible, recent []candidate) {
	for _, cand := range cands {
		if c.eligible(cand.entry, now) {
			eligible = append(eligible, cand)
		} else {
			recent = append(recent, cand)
		}
	}
	return eligible, recent
}

// rank orders candidates by descending score, ties by insertion order.
func rank(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].order < cands[j].order
	})
}

// pick applies the reuse policy: eligible candidates first, then, only when
// lenient, recent ones until count is reached.
func (c Config) pick(cands []candidate, count int, now time.Time) []candidate {
	eligible, recent := c.partition(cands, now)
	rank(eligible)

	picked := eligible
	if len(picked) > count {
		picked = picked[:count]
	}
	if !c.Lenient || len(picked) >= count {
		return picked
	}

	rank(recent)
	for _, cand := range recent {
		if len(picked) >= count {
			break
		}
		picked = append(picked, cand)
	}
	return picked
}
