// Package fitness scores a layout genome against the keyboard model and the
// typing statistics. Evaluate is a pure function of its inputs and is the
// hot path of the search: everything derivable from the keyboard and the
// statistics is precomputed once, and per-call scratch space is pooled so
// evaluation does not allocate per character.
package fitness

import (
	"sync"

	"keysmith/internal/genome"
	"keysmith/internal/keyboard"
	"keysmith/internal/keylog"
)

// Rolling difficulty of same-hand finger pairs, indexed by FingerKind. 1.0
// means the pair is fully distance-sensitive (same finger has to travel),
// low values mean the pair alternates comfortably regardless of distance.
var pairDifficulty = [5][5]float64{
	//            Pinky Ring Middle Index Thumb
	/* Pinky  */ {1.0, 0.9, 0.8, 0.2, 0.1},
	/* Ring   */ {0.9, 1.0, 0.9, 0.5, 0.1},
	/* Middle */ {0.8, 0.9, 1.0, 0.7, 0.1},
	/* Index  */ {0.2, 0.5, 0.7, 1.0, 0.2},
	/* Thumb  */ {0.1, 0.1, 0.1, 0.2, 1.0},
}

// sameHandWeight scales how much a difficult same-hand transition can cost
// on top of the neutral multiplier of 1.
const sameHandWeight = 1.5

type bigramTerm struct {
	first  int
	second int
	freq   float64
}

// Evaluator computes the typing-effort cost of a layout. Lower is better.
// Safe for concurrent use.
type Evaluator struct {
	keyIndex  map[keyboard.KeyID]int
	keyFreq   []float64   // by key index
	placeCost []float64   // by slot index: 1 / (slot score * finger strength)
	trans     [][]float64 // by slot index pair
	bigrams   []bigramTerm

	scratch sync.Pool // []int, key index -> slot index
}

// NewEvaluator precomputes all cost tables. The keyboard has already been
// validated, so every slot has a positive score and a known finger.
func NewEvaluator(kb *keyboard.Keyboard, stats *keylog.Stats) *Evaluator {
	n := kb.SlotCount()

	keyIndex := make(map[keyboard.KeyID]int, n)
	for i, key := range kb.KeyIDs() {
		keyIndex[key] = i
	}

	keyFreq := make([]float64, n)
	for key, freq := range stats.KeyFreq {
		if idx, ok := keyIndex[key]; ok {
			keyFreq[idx] = freq
		}
	}

	placeCost := make([]float64, n)
	for i := 0; i < n; i++ {
		slot := kb.Slot(i)
		strength, _ := kb.FingerStrength(slot.Finger)
		placeCost[i] = 1.0 / (slot.Score * strength)
	}

	trans := make([][]float64, n)
	for i := 0; i < n; i++ {
		trans[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			trans[i][j] = transitionMultiplier(kb, i, j)
		}
	}

	var bigrams []bigramTerm
	for bg, freq := range stats.BigramFreq {
		a, okA := keyIndex[bg.First]
		b, okB := keyIndex[bg.Second]
		if okA && okB {
			bigrams = append(bigrams, bigramTerm{first: a, second: b, freq: freq})
		}
	}

	ev := &Evaluator{
		keyIndex:  keyIndex,
		keyFreq:   keyFreq,
		placeCost: placeCost,
		trans:     trans,
		bigrams:   bigrams,
	}
	ev.scratch.New = func() any {
		buf := make([]int, n)
		return &buf
	}
	return ev
}

// transitionMultiplier reflects physical typing ergonomics: alternating
// hands are neutral, same-hand transitions cost more the harder the finger
// pair rolls and the further the travel, and a repeated slot needs no travel
// at all. Same-finger pairs (difficulty 1.0) always cost at least as much as
// any different-finger pair on the same hand at equal distance.
func transitionMultiplier(kb *keyboard.Keyboard, i, j int) float64 {
	if i == j {
		return 1.0
	}
	a, b := kb.Slot(i), kb.Slot(j)
	if a.Finger.Hand != b.Finger.Hand {
		return 1.0
	}
	difficulty := pairDifficulty[a.Finger.Kind][b.Finger.Kind]
	d := kb.SlotDistance(i, j)
	return 1.0 + sameHandWeight*difficulty*d/(d+1.0)
}

// Evaluate returns the cost of the layout. Deterministic: the same layout
// against the same statistics always yields the identical score. A zero-mass
// statistics snapshot costs 0 for every layout.
func (e *Evaluator) Evaluate(l genome.Layout) float64 {
	slotOfPtr := e.scratch.Get().(*[]int)
	slotOf := *slotOfPtr
	for slot, key := range l.Keys {
		slotOf[e.keyIndex[key]] = slot
	}

	cost := 0.0
	for k, freq := range e.keyFreq {
		if freq == 0 {
			continue
		}
		cost += freq * e.placeCost[slotOf[k]]
	}
	for _, bg := range e.bigrams {
		cost += bg.freq * e.trans[slotOf[bg.first]][slotOf[bg.second]]
	}

	e.scratch.Put(slotOfPtr)
	return cost
}
