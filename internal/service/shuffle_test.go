package service

import (
	"math/rand"
	"testing"

	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/model"
)

// shuffleMatrix applies a student's shuffle the way the sheet generator
// does: printed row e holds canonical question entries[e].Question, printed
// option slot s of that row holds canonical option entries[e].Answers[s].
func shuffleMatrix(canonical [][]bool, entries []model.ShuffleEntry) [][]bool {
	scanned := make([][]bool, len(entries))
	for e, entry := range entries {
		src := canonical[entry.Question]
		row := make([]bool, len(entry.Answers))
		for s, j := range entry.Answers {
			row[s] = src[j]
		}
		scanned[e] = row
	}
	return scanned
}

func randomEntries(rng *rand.Rand, n, options int) []model.ShuffleEntry {
	qperm := rng.Perm(n)
	entries := make([]model.ShuffleEntry, n)
	for c := 0; c < n; c++ {
		entries[c] = model.ShuffleEntry{Question: qperm[c], Answers: rng.Perm(options)}
	}
	return entries
}

func randomMatrix(rng *rand.Rand, n, options int) [][]bool {
	m := make([][]bool, n)
	for i := range m {
		m[i] = make([]bool, options)
		for j := range m[i] {
			m[i][j] = rng.Intn(2) == 1
		}
	}
	return m
}

func TestUnshuffleRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, n := range []int{1, 5, 40} {
		t.Run(map[int]string{1: "single question", 5: "five questions", 40: "forty questions"}[n], func(t *testing.T) {
			for trial := 0; trial < 20; trial++ {
				entries := randomEntries(rng, n, 4)
				want := randomMatrix(rng, n, 4)

				got := Unshuffle(shuffleMatrix(want, entries), entries)

				if len(got) != len(want) {
					t.Fatalf("round trip returned %d rows, want %d", len(got), len(want))
				}
				for i := range want {
					for j := range want[i] {
						if got[i][j] != want[i][j] {
							t.Fatalf("trial %d: round trip diverged at question %d option %d", trial, i, j)
						}
					}
				}
			}
		})
	}
}

func TestUnshuffleIdentityPermutation(t *testing.T) {
	entries := []model.ShuffleEntry{
		{Question: 0, Answers: []int{0, 1, 2}},
		{Question: 1, Answers: []int{0, 1, 2}},
	}
	scanned := [][]bool{
		{true, false, true},
		{false, true, false},
	}

	got := Unshuffle(scanned, entries)

	for i := range scanned {
		for j := range scanned[i] {
			if got[i][j] != scanned[i][j] {
				t.Fatalf("identity shuffle changed cell (%d, %d)", i, j)
			}
		}
	}
}

func TestUnshuffleTruncatesToOptionCount(t *testing.T) {
	// Two options printed on a four-column grid: the unprinted slots must
	// not survive into the canonical matrix.
	entries := []model.ShuffleEntry{{Question: 0, Answers: []int{1, 0}}}
	scanned := [][]bool{{true, false, true, true}}

	got := Unshuffle(scanned, entries)

	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("got shape %dx%d, want 1x2", len(got), len(got[0]))
	}
	// Printed slot 0 holds canonical option 1, slot 1 holds canonical 0.
	if got[0][0] != false || got[0][1] != true {
		t.Errorf("got row %v, want [false true]", got[0])
	}
}
