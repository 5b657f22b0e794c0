package service

import (
	"sort"

	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/model"
)

// Unshuffle restores a scanned answer matrix to canonical answer-key order.
//
// The shuffle is indexed by canonical question: printed row e of the sheet
// holds canonical question shuffle[e].Question, and printed option slot s of
// that row holds canonical option shuffle[e].Answers[s]. Inverting both
// levels is two argsorts: one over the question fields to reorder rows, then
// one per row over that question's answer permutation to reorder its bits.
// Rows come out truncated to the length of their answer permutation, so a
// question with fewer options than grid columns drops the unprinted slots.
func Unshuffle(scanned [][]bool, shuffle []model.ShuffleEntry) [][]bool {
	questions := make([]int, len(shuffle))
	for i, entry := range shuffle {
		questions[i] = entry.Question
	}
	undoQuestions := argsort(questions)

	canonical := make([][]bool, 0, len(undoQuestions))
	for _, src := range undoQuestions {
		if src >= len(scanned) {
			canonical = append(canonical, nil)
			continue
		}
		row := scanned[src]
		undoAnswers := argsort(shuffle[src].Answers)

		bits := make([]bool, len(undoAnswers))
		for j, s := range undoAnswers {
			if s < len(row) {
				bits[j] = row[s]
			}
		}
		canonical = append(canonical, bits)
	}
	return canonical
}

// argsort returns the indices that would sort perm ascending. For a
// permutation of [0, n) this is its inverse.
func argsort(perm []int) []int {
	idx := make([]int, len(perm))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return perm[idx[a]] < perm[idx[b]] })
	return idx
}
