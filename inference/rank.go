package inference

import (
	"sort"

	"github.com/devadigapratham/filamentlog/models"
)

// Score counts the criteria that are specified and equal to the entry's
// field.
//
// Candidates reaching Rank already satisfy every specified criterion, so
// within one query every candidate scores the same and the id tie-break
// decides.
func Score(c models.Criteria, e *models.FilamentEntry) int {
	score := 0
	if c.Maker != "" && c.Maker == e.Maker {
		score++
	}
	if c.Type != "" && c.Type == e.Type {
		score++
	}
	if c.Color != "" && c.Color == e.Color {
		score++
	}
	return score
}

// Rank filters candidates by c and orders them by score, then by id, both
// descending. The input slice is not modified.
func Rank(c models.Criteria, candidates []models.FilamentEntry) []models.FilamentEntry {
	ranked := make([]models.FilamentEntry, 0, len(candidates))
	for i := range candidates {
		if c.Matches(&candidates[i]) {
			ranked = append(ranked, candidates[i])
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := Score(c, &ranked[i]), Score(c, &ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].ID > ranked[j].ID
	})
	return ranked
}
