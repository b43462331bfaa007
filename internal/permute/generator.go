// Package permute draws group-label reassignments that preserve
// within-subject correlation under the null.
package permute

import (
	"math/rand"

	"timecourse/domain/core"
	"timecourse/domain/timeseries"
)

// Labeling assigns one group label to every subject. Applying it through
// Dataset.Relabel gives each observation its subject's label regardless of
// row order, so interleaved subjects cannot misalign the null model.
type Labeling map[core.SubjectID]string

// Generate draws count uniform-random permutations of the subject-level
// group labels. Each draw permutes labels without replacement, so the
// multiset of labels is always exactly the multiset of true labels. The
// supplied RNG fully determines the output.
func Generate(ds *timeseries.Dataset, count int, rng *rand.Rand) []Labeling {
	blocks := ds.Subjects()
	labels := make([]string, len(blocks))
	for i, b := range blocks {
		labels[i] = b.Group
	}

	out := make([]Labeling, count)
	for k := range out {
		perm := rng.Perm(len(blocks))
		l := make(Labeling, len(blocks))
		for i, b := range blocks {
			l[b.Subject] = labels[perm[i]]
		}
		out[k] = l
	}
	return out
}
