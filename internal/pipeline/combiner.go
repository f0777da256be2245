package pipeline

import "github.com/lockwhz/secregress/models"

// Combine concatenates summaries in the given order. Records keep their
// repository and their order within it; nothing is merged or renormalized.
func Combine(summaries ...models.Summary) models.Combined {
	n := 0
	for _, s := range summaries {
		n += len(s.Records)
	}
	out := models.Combined{Records: make([]models.CommitRecord, 0, n)}
	for _, s := range summaries {
		for _, r := range s.Records {
			if r.Repository == "" {
				r.Repository = s.Repository
			}
			out.Records = append(out.Records, r)
		}
	}
	return out
}
