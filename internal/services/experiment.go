package services

import (
	"sort"
	"time"

	"linkgate/internal/models"
)

// SelectVariant draws a variant with probability weight/sum(weights).
// Returns nil when the experiment is not live or has no usable variants.
// intn is the random source (rand.Intn compatible) so tests can seed it;
// variants are ordered by ID so cumulative ranges are reproducible.
func SelectVariant(exp *models.Experiment, now time.Time, intn func(int) int) *models.Variant {
	if exp == nil || !exp.IsLive(now) || len(exp.Variants) == 0 {
		return nil
	}

	variants := make([]models.Variant, len(exp.Variants))
	copy(variants, exp.Variants)
	sort.Slice(variants, func(i, j int) bool { return variants[i].ID < variants[j].ID })

	total := 0
	for _, v := range variants {
		if v.Weight > 0 {
			total += v.Weight
		}
	}
	if total <= 0 {
		return nil
	}

	draw := intn(total)
	cumulative := 0
	for i := range variants {
		if variants[i].Weight <= 0 {
			continue
		}
		cumulative += variants[i].Weight
		if draw < cumulative {
			return &variants[i]
		}
	}
	return nil
}
