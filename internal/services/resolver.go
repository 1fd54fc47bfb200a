package services

import (
	"math/rand"
	"net/url"
	"sync"
	"time"

	"linkgate/internal/models"
)

// ResolvedDestination is the outcome of one resolution: the final URL
// (tracking parameters merged) and the experiment variant that produced
// it, if any, carried forward for click accounting.
type ResolvedDestination struct {
	URL     string
	Variant *models.Variant
}

// Resolver picks the destination for a link. Precedence, highest first:
// geo rule match, live experiment variant, base URL.
type Resolver struct {
	utmKeys []string
	now     func() time.Time

	randMu sync.Mutex
	rng    *rand.Rand
}

func NewResolver(utmKeys []string) *Resolver {
	return &Resolver{
		utmKeys: utmKeys,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Resolver) intn(n int) int {
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return r.rng.Intn(n)
}

func (r *Resolver) Resolve(link *models.Link, loc Location, locOK bool, query url.Values) ResolvedDestination {
	dest := ResolvedDestination{URL: link.DestinationURL}

	if rule := MatchGeoRule(link.GeoRules, loc, locOK); rule != nil {
		dest.URL = rule.TargetURL
	} else if variant := SelectVariant(link.Experiment, r.now(), r.intn); variant != nil {
		dest.URL = variant.TargetURL
		dest.Variant = variant
	}

	if merged, err := MergeTrackingParams(dest.URL, query, r.utmKeys); err == nil {
		dest.URL = merged
	}
	return dest
}

// MergeTrackingParams overlays the recognized UTM keys from the inbound
// query onto the destination URL. Inbound values override same-named keys
// already on the destination; empty values and unrecognized parameters
// are dropped.
func MergeTrackingParams(dest string, inbound url.Values, utmKeys []string) (string, error) {
	u, err := url.Parse(dest)
	if err != nil {
		return dest, err
	}

	q := u.Query()
	for _, key := range utmKeys {
		if v := inbound.Get(key); v != "" {
			q.Set(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
