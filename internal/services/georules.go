package services

import (
	"strings"

	"linkgate/internal/models"
)

// MatchGeoRule picks the winning override for a resolved location:
// active rules only, best (lowest) priority number wins, ties go to the
// earliest-created rule. Returns nil when the location is unavailable or
// nothing matches — the redirect must never fail on geo.
func MatchGeoRule(rules []models.GeoRule, loc Location, ok bool) *models.GeoRule {
	if !ok {
		return nil
	}

	var best *models.GeoRule
	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive || !ruleMatches(rule, loc) {
			continue
		}
		if best == nil || rule.Priority < best.Priority ||
			(rule.Priority == best.Priority && rule.ID < best.ID) {
			best = rule
		}
	}
	return best
}

func ruleMatches(rule *models.GeoRule, loc Location) bool {
	switch rule.MatchType {
	case models.GeoMatchCountry:
		return contains(rule.Values(), loc.CountryCode)
	case models.GeoMatchContinent:
		return contains(rule.Values(), loc.ContinentCode)
	case models.GeoMatchRegion:
		// A custom region is a named set of country codes.
		return contains(rule.Values(), loc.CountryCode)
	default:
		return false
	}
}

func contains(values []string, code string) bool {
	if code == "" {
		return false
	}
	code = strings.ToUpper(code)
	for _, v := range values {
		if v == code {
			return true
		}
	}
	return false
}
