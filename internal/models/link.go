package models

import (
	"strings"
	"time"
)

type Link struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OwnerID        *uint      `json:"owner_id,omitempty"` // Nullable for anonymous
	ShortCode      string     `gorm:"unique;not null;size:20;index" json:"short_code"`
	DestinationURL string     `gorm:"not null;type:text" json:"destination_url"`
	RedirectStatus int        `gorm:"default:302" json:"redirect_status"` // 301, 302 or 308
	IsActive       bool       `gorm:"default:true;index" json:"is_active"`
	ClickLimit     *int64     `json:"click_limit,omitempty"`
	ClickCount     int64      `gorm:"column:clicks;default:0" json:"click_count"`
	CreatedAt      time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`

	GeoRules   []GeoRule   `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"geo_rules,omitempty"`
	Experiment *Experiment `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"experiment,omitempty"`

	Clicks []ClickRecord `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Link) TableName() string {
	return "links"
}

func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// LimitReached reports whether the snapshot counter is at or past the
// configured click limit. The authoritative check happens at accounting
// time via the conditional increment; this is only the fast path.
func (l *Link) LimitReached() bool {
	return l.ClickLimit != nil && l.ClickCount >= *l.ClickLimit
}

type GeoMatchType string

const (
	GeoMatchCountry   GeoMatchType = "country"
	GeoMatchContinent GeoMatchType = "continent"
	GeoMatchRegion    GeoMatchType = "region" // custom-region: a named set of country codes
)

type GeoRule struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	LinkID      uint         `gorm:"not null;index" json:"link_id"`
	MatchType   GeoMatchType `gorm:"size:20;not null" json:"match_type"`
	MatchValues string       `gorm:"type:text;not null" json:"match_values"` // Comma separated ISO codes
	TargetURL   string       `gorm:"not null;type:text" json:"target_url"`
	Priority    int          `gorm:"default:100" json:"priority"` // Lower number wins
	IsActive    bool         `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time    `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (GeoRule) TableName() string {
	return "geo_rules"
}

// Values returns the match values upper-cased with whitespace trimmed.
func (r *GeoRule) Values() []string {
	var out []string
	for _, v := range strings.Split(r.MatchValues, ",") {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

type Experiment struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	LinkID    uint       `gorm:"not null;uniqueIndex" json:"link_id"`
	Name      string     `gorm:"size:100" json:"name"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	StartAt   *time.Time `json:"start_at,omitempty"`
	EndAt     *time.Time `json:"end_at,omitempty"`
	CreatedAt time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	Variants []Variant `gorm:"foreignKey:ExperimentID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
}

func (Experiment) TableName() string {
	return "experiments"
}

// IsLive reports whether the experiment is active and inside its
// optional start/end window.
func (e *Experiment) IsLive(now time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.StartAt != nil && now.Before(*e.StartAt) {
		return false
	}
	if e.EndAt != nil && now.After(*e.EndAt) {
		return false
	}
	return true
}

type Variant struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ExperimentID uint      `gorm:"not null;index" json:"experiment_id"`
	Name         string    `gorm:"size:100" json:"name"`
	TargetURL    string    `gorm:"not null;type:text" json:"target_url"`
	Weight       int       `gorm:"default:1" json:"weight"` // Relative; siblings need not sum to 100
	ClickCount   int64     `gorm:"column:clicks;default:0" json:"click_count"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Variant) TableName() string {
	return "variants"
}
