package models

import (
	"time"
)

type ClickRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LinkID    uint      `gorm:"not null;index" json:"link_id"`
	VariantID *uint     `gorm:"index" json:"variant_id,omitempty"`
	Timestamp time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"timestamp"`

	IPAddress  string `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent  string `gorm:"size:255" json:"user_agent"`
	Browser    string `gorm:"size:50" json:"browser"`
	OS         string `gorm:"size:100" json:"os"`
	DeviceType string `gorm:"size:50" json:"device_type"`
	Referrer   string `gorm:"size:255;default:'Direct'" json:"referrer"`

	Country   string `gorm:"size:10;default:''" json:"country"`
	Continent string `gorm:"size:10;default:''" json:"continent"`
	Region    string `gorm:"size:100" json:"region"`

	UTMSource   string `gorm:"size:100" json:"utm_source,omitempty"`
	UTMMedium   string `gorm:"size:100" json:"utm_medium,omitempty"`
	UTMCampaign string `gorm:"size:100" json:"utm_campaign,omitempty"`
	UTMTerm     string `gorm:"size:100" json:"utm_term,omitempty"`
	UTMContent  string `gorm:"size:100" json:"utm_content,omitempty"`

	// Inbound query string logged verbatim for analytics collaborators.
	RawQuery string `gorm:"type:text" json:"raw_query,omitempty"`
}

func (ClickRecord) TableName() string {
	return "clicks"
}

// PendingClick is a raw visit captured on the redirect path and passed
// through channels or the pending queue. It carries only what the request
// handler already knows; enrichment happens when it is materialized into
// a ClickRecord.
type PendingClick struct {
	LinkID    uint      `json:"link_id"`
	VariantID *uint     `json:"variant_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
	RawQuery  string    `json:"raw_query"`

	Country   string `json:"country"`
	Continent string `json:"continent"`
	Region    string `json:"region"`

	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`
}
