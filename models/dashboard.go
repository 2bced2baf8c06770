package models

import "time"

// Dashboard summarizes the hospital state for the overview screen
type Dashboard struct {
	GeneratedAt    time.Time      `json:"generated_at"`
	EntityCounts   map[string]int `json:"entity_counts"`
	UnseenAlerts   int            `json:"unseen_alerts"`
	LowestStock    []Medical      `json:"lowest_stock"`
	ExpiringSoon   []Medical      `json:"expiring_soon"`
	ExpiryCutoff   Date           `json:"expiry_cutoff"`
	RecentActivity []AuditEvent   `json:"recent_activity"`
}
