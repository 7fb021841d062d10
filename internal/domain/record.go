package domain

import (
	"fmt"
	"time"
)

// HighRiskThreshold is the effective score at which a record counts as high risk.
const HighRiskThreshold = 7

const mediumRiskThreshold = 4

// Record is an immutable, normalized snapshot of one collected post.
type Record struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	URL         string        `json:"url,omitempty"`
	CollectedAt time.Time     `json:"collectedAt"`
	User        UserInfo      `json:"userInfo"`
	Risk        *RiskAnalysis `json:"riskAnalysis,omitempty"`
	// RiskScore is the effective risk score resolved at the store boundary.
	RiskScore float64 `json:"riskScore"`
}

// UserInfo identifies the author of a post.
type UserInfo struct {
	Username     string `json:"username"`
	DisplayName  string `json:"displayName,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// RiskAnalysis is the upstream scoring result attached to a record.
type RiskAnalysis struct {
	RiskScore  float64 `json:"riskScore"`
	Aggression float64 `json:"aggression"`
	SpreadRisk float64 `json:"spreadRisk"`
	LegalRisk  float64 `json:"legalRisk"`
	Sentiment  float64 `json:"sentiment"`
	Reason     string  `json:"reason"`
}

// Link returns the post URL, falling back to the canonical status URL.
func (r Record) Link() string {
	if r.URL != "" {
		return r.URL
	}
	return fmt.Sprintf("https://twitter.com/%s/status/%s", r.User.Username, r.ID)
}

// HighRisk reports whether the effective score reaches HighRiskThreshold.
func (r Record) HighRisk() bool {
	return r.RiskScore >= HighRiskThreshold
}

// Level is a coarse risk band used for display.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// RiskLevel maps an effective score to its band.
func RiskLevel(score float64) Level {
	switch {
	case score >= HighRiskThreshold:
		return LevelHigh
	case score >= mediumRiskThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// CountHighRisk returns how many records reach HighRiskThreshold.
func CountHighRisk(records []Record) int {
	n := 0
	for _, r := range records {
		if r.HighRisk() {
			n++
		}
	}
	return n
}
