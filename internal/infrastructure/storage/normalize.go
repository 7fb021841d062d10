package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"RiskMonitor/internal/domain"
)

// rawUser is the author shape written by the collector, either under
// user_info or under the legacy user key.
type rawUser struct {
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	ProfileImage string `json:"profile_img"`
}

type rawAnalysis struct {
	RiskScore  *float64 `json:"risk_score"`
	Aggression float64  `json:"aggression"`
	SpreadRisk float64  `json:"spread_risk"`
	LegalRisk  float64  `json:"legal_risk"`
	Sentiment  float64  `json:"sentiment"`
	Reason     string   `json:"reason"`
}

// rawRecord mirrors a tweets row before normalization.
type rawRecord struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	URL          string       `json:"url"`
	CollectedAt  flexTime     `json:"collected_at"`
	UserInfo     *rawUser     `json:"user_info"`
	User         *rawUser     `json:"user"`
	RiskAnalysis *rawAnalysis `json:"risk_analysis"`
	RiskScore    *float64     `json:"risk_score"`
}

// normalize produces the canonical record. The flattened risk_score is the
// producer's denormalized copy of the nested score and is read first; the
// nested score covers rows written before the column existed.
func normalize(raw rawRecord) domain.Record {
	rec := domain.Record{
		ID:          raw.ID,
		Text:        raw.Text,
		URL:         raw.URL,
		CollectedAt: time.Time(raw.CollectedAt).UTC(),
	}

	switch {
	case raw.UserInfo != nil:
		rec.User = toUser(raw.UserInfo)
	case raw.User != nil:
		rec.User = toUser(raw.User)
	}

	if a := raw.RiskAnalysis; a != nil {
		rec.Risk = &domain.RiskAnalysis{
			Aggression: a.Aggression,
			SpreadRisk: a.SpreadRisk,
			LegalRisk:  a.LegalRisk,
			Sentiment:  a.Sentiment,
			Reason:     a.Reason,
		}
		if a.RiskScore != nil {
			rec.Risk.RiskScore = *a.RiskScore
		}
	}

	switch {
	case raw.RiskScore != nil:
		rec.RiskScore = *raw.RiskScore
	case raw.RiskAnalysis != nil && raw.RiskAnalysis.RiskScore != nil:
		rec.RiskScore = *raw.RiskAnalysis.RiskScore
	}

	return rec
}

func toUser(u *rawUser) domain.UserInfo {
	return domain.UserInfo{
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		ProfileImage: u.ProfileImage,
	}
}

// DecodeRecords parses collector output (a JSON array of tweets rows).
func DecodeRecords(data []byte) ([]domain.Record, error) {
	var raws []rawRecord
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	records := make([]domain.Record, 0, len(raws))
	for _, raw := range raws {
		records = append(records, normalize(raw))
	}
	return records, nil
}

func decodeJSONColumn[T any](data []byte) (*T, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	domain.DateLayout,
}

// parseTime accepts the timestamp renderings seen in collector rows;
// timestamps without an offset are UTC.
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, " m="); i > 0 {
		raw = raw[:i]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// scanTime converts a scanned timestamp column into UTC time.
func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
}

type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = flexTime{}
		return nil
	}
	t, err := parseTime(s)
	if err != nil {
		return err
	}
	*f = flexTime(t)
	return nil
}
