package web

import (
	"embed"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"RiskMonitor/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// pageData is the template projection of one dashboard render.
type pageData struct {
	Display       string
	Loading       bool
	Error         string
	Total         int
	HighRiskCount int
	MinRisk       int
	SortOrder     string
	Start         string
	End           string
	Status        statusView
	Cards         []cardView
}

type statusView struct {
	Text     string
	Level    string
	Active   bool
	Pending  bool
	PolledAt string
}

type cardView struct {
	Username    string
	Initial     string
	Text        string
	CollectedAt string
	Link        string
	Score       float64
	Level       domain.Level
	Analysis    *domain.RiskAnalysis
}

const timeLayout = "2006-01-02 15:04"

// initialStatus is shown until the first successful poll.
const initialStatus = "Initializing..."

func newStatusView(snap domain.StatusSnapshot, loc *time.Location) statusView {
	v := statusView{
		Text:    snap.Message,
		Level:   snap.Level,
		Active:  snap.Status == domain.StatusActive,
		Pending: snap.IsRequestPending,
	}
	if v.Text == "" {
		v.Text = initialStatus
	}
	if !snap.LastPolledAt.IsZero() {
		v.PolledAt = snap.LastPolledAt.In(loc).Format(timeLayout)
	}
	return v
}

func newCardView(rec domain.Record, loc *time.Location) cardView {
	username := rec.User.Username
	if username == "" {
		username = "unknown"
	}
	return cardView{
		Username:    username,
		Initial:     initial(username),
		Text:        rec.Text,
		CollectedAt: rec.CollectedAt.In(loc).Format(timeLayout),
		Link:        rec.Link(),
		Score:       rec.RiskScore,
		Level:       domain.RiskLevel(rec.RiskScore),
		Analysis:    rec.Risk,
	}
}

func initial(username string) string {
	r, _ := utf8.DecodeRuneInString(username)
	return strings.ToUpper(string(r))
}
