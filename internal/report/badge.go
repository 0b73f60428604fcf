package report

import (
	"github.com/ashureev/neuroscanx/internal/domain"
)

// Badge is the styling of a triage level.
type Badge struct {
	Level   domain.TriageLevel `json:"level"`
	Label   string             `json:"label"`
	Tone    string             `json:"tone"`
	Urgency int                `json:"urgency"`
	Pulse   bool               `json:"pulse"`
}

var badgeTones = map[domain.TriageLevel]string{
	domain.TriageLow:      "green",
	domain.TriageMedium:   "yellow",
	domain.TriageHigh:     "orange",
	domain.TriageCritical: "red",
}

// BadgeFor returns the badge for level. ok is false for unknown levels.
func BadgeFor(level domain.TriageLevel) (b Badge, ok bool) {
	tone, ok := badgeTones[level]
	if !ok {
		return Badge{Level: level, Label: string(level), Tone: "gray"}, false
	}
	return Badge{
		Level:   level,
		Label:   string(level) + " Priority",
		Tone:    tone,
		Urgency: level.Rank(),
		Pulse:   level == domain.TriageCritical,
	}, true
}
