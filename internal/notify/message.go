package notify

import (
	"fmt"
	"strings"

	"pet-monitor/tracker/internal/domain"
)

// BuildMessage composes the human-readable alert for a merged payload.
// Priority: restricted room, then outside perimeter, then temperature only.
// Returns "" when nothing in the payload is message-worthy.
func BuildMessage(p domain.AlertCondition) string {
	name := p.PetName
	if name == "" {
		name = p.PetMAC
	}
	if name == "" {
		name = "Pet"
	}

	lines := []string{"Pet Tracker"}

	switch {
	case p.BLERestricted:
		lines = append(lines, fmt.Sprintf("Restricted room: %s — pet: %s", p.Room, name))
		lines = appendTempLines(lines, p, "")

	case p.Outside:
		lines = append(lines, fmt.Sprintf("%s is outside the allowed perimeter", name))
		lines = appendTempLines(lines, p, "")
		if p.GPS != nil {
			lines = append(lines, fmt.Sprintf("Position: %.8f , %.8f", p.GPS.Lat, p.GPS.Lon))
		}

	case p.TempHigh || p.TempLow:
		lines = appendTempLines(lines, p, name+" ")
		if len(lines) == 1 {
			// Flag set but no reading/limit to report.
			return ""
		}

	default:
		return ""
	}

	return strings.Join(lines, "\n")
}

func appendTempLines(lines []string, p domain.AlertCondition, prefix string) []string {
	if p.TempHigh && p.TempValue != nil && p.TempMax != nil {
		lines = append(lines, fmt.Sprintf("%stemperature high: %.1f°C (limit %.1f°C)",
			prefix, *p.TempValue, *p.TempMax))
	}
	if p.TempLow && p.TempValue != nil && p.TempMin != nil {
		lines = append(lines, fmt.Sprintf("%stemperature low: %.1f°C (limit %.1f°C)",
			prefix, *p.TempValue, *p.TempMin))
	}
	return lines
}
