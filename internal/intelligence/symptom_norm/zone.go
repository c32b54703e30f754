package symptom_norm

import "strings"

// Zone is the coarse anatomical category inferred from normalized text.
type Zone int

const (
	ZoneBronchial Zone = iota
	ZonePharyngeal
	ZoneLaryngeal
	ZoneOther
)

// Label returns the category string the zone encoder was fitted on.
func (z Zone) Label() string {
	switch z {
	case ZoneBronchial:
		return "bronquios"
	case ZonePharyngeal:
		return "faringe"
	case ZoneLaryngeal:
		return "laringe"
	default:
		return "otro"
	}
}

func (z Zone) String() string {
	switch z {
	case ZoneBronchial:
		return "bronchial"
	case ZonePharyngeal:
		return "pharyngeal"
	case ZoneLaryngeal:
		return "laryngeal"
	default:
		return "other"
	}
}

// AllZones lists every zone in classification priority order.
var AllZones = []Zone{ZoneBronchial, ZonePharyngeal, ZoneLaryngeal, ZoneOther}

// ZoneFromLabel parses an encoder label back into a Zone.
func ZoneFromLabel(label string) (Zone, bool) {
	for _, z := range AllZones {
		if z.Label() == label {
			return z, true
		}
	}
	return ZoneOther, false
}

type zoneRule struct {
	zone    Zone
	markers []string
}

// zoneRules are evaluated in order; the first rule with a marker present wins.
var zoneRules = []zoneRule{
	{ZoneBronchial, []string{"bronquios", "tos productiva", "roncus", "dificultad respiratoria"}},
	{ZonePharyngeal, []string{"faringe", "dolor de garganta", "placas en garganta", "ganglios inflamados"}},
	{ZoneLaryngeal, []string{"laringe", "ronquera", "dolor al hablar", "edema en cuerdas vocales"}},
}

// ClassifyZone returns the first zone, in priority order, whose markers occur
// as substrings of normalized.
func ClassifyZone(normalized string) Zone {
	for _, r := range zoneRules {
		for _, m := range r.markers {
			if strings.Contains(normalized, m) {
				return r.zone
			}
		}
	}
	return ZoneOther
}
