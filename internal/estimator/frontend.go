package estimator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mfkiwl/x-evaluate/internal/config"
)

// Frontend selects one of the closed set of estimator variants.
type Frontend int

const (
	XVIO Frontend = iota
	EKLT
	EVIO
	HASTE
)

var frontendNames = map[string]Frontend{
	"XVIO":  XVIO,
	"EKLT":  EKLT,
	"EVIO":  EVIO,
	"HASTE": HASTE,
}

func (f Frontend) String() string {
	for name, v := range frontendNames {
		if v == f {
			return name
		}
	}
	return "unknown"
}

// ParseFrontend maps a selector string onto a Frontend. The error for an
// unknown selector enumerates the valid values.
func ParseFrontend(s string) (Frontend, error) {
	if f, ok := frontendNames[s]; ok {
		return f, nil
	}
	names := make([]string, 0, len(frontendNames))
	for name := range frontendNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return 0, fmt.Errorf("invalid frontend %q, possible values: %s", s, strings.Join(names, ", "))
}

// New constructs the selected frontend. All variants share the inertial
// dead-reckoning core; the event-based ones additionally consume event
// batches.
func New(f Frontend, p *config.Params) Estimator {
	switch f {
	case EKLT, EVIO, HASTE:
		return newFilter(f.String(), p, true)
	default:
		return newFilter(f.String(), p, false)
	}
}
