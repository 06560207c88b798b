// Package channel defines the fixed set of telemetry channels published by the
// instrumentation node. The set is known at compile time so the core can index
// buffers by ID; wire names are only used at the ingestion boundary.
package channel

import (
	"strings"

	lev "github.com/agnivade/levenshtein"
)

// ID identifies one telemetry channel. IDs are dense and start at zero so they
// can index fixed-size arrays.
type ID int

const (
	RunTankPressure ID = iota
	CombustionChamberPressure
	N2OFlowPressure
	N2FlowPressure
	InjectorPressure
	RunTankTemp
	InjectorTemp
	CombustionChamberTemp
	PostCombustionTemp
	Thrust
	RunTankMass

	// Count is the number of known channels.
	Count int = iota
)

// Kind groups channels that share a unit conversion.
type Kind int

const (
	KindPressure Kind = iota
	KindTemperature
	KindMass
	KindForce
)

func (k Kind) String() string {
	switch k {
	case KindPressure:
		return "pressure"
	case KindTemperature:
		return "temperature"
	case KindMass:
		return "mass"
	case KindForce:
		return "force"
	default:
		return "unknown"
	}
}

// Info describes a channel for decoding and display.
type Info struct {
	ID    ID
	Name  string // wire key in the instrumentation JSON
	Title string
	Unit  string
	Kind  Kind
}

var infos = [Count]Info{
	RunTankPressure:           {RunTankPressure, "P_RUN_TANK", "Runtank Pressure", "psi", KindPressure},
	CombustionChamberPressure: {CombustionChamberPressure, "P_COMB_CHMBR", "Comb Chmbr. Pressure", "psi", KindPressure},
	N2OFlowPressure:           {N2OFlowPressure, "P_N2O_FLOW", "N2O Flow Pressure", "psi", KindPressure},
	N2FlowPressure:            {N2FlowPressure, "P_N2_FLOW", "N2 Flow Pressure", "psi", KindPressure},
	InjectorPressure:          {InjectorPressure, "P_INJECTOR", "Injector Pressure", "psi", KindPressure},
	RunTankTemp:               {RunTankTemp, "T_RUN_TANK", "Runtank Temp", "K", KindTemperature},
	InjectorTemp:              {InjectorTemp, "T_INJECTOR", "Injector Temp", "K", KindTemperature},
	CombustionChamberTemp:     {CombustionChamberTemp, "T_COMB_CHMBR", "Comb Chmbr. Temp", "K", KindTemperature},
	PostCombustionTemp:        {PostCombustionTemp, "T_POST_COMB", "Post Comb Chmbr. Temp", "K", KindTemperature},
	Thrust:                    {Thrust, "L_THRUST", "Thrust", "N", KindForce},
	RunTankMass:               {RunTankMass, "L_RUN_TANK", "Runtank Mass", "kg", KindMass},
}

var byName = func() map[string]ID {
	m := make(map[string]ID, Count)
	for _, info := range infos {
		m[info.Name] = info.ID
	}
	return m
}()

// All returns every channel in display order.
func All() []Info {
	out := make([]Info, Count)
	copy(out, infos[:])
	return out
}

// Valid reports whether id names a known channel.
func (id ID) Valid() bool {
	return id >= 0 && int(id) < Count
}

// Info returns the descriptor for id. Unknown IDs return a zero Info.
func (id ID) Info() Info {
	if !id.Valid() {
		return Info{ID: id}
	}
	return infos[id]
}

// Name returns the wire key for id.
func (id ID) Name() string {
	return id.Info().Name
}

func (id ID) String() string {
	if !id.Valid() {
		return "UNKNOWN"
	}
	return infos[id].Name
}

// Lookup resolves a wire key to a channel ID. Keys are matched exactly.
func Lookup(name string) (ID, bool) {
	id, ok := byName[name]
	return id, ok
}

// Suggest returns the closest known wire key for an unrecognised name, or ""
// when nothing is close enough to be a plausible typo.
func Suggest(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return ""
	}
	if id, ok := byName[upper]; ok {
		return infos[id].Name
	}
	best := ""
	bestDist := -1
	for _, info := range infos {
		d := lev.ComputeDistance(upper, info.Name)
		if bestDist < 0 || d < bestDist {
			best = info.Name
			bestDist = d
		}
	}
	// Anything further than a third of the key length is a different field, not a typo.
	if bestDist < 0 || bestDist > len(best)/3 {
		return ""
	}
	return best
}
