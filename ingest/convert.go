package ingest

import (
	"instrumon/channel"
	"instrumon/router"
)

// Linear maps a raw reading to a display value as raw*Scale + Offset.
type Linear struct {
	Scale  float64 `yaml:"scale"`
	Offset float64 `yaml:"offset"`
}

// Apply converts v.
func (l Linear) Apply(v float64) float64 {
	return v*l.Scale + l.Offset
}

// Identity leaves values unchanged.
var Identity = Linear{Scale: 1}

// Conversions holds one transform per channel kind.
type Conversions struct {
	Pressure    Linear `yaml:"pressure"`
	Temperature Linear `yaml:"temperature"`
	Mass        Linear `yaml:"mass"`
	Force       Linear `yaml:"force"`
}

// DefaultConversions match the instrumentation node's raw units: pressure in
// Pa shown as psi, temperatures offset by 273.15, run-tank load in N shown as
// kg, thrust in N unchanged.
func DefaultConversions() Conversions {
	return Conversions{
		Pressure:    Linear{Scale: 1 / 6895.0},
		Temperature: Linear{Scale: 1, Offset: 273.15},
		Mass:        Linear{Scale: 1 / 9.81},
		Force:       Identity,
	}
}

func (c Conversions) forKind(k channel.Kind) Linear {
	switch k {
	case channel.KindPressure:
		return c.Pressure
	case channel.KindTemperature:
		return c.Temperature
	case channel.KindMass:
		return c.Mass
	case channel.KindForce:
		return c.Force
	default:
		return Identity
	}
}

// Converter applies per-channel transforms to records in place.
type Converter struct {
	byChannel [channel.Count]Linear
}

// NewConverter resolves c to one transform per channel.
func NewConverter(c Conversions) *Converter {
	conv := &Converter{}
	for _, info := range channel.All() {
		conv.byChannel[info.ID] = c.forKind(info.Kind)
	}
	return conv
}

// Apply converts every known channel in rec. Unknown keys are left for the
// router to judge; NaN stays NaN.
func (c *Converter) Apply(rec router.Record) {
	if c == nil {
		return
	}
	for key, v := range rec {
		id, ok := channel.Lookup(key)
		if !ok {
			continue
		}
		rec[key] = c.byChannel[id].Apply(v)
	}
}
