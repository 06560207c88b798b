package main

import (
	"math"
	"math/rand/v2"

	jsoniter "github.com/json-iterator/go"

	"instrumon/channel"
)

// Raw values are in the node's native units: Pa, degrees C, and N.
const (
	atmospherePa = 101325.0
	ambientC     = 15.0
	burnStart    = 5.0
	burnLength   = 8.0
	cycleLength  = 30.0
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// generator produces one synthetic static-fire cycle: fill, burn, blowdown,
// repeat. It is driven by sample index so output is reproducible for a seed.
type generator struct {
	rate float64
	seq  uint64
	rng  *rand.Rand
}

type message struct {
	Seq  uint64             `json:"seq"`
	Data map[string]float64 `json:"data"`
}

func newGenerator(rate int, seed uint64) *generator {
	if rate <= 0 {
		rate = 1000
	}
	return &generator{rate: float64(rate), rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// next returns the record for the following sample.
func (g *generator) next() message {
	t := math.Mod(float64(g.seq)/g.rate, cycleLength)
	g.seq++

	burn := burnEnvelope(t)
	tankPa := 5.2e6 - 2.0e6*burn*progress(t)
	chamberPa := atmospherePa + 2.4e6*burn
	thrustN := 3500 * burn
	tankLoadN := 9.81 * (12 - 10*progress(t))

	data := make(map[string]float64, channel.Count)
	set := func(id channel.ID, v, noise float64) {
		data[id.Name()] = v + g.rng.NormFloat64()*noise
	}
	set(channel.RunTankPressure, tankPa, 5e3)
	set(channel.CombustionChamberPressure, chamberPa, 8e3)
	set(channel.N2OFlowPressure, tankPa*0.92, 5e3)
	set(channel.N2FlowPressure, 6.0e6-1.5e6*progress(t), 4e3)
	set(channel.InjectorPressure, atmospherePa+0.85*(tankPa-atmospherePa)*burn, 6e3)
	set(channel.RunTankTemp, ambientC-12*progress(t), 0.1)
	set(channel.InjectorTemp, ambientC-20*burn, 0.2)
	set(channel.CombustionChamberTemp, ambientC+2600*burn, 5)
	set(channel.PostCombustionTemp, ambientC+900*smoothStep(t-burnStart, burnLength+4), 2)
	set(channel.Thrust, thrustN, 15)
	set(channel.RunTankMass, tankLoadN, 0.2)
	return message{Seq: g.seq, Data: data}
}

// encode marshals the next sample.
func (g *generator) encode() ([]byte, error) {
	return json.Marshal(g.next())
}

// burnEnvelope ramps up over 0.3 s, holds, and tails off over 1 s.
func burnEnvelope(t float64) float64 {
	switch {
	case t < burnStart || t > burnStart+burnLength+1:
		return 0
	case t < burnStart+0.3:
		return (t - burnStart) / 0.3
	case t <= burnStart+burnLength:
		return 1 + 0.03*math.Sin(2*math.Pi*7*t)
	default:
		return 1 - (t - burnStart - burnLength)
	}
}

// progress is the fraction of the burn completed, held at 1 afterwards.
func progress(t float64) float64 {
	return math.Min(math.Max((t-burnStart)/burnLength, 0), 1)
}

func smoothStep(x, width float64) float64 {
	x = math.Min(math.Max(x/width, 0), 1)
	return x * x * (3 - 2*x)
}
