// Package source provides baselines to the flagging pipeline.
package source

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/tf"
)

const (
	defaultAntennas      = 4
	defaultTimeSteps     = 256
	defaultChannels      = 64
	defaultPolarizations = 2
	antennaSpacing       = 100.0 // meters
	integrationTime      = 10.0  // seconds
	firstChannel         = 140e6 // Hz
	channelWidth         = 195e3 // Hz
)

// Synthetic generates a deterministic observation: complex gaussian noise on
// a smooth bandpass plus narrowband lines, broadband bursts and single
// spikes. The antennas form a line, so baseline length grows with the
// antenna distance.
type Synthetic struct {
	Antennas      int
	TimeSteps     int
	Channels      int
	Polarizations int
	Seed          uint64
	// NoiseLevel is the standard deviation of each complex component.
	NoiseLevel float64
	// RFILevel is the amplitude added by interference.
	RFILevel float64

	once sync.Once
	meta *artifacts.Metadata
}

func (s *Synthetic) defaults() {
	if s.Antennas <= 0 {
		s.Antennas = defaultAntennas
	}
	if s.TimeSteps <= 0 {
		s.TimeSteps = defaultTimeSteps
	}
	if s.Channels <= 0 {
		s.Channels = defaultChannels
	}
	if s.Polarizations <= 0 {
		s.Polarizations = defaultPolarizations
	}
	if s.NoiseLevel <= 0 {
		s.NoiseLevel = 1
	}
	if s.RFILevel <= 0 {
		s.RFILevel = 30 * s.NoiseLevel
	}
}

// Metadata is created once and shared by every generated baseline.
func (s *Synthetic) Metadata() *artifacts.Metadata {
	s.once.Do(func() {
		s.defaults()
		meta := &artifacts.Metadata{
			Times:    make([]float64, s.TimeSteps),
			UVW:      make([]artifacts.UVW, s.TimeSteps),
			Channels: make([]float64, s.Channels),
		}
		for t := range meta.Times {
			meta.Times[t] = float64(t) * integrationTime
			// Unit east-west baseline rotating with the earth.
			h := 2 * math.Pi * meta.Times[t] / 86164
			meta.UVW[t] = artifacts.UVW{U: math.Cos(h), V: math.Sin(h)}
		}
		for c := range meta.Channels {
			meta.Channels[c] = firstChannel + float64(c)*channelWidth
		}
		s.meta = meta
	})
	return s.meta
}

func (s *Synthetic) Baselines(ctx context.Context) ([]artifacts.Baseline, error) {
	s.Metadata()
	var out []artifacts.Baseline
	for a1 := 0; a1 < s.Antennas; a1++ {
		for a2 := a1; a2 < s.Antennas; a2++ {
			out = append(out, artifacts.Baseline{
				Antenna1: a1,
				Antenna2: a2,
				Length:   float64(a2-a1) * antennaSpacing,
			})
		}
	}
	return out, nil
}

func (s *Synthetic) Load(ctx context.Context, b artifacts.Baseline) (*artifacts.Set, error) {
	set, _, err := s.Generate(b)
	return set, err
}

// Generate creates the set of one baseline together with the mask of the
// samples that received interference.
func (s *Synthetic) Generate(b artifacts.Baseline) (*artifacts.Set, *tf.Mask, error) {
	meta := s.Metadata()
	if b.Antenna1 < 0 || b.Antenna2 >= s.Antennas || b.Antenna1 > b.Antenna2 {
		return nil, nil, fmt.Errorf("no baseline %s in a %d antenna array", b, s.Antennas)
	}
	rng := rand.New(rand.NewPCG(s.Seed, uint64(b.Antenna1)<<32|uint64(b.Antenna2)))
	w, h := s.TimeSteps, s.Channels
	buf := tf.NewBuffer(w, h, s.Polarizations, 2, false)
	truth := tf.NewMask(w, h)

	// Interference is shared by all polarizations.
	rfi := tf.NewImage(w, h)
	for i := 0; i < 2; i++ {
		c := rng.IntN(h)
		for t := 0; t < w; t++ {
			rfi.Set(t, c, s.RFILevel)
		}
	}
	for i := 0; i < 2; i++ {
		t := rng.IntN(w)
		for c := 0; c < h; c++ {
			rfi.Set(t, c, s.RFILevel)
		}
	}
	for i := 0; i < 5; i++ {
		rfi.Set(rng.IntN(w), rng.IntN(h), 2*s.RFILevel)
	}
	for i, v := range rfi.Data {
		truth.Data[i] = v != 0
	}

	for p := 0; p < s.Polarizations; p++ {
		re, im := buf.Images[2*p], buf.Images[2*p+1]
		for c := 0; c < h; c++ {
			bandpass := 10 * s.NoiseLevel * (1 + 0.1*math.Sin(2*math.Pi*float64(c)/float64(h)))
			for t := 0; t < w; t++ {
				re.Set(t, c, bandpass+rfi.At(t, c)+rng.NormFloat64()*s.NoiseLevel)
				im.Set(t, c, rng.NormFloat64()*s.NoiseLevel)
			}
		}
	}

	set := artifacts.New(buf, meta)
	set.Baseline = b
	return set, truth, nil
}
