package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/rfiflag/artifacts"
)

func TestSyntheticBaselines(t *testing.T) {
	s := &Synthetic{Antennas: 3}
	got, err := s.Baselines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []artifacts.Baseline{
		{Antenna1: 0, Antenna2: 0},
		{Antenna1: 0, Antenna2: 1, Length: 100},
		{Antenna1: 0, Antenna2: 2, Length: 200},
		{Antenna1: 1, Antenna2: 1},
		{Antenna1: 1, Antenna2: 2, Length: 100},
		{Antenna1: 2, Antenna2: 2},
	}, got)
}

func TestSyntheticIsDeterministic(t *testing.T) {
	b := artifacts.Baseline{Antenna1: 1, Antenna2: 2}
	first, truth1, err := (&Synthetic{Seed: 7}).Generate(b)
	require.NoError(t, err)
	second, truth2, err := (&Synthetic{Seed: 7}).Generate(b)
	require.NoError(t, err)

	assert.Equal(t, first.Original.Images[3].Data, second.Original.Images[3].Data)
	assert.True(t, truth1.Equal(truth2))

	other, _, err := (&Synthetic{Seed: 8}).Generate(b)
	require.NoError(t, err)
	assert.NotEqual(t, first.Original.Images[0].Data, other.Original.Images[0].Data)
}

func TestSyntheticLayout(t *testing.T) {
	s := &Synthetic{TimeSteps: 32, Channels: 16, Polarizations: 2}
	set, truth, err := s.Generate(artifacts.Baseline{Antenna1: 0, Antenna2: 1})
	require.NoError(t, err)
	require.NoError(t, set.Validate())

	assert.Equal(t, 2, set.Original.Polarizations)
	assert.Equal(t, 2, set.Original.Components)
	assert.Len(t, set.Original.Images, 4)
	assert.Len(t, set.Original.Masks, 2)
	assert.Equal(t, 32, set.Width())
	assert.Equal(t, 16, set.Height())
	assert.Same(t, s.Metadata(), set.Metadata)
	assert.Len(t, set.Metadata.Channels, 16)

	// Two lines, two bursts and a few spikes.
	assert.GreaterOrEqual(t, truth.Count(), 40)
	assert.Less(t, truth.Ratio(), 0.3)
}

func TestSyntheticRejectsUnknownBaseline(t *testing.T) {
	_, err := (&Synthetic{Antennas: 2}).Load(context.Background(), artifacts.Baseline{Antenna1: 0, Antenna2: 5})
	assert.Error(t, err)
}
