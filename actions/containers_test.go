package actions

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/tf"
)

func TestIterationBlockRestoresSensitivity(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		for _, start := range []float64{1, 2.5, 4, 1000} {
			t.Run(fmt.Sprintf("n=%d,start=%g", n, start), func(t *testing.T) {
				const before = 0.37
				set := newTestSet(constantRows(2, 2, 0))
				set.Sensitivity = before
				var seen []float64
				b := NewIterationBlock(n, start)
				b.Add(&funcAction{name: "record", fn: func(s *artifacts.Set) error {
					seen = append(seen, s.Sensitivity)
					return nil
				}})
				if err := perform(b, set); err != nil {
					t.Fatalf("Perform() failed: %v", err)
				}
				if set.Sensitivity != before {
					t.Errorf("sensitivity after = %v, want exactly %v", set.Sensitivity, before)
				}
				if len(seen) != n {
					t.Fatalf("children ran %d times, want %d", len(seen), n)
				}
				if math.Abs(seen[0]-before*math.Pow(start, float64(n-1)/float64(n))) > 1e-9*seen[0] {
					t.Errorf("first iteration at %v", seen[0])
				}
				if seen[n-1] != before {
					t.Errorf("last iteration at %v, want %v", seen[n-1], before)
				}
				for i := 1; i < n; i++ {
					if start > 1 && seen[i] >= seen[i-1] {
						t.Errorf("sensitivity did not decrease: %v", seen)
					}
				}
			})
		}
	}
}

func TestIterationBlockRestoresSensitivityOnError(t *testing.T) {
	set := newTestSet(constantRows(2, 2, 0))
	set.Sensitivity = 1.25
	boom := errors.New("boom")
	runs := 0
	b := NewIterationBlock(4, 8)
	b.Add(&funcAction{name: "fail", fn: func(*artifacts.Set) error {
		runs++
		if runs == 2 {
			return boom
		}
		return nil
	}})
	if err := perform(b, set); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if set.Sensitivity != 1.25 {
		t.Errorf("sensitivity = %v, want 1.25", set.Sensitivity)
	}
	if runs != 2 {
		t.Errorf("ran %d iterations after the failure", runs)
	}
}

func TestIterationBlockRejectsZeroCount(t *testing.T) {
	if err := perform(NewIterationBlock(0, 2), newTestSet(constantRows(2, 2, 0))); !errors.Is(err, ErrConfiguration) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestChangeResolutionRestoresMasks(t *testing.T) {
	set := newTestSet(constantRows(8, 4, 1))
	var reducedWidth, reducedHeight int
	cr := &ChangeResolution{TimeDecreaseFactor: 2, FrequencyDecreaseFactor: 2, RestoreMasks: true}
	cr.Add(&funcAction{name: "flag", fn: func(s *artifacts.Set) error {
		reducedWidth, reducedHeight = s.Width(), s.Height()
		s.Contaminated.Masks[0].Set(1, 0, true)
		s.Contaminated.Masks[0].Set(3, 1, true)
		return nil
	}})
	if err := perform(cr, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	if reducedWidth != 4 || reducedHeight != 2 {
		t.Errorf("children saw %dx%d, want 4x2", reducedWidth, reducedHeight)
	}
	mask := set.Contaminated.Masks[0]
	if mask.Width != 8 || mask.Height != 4 {
		t.Fatalf("restored mask is %dx%d", mask.Width, mask.Height)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			cx, cy := x/2, y/2
			want := (cx == 1 && cy == 0) || (cx == 3 && cy == 1)
			if mask.At(x, y) != want {
				t.Errorf("flag(%d,%d) = %v, want %v", x, y, mask.At(x, y), want)
			}
		}
	}
	if v := set.Contaminated.Images[0].At(0, 0); v != 1 {
		t.Errorf("contaminated image changed without restore: %g", v)
	}
}

func TestChangeResolutionRestoreRevisedIsSymmetric(t *testing.T) {
	rows := make([][]float64, 6)
	for y := range rows {
		rows[y] = make([]float64, 9)
		for x := range rows[y] {
			rows[y][x] = float64(x + 10*y)
		}
	}
	set := newTestSet(rows)
	cr := &ChangeResolution{TimeDecreaseFactor: 3, FrequencyDecreaseFactor: 2, RestoreRevised: true}
	cr.Add(&funcAction{name: "fit", fn: func(s *artifacts.Set) error {
		s.Revised.Images[0].Fill(1)
		s.Contaminated.Images[0].Fill(-100)
		return nil
	}})
	if err := perform(cr, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 9; x++ {
			if v := set.Revised.Images[0].At(x, y); v != 1 {
				t.Errorf("revised(%d,%d) = %g, want 1", x, y, v)
			}
			if v, want := set.Contaminated.Images[0].At(x, y), rows[y][x]-1; v != want {
				t.Errorf("contaminated(%d,%d) = %g, want %g", x, y, v, want)
			}
		}
	}
}

func TestChangeResolutionRestoreContaminatedWins(t *testing.T) {
	set := newTestSet(constantRows(4, 4, 10))
	cr := &ChangeResolution{TimeDecreaseFactor: 2, FrequencyDecreaseFactor: 2, RestoreRevised: true, RestoreContaminated: true}
	cr.Add(&funcAction{name: "fill", fn: func(s *artifacts.Set) error {
		s.Revised.Images[0].Fill(1)
		s.Contaminated.Images[0].Fill(7)
		return nil
	}})
	if err := perform(cr, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	for i, v := range set.Contaminated.Images[0].Data {
		if v != 7 {
			t.Fatalf("contaminated[%d] = %g, want 7", i, v)
		}
	}
}

func TestChangeResolutionAveragesWithoutFlaggedSamples(t *testing.T) {
	set := newTestSet([][]float64{{2, 1000, 4, 4}})
	set.Contaminated.Masks[0].Set(1, 0, true)
	var reduced []float64
	cr := &ChangeResolution{TimeDecreaseFactor: 2, FrequencyDecreaseFactor: 1, UseMaskInAveraging: true}
	cr.Add(&funcAction{name: "look", fn: func(s *artifacts.Set) error {
		reduced = append([]float64(nil), s.Original.Images[0].Data...)
		return nil
	}})
	if err := perform(cr, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	if diff := cmp.Diff([]float64{2, 4}, reduced); diff != "" {
		t.Errorf("reduced data mismatch (-want +got):\n%s", diff)
	}
}

func TestCutAreaPastesInnerMasks(t *testing.T) {
	set := newTestSet(constantRows(10, 6, 0))
	set.Contaminated.Masks[0].Set(0, 0, true)
	var innerWidth, innerHeight int
	ca := &CutArea{StartTimeSteps: 2, EndTimeSteps: 2, LowChannels: 1, HighChannels: 1}
	ca.Add(&funcAction{name: "flag", fn: func(s *artifacts.Set) error {
		innerWidth, innerHeight = s.Width(), s.Height()
		s.Contaminated.Masks[0].SetAll(true)
		return nil
	}})
	if err := perform(ca, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	if innerWidth != 6 || innerHeight != 4 {
		t.Errorf("children saw %dx%d, want 6x4", innerWidth, innerHeight)
	}
	mask := set.Contaminated.Masks[0]
	if n := mask.Count(); n != 25 {
		t.Errorf("got %d flags, want 24 inner + 1 border", n)
	}
	if !mask.At(0, 0) || !mask.At(2, 1) || !mask.At(7, 4) || mask.At(8, 4) || mask.At(2, 5) {
		t.Error("flags pasted at the wrong offset")
	}
}

func TestCutAreaRestoreRevised(t *testing.T) {
	set := newTestSet(constantRows(4, 3, 5))
	ca := &CutArea{StartTimeSteps: 1, LowChannels: 1, RestoreRevised: true}
	ca.Add(&funcAction{name: "fit", fn: func(s *artifacts.Set) error {
		s.Revised.Images[0].Fill(2)
		return nil
	}})
	if err := perform(ca, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	if v := set.Revised.Images[0].At(0, 0); v != 0 {
		t.Errorf("border revised = %g, want 0", v)
	}
	if v := set.Revised.Images[0].At(3, 2); v != 2 {
		t.Errorf("inner revised = %g, want 2", v)
	}
	if v := set.Contaminated.Images[0].At(3, 2); v != 3 {
		t.Errorf("inner contaminated = %g, want 3", v)
	}
	if v := set.Contaminated.Images[0].At(0, 0); v != 5 {
		t.Errorf("border contaminated = %g, want 5", v)
	}
}

func TestCutAreaRejectsOversizedBorder(t *testing.T) {
	ca := &CutArea{StartTimeSteps: 3, EndTimeSteps: 3}
	if err := perform(ca, newTestSet(constantRows(6, 2, 0))); !errors.Is(err, ErrConfiguration) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestCombineFlagResultsRunsChildrenIndependently(t *testing.T) {
	set := newTestSet(constantRows(6, 1, 4))
	set.Contaminated.Masks[0].Set(5, 0, true)
	first := &funcAction{name: "first", fn: func(s *artifacts.Set) error {
		s.Contaminated.Masks[0].Set(1, 0, true)
		s.Contaminated.Images[0].Fill(-1)
		return nil
	}}
	second := &funcAction{name: "second", fn: func(s *artifacts.Set) error {
		if s.Contaminated.Masks[0].At(1, 0) {
			return errors.New("saw the flags of the first child")
		}
		if s.Contaminated.Images[0].At(0, 0) != 4 {
			return errors.New("saw the images of the first child")
		}
		s.Contaminated.Masks[0].Set(3, 0, true)
		return nil
	}}
	c := &CombineFlagResults{}
	c.Add(first)
	c.Add(second)
	if err := perform(c, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 3, 5}, flaggedIndices(set.Contaminated.Masks[0])); diff != "" {
		t.Errorf("combined flags mismatch (-want +got):\n%s", diff)
	}
	if v := set.Contaminated.Images[0].At(0, 0); v != 4 {
		t.Errorf("contaminated image = %g, want it untouched", v)
	}
}

func TestForEachPolarizationWritesBackPerPolarization(t *testing.T) {
	buf := tf.NewBuffer(3, 2, 2, 1, false)
	buf.Images[0].Fill(1)
	buf.Images[1].Fill(2)
	set := newSetFromBuffer(buf)
	fp := &ForEachPolarization{}
	fp.Add(&funcAction{name: "flag second", fn: func(s *artifacts.Set) error {
		if s.Contaminated.Polarizations != 1 || len(s.Contaminated.Images) != 1 {
			return fmt.Errorf("got %d polarizations", s.Contaminated.Polarizations)
		}
		if s.Contaminated.Images[0].At(0, 0) == 2 {
			s.Contaminated.Masks[0].SetAll(true)
		}
		s.Revised.Images[0] = s.Contaminated.Images[0].Clone()
		return nil
	}})
	if err := perform(fp, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	if n := set.Contaminated.Masks[0].Count(); n != 0 {
		t.Errorf("first polarization got %d flags", n)
	}
	if n := set.Contaminated.Masks[1].Count(); n != 6 {
		t.Errorf("second polarization got %d flags, want 6", n)
	}
	if v := set.Revised.Images[1].At(2, 1); v != 2 {
		t.Errorf("revised image of the second polarization = %g, want 2", v)
	}
}

func TestForEachPolarizationSharedMaskCollectsFlags(t *testing.T) {
	buf := tf.NewBuffer(4, 1, 2, 1, true)
	buf.Images[1].Set(2, 0, 1)
	set := newSetFromBuffer(buf)
	fp := &ForEachPolarization{}
	fp.Add(&funcAction{name: "flag nonzero", fn: func(s *artifacts.Set) error {
		if s.Contaminated.Masks[0].Count() != 0 {
			return errors.New("saw flags of another polarization")
		}
		for i, v := range s.Contaminated.Images[0].Data {
			if v != 0 {
				s.Contaminated.Masks[0].Data[i] = true
			}
		}
		return nil
	}})
	if err := perform(fp, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	if diff := cmp.Diff([]int{2}, flaggedIndices(set.Contaminated.Masks[0])); diff != "" {
		t.Errorf("shared mask mismatch (-want +got):\n%s", diff)
	}
}

func TestForEachComplexComponentAmplitude(t *testing.T) {
	buf := tf.NewBuffer(2, 1, 1, 2, true)
	buf.Images[0].Fill(3)
	buf.Images[1].Fill(4)
	set := newSetFromBuffer(buf)
	fc := NewForEachComplexComponent(ComponentAmplitude)
	fc.Add(&funcAction{name: "flag", fn: func(s *artifacts.Set) error {
		if s.Contaminated.Components != 1 {
			return fmt.Errorf("got %d components", s.Contaminated.Components)
		}
		if v := s.Contaminated.Images[0].At(1, 0); v != 5 {
			return fmt.Errorf("amplitude = %g, want 5", v)
		}
		s.Contaminated.Masks[0].Set(1, 0, true)
		return nil
	}})
	if err := perform(fc, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	if diff := cmp.Diff([]int{1}, flaggedIndices(set.Contaminated.Masks[0])); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
	if len(set.Contaminated.Images) != 2 || set.Contaminated.Images[1].At(0, 0) != 4 {
		t.Error("complex images were not kept")
	}
}

func TestForEachComplexComponentWritesBackImaginary(t *testing.T) {
	buf := tf.NewBuffer(2, 1, 1, 2, true)
	buf.Images[1].Fill(4)
	set := newSetFromBuffer(buf)
	fc := NewForEachComplexComponent(ComponentImaginary)
	fc.Add(&funcAction{name: "halve", fn: func(s *artifacts.Set) error {
		s.Contaminated.Images[0].Fill(2)
		return nil
	}})
	if err := perform(fc, set); err != nil {
		t.Fatalf("Perform() failed: %v", err)
	}
	if v := set.Contaminated.Images[1].At(0, 0); v != 2 {
		t.Errorf("imaginary part = %g, want 2", v)
	}
	if v := set.Contaminated.Images[0].At(0, 0); v != 0 {
		t.Errorf("real part = %g, want 0", v)
	}
}

func TestForEachComplexComponentUnknown(t *testing.T) {
	set := newSetFromBuffer(tf.NewBuffer(2, 1, 1, 2, true))
	if err := perform(NewForEachComplexComponent("magnitude-ish"), set); !errors.Is(err, ErrConfiguration) {
		t.Errorf("got %v, want configuration error", err)
	}
}
