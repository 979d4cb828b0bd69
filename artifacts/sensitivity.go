package artifacts

// SensitivityGuard snapshots the sensitivity of a set so that it can be put back
// on every exit path of a scope:
//
//	guard := set.GuardSensitivity()
//	defer guard.Restore()
type SensitivityGuard struct {
	set   *Set
	saved float64
}

func (s *Set) GuardSensitivity() SensitivityGuard {
	return SensitivityGuard{set: s, saved: s.Sensitivity}
}

// Saved returns the sensitivity at the time the guard was taken.
func (g SensitivityGuard) Saved() float64 {
	return g.saved
}

func (g SensitivityGuard) Restore() {
	g.set.Sensitivity = g.saved
}
