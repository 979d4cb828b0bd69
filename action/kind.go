package action

// Kind tags an action type. The set is closed; it is used by the strategy
// (de)serializer to pick a constructor and is not consulted during execution.
type Kind string

const (
	KindSequence                Kind = "sequence"
	KindForEachBaseline         Kind = "for-each-baseline"
	KindForEachPolarization     Kind = "for-each-polarization"
	KindForEachComplexComponent Kind = "for-each-complex-component"
	KindIterationBlock          Kind = "iteration"
	KindChangeResolution        Kind = "change-resolution"
	KindCutArea                 Kind = "cut-area"
	KindCombineFlagResults      Kind = "combine-flag-results"
	KindSumThreshold            Kind = "sumthreshold"
	KindStatisticalFlag         Kind = "statistical-flag"
	KindSlidingWindowFit        Kind = "sliding-window-fit"
	KindSetFlagging             Kind = "set-flagging"
	KindSetImage                Kind = "set-image"
	KindTimeProfile             Kind = "time-profile"
)
