package main

import "fmt"

// FilterCriteria holds the user-configured winnability bounds. Min/max pairs
// where min exceeds max are degenerate but valid: nothing passes. Nil max
// bounds are unset and exclude nothing.
type FilterCriteria struct {
	MinDistanceM float64
	MaxDistanceM float64
	MinAttempts  int
	MaxAttempts  int
	MaxHeartRate *int
	MaxPower     *int
}

func (fc FilterCriteria) validate() error {
	if fc.MinDistanceM < 0 || fc.MaxDistanceM < 0 {
		return fmt.Errorf("distance bounds must be non-negative, got %v..%v", fc.MinDistanceM, fc.MaxDistanceM)
	}
	if fc.MinAttempts < 0 || fc.MaxAttempts < 0 {
		return fmt.Errorf("attempt bounds must be non-negative, got %d..%d", fc.MinAttempts, fc.MaxAttempts)
	}
	if fc.MaxHeartRate != nil && *fc.MaxHeartRate <= 0 {
		return fmt.Errorf("max heart rate must be positive, got %d", *fc.MaxHeartRate)
	}
	if fc.MaxPower != nil && *fc.MaxPower <= 0 {
		return fmt.Errorf("max power must be positive, got %d", *fc.MaxPower)
	}
	return nil
}

// inRanges reports whether the segment's distance and attempt count fall
// inside the configured ranges.
func (fc FilterCriteria) inRanges(d SegmentDetail) bool {
	return fc.MinDistanceM <= d.DistanceM && d.DistanceM <= fc.MaxDistanceM &&
		fc.MinAttempts <= d.AttemptCount && d.AttemptCount <= fc.MaxAttempts
}

// accepts reports whether the segment passes all criteria. An absent leader
// reading never fails the corresponding max bound: unknown data cannot
// disqualify a segment.
func (fc FilterCriteria) accepts(d SegmentDetail) bool {
	if !fc.inRanges(d) {
		return false
	}
	if fc.MaxHeartRate != nil && d.LeaderHR != nil && *d.LeaderHR > *fc.MaxHeartRate {
		return false
	}
	if fc.MaxPower != nil && d.LeaderPower != nil && *d.LeaderPower > *fc.MaxPower {
		return false
	}
	return true
}

// filterSegments returns the accepted subset in input order.
func filterSegments(details []SegmentDetail, fc FilterCriteria) []SegmentDetail {
	out := make([]SegmentDetail, 0, len(details))
	for _, d := range details {
		if fc.accepts(d) {
			out = append(out, d)
		}
	}
	return out
}
