package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func baseCriteria() FilterCriteria {
	return FilterCriteria{
		MinDistanceM: 500,
		MaxDistanceM: 2000,
		MinAttempts:  1,
		MaxAttempts:  50,
	}
}

func TestFilterRejectsTooManyAttempts(t *testing.T) {
	crit := baseCriteria()
	d := SegmentDetail{ID: 1, DistanceM: 831, AttemptCount: 139}

	assert.False(t, crit.accepts(d), "distance passes but attempts exceed the max")
}

func TestFilterAcceptsAbsentHeartRate(t *testing.T) {
	crit := baseCriteria()
	crit.MaxHeartRate = intPtr(160)
	d := SegmentDetail{ID: 2, DistanceM: 1232, AttemptCount: 26}

	assert.True(t, crit.accepts(d), "absent HR must not block an HR filter")
}

func TestFilterAbsentFieldSemantics(t *testing.T) {
	crit := baseCriteria()
	crit.MaxHeartRate = intPtr(100)

	noHR := SegmentDetail{DistanceM: 1000, AttemptCount: 10}
	assert.True(t, crit.accepts(noHR))

	highHR := noHR
	highHR.LeaderHR = intPtr(150)
	assert.False(t, crit.accepts(highHR))

	atBound := noHR
	atBound.LeaderHR = intPtr(100)
	assert.True(t, crit.accepts(atBound), "max bound is inclusive")
}

func TestFilterPowerBound(t *testing.T) {
	crit := baseCriteria()
	crit.MaxPower = intPtr(300)

	d := SegmentDetail{DistanceM: 1000, AttemptCount: 10}
	assert.True(t, crit.accepts(d))

	d.LeaderPower = intPtr(301)
	assert.False(t, crit.accepts(d))

	d.LeaderPower = intPtr(300)
	assert.True(t, crit.accepts(d))

	// A parsed zero is a real reading, not an absence marker.
	d.LeaderPower = intPtr(0)
	assert.True(t, crit.accepts(d))
}

func TestFilterDistanceBounds(t *testing.T) {
	crit := baseCriteria()

	assert.True(t, crit.accepts(SegmentDetail{DistanceM: 500, AttemptCount: 1}))
	assert.True(t, crit.accepts(SegmentDetail{DistanceM: 2000, AttemptCount: 50}))
	assert.False(t, crit.accepts(SegmentDetail{DistanceM: 499.9, AttemptCount: 10}))
	assert.False(t, crit.accepts(SegmentDetail{DistanceM: 2000.1, AttemptCount: 10}))
	assert.False(t, crit.accepts(SegmentDetail{DistanceM: 1000, AttemptCount: 0}))
}

func TestFilterDegenerateRangeIsEmpty(t *testing.T) {
	crit := FilterCriteria{
		MinDistanceM: 2000,
		MaxDistanceM: 500,
		MinAttempts:  1,
		MaxAttempts:  50,
	}
	require.NoError(t, crit.validate())

	details := []SegmentDetail{
		{DistanceM: 1000, AttemptCount: 10},
		{DistanceM: 600, AttemptCount: 5},
	}
	assert.Empty(t, filterSegments(details, crit))
}

func TestFilterPreservesOrder(t *testing.T) {
	crit := baseCriteria()
	details := []SegmentDetail{
		{ID: 3, DistanceM: 900, AttemptCount: 5},
		{ID: 1, DistanceM: 100, AttemptCount: 5},
		{ID: 2, DistanceM: 1500, AttemptCount: 20},
	}

	got := filterSegments(details, crit)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
}

func TestFilterMonotonicity(t *testing.T) {
	crit := baseCriteria()
	details := []SegmentDetail{
		{ID: 1, DistanceM: 831, AttemptCount: 39},
		{ID: 2, DistanceM: 1232, AttemptCount: 26, LeaderHR: intPtr(170)},
		{ID: 3, DistanceM: 1800, AttemptCount: 49},
	}
	crit.MaxHeartRate = intPtr(160)

	narrow := filterSegments(details, crit)

	wider := crit
	wider.MaxAttempts = 500
	wider.MaxHeartRate = intPtr(200)
	wide := filterSegments(details, wider)

	for _, d := range narrow {
		assert.Contains(t, wide, d, "widening a bound must not drop segment %d", d.ID)
	}
}

func TestFilterCriteriaValidate(t *testing.T) {
	crit := baseCriteria()
	require.NoError(t, crit.validate())

	bad := crit
	bad.MinDistanceM = -1
	assert.Error(t, bad.validate())

	bad = crit
	bad.MaxAttempts = -5
	assert.Error(t, bad.validate())

	bad = crit
	bad.MaxHeartRate = intPtr(0)
	assert.Error(t, bad.validate())

	bad = crit
	bad.MaxPower = intPtr(-100)
	assert.Error(t, bad.validate())
}
