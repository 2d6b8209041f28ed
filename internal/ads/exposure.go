package ads

// Estimator computes fair-share exposure numbers for the rotating ad board.
// Every active placement gets an equal share of a fixed daily rotation budget,
// so expected impressions shrink proportionally as the board fills up.
type Estimator struct {
	dailyCycles int
}

// NewEstimator derives the daily rotation budget from the consumer's rotation
// interval. A 6 second rotation yields 14400 display opportunities per day.
func NewEstimator(rotationIntervalSeconds int) Estimator {
	cycles := 0
	if rotationIntervalSeconds > 0 {
		cycles = 86400 / rotationIntervalSeconds
	}
	return Estimator{dailyCycles: cycles}
}

// DailyCycles exposes the rotation budget for reporting surfaces.
func (e Estimator) DailyCycles() int {
	return e.dailyCycles
}

// EstimatedDailyExposure returns the expected impressions per day for one
// placement when activeCount placements share the rotation. Zero when nothing
// is active.
func (e Estimator) EstimatedDailyExposure(activeCount int) int {
	if activeCount <= 0 {
		return 0
	}
	return e.dailyCycles / activeCount
}

// EstimatedTotalExposure multiplies the daily estimate over the placement's
// active interval.
func (e Estimator) EstimatedTotalExposure(activeCount, activeDays int) int {
	if activeDays <= 0 {
		return 0
	}
	return e.EstimatedDailyExposure(activeCount) * activeDays
}
