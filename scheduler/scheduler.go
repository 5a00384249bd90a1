package scheduler

// Package scheduler runs the periodic maintenance jobs of the trend backend:
// - removal of price points and snapshots left behind by untracked symbols
// - trimming of the refresh run history
//
// Market data refreshes are not scheduled here; see services/refresh.
