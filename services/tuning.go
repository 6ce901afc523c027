package services

import "time"

// War tuning. Fixed values; tunable via config/env later.
const (
	WarDeclarationCost int64 = 500_000
	WarPrizePool       int64 = 250_000

	WarPrepWindow   = 24 * time.Hour
	WarActiveWindow = 48 * time.Hour
)

// POI capture and control accrual.
const (
	CaptureIncrement         = 10
	CaptureEngineerIncrement = 15 // role-boosted increment policy
	CapturePointsPerValue    = 25

	ControlPointRate    int64 = 5
	ControlTickInterval       = time.Hour
)

// Resolution economics. The win margin avoids flip-resolution on near-ties:
// a side wins only if its score beats the other side's by more than 10%.
const (
	WinMarginRatio              = 1.1
	FundSeizurePct              = 0.20
	StalematePenalty      int64 = 100_000
	StalemateControlSplit       = 50

	TreatyDuration          = 7 * 24 * time.Hour
	StalemateTreatyDuration = 3 * 24 * time.Hour
	LoserDebuffDuration     = 24 * time.Hour

	RevengeBonusPct      = 10.0
	RevengeBonusDuration = 30 * 24 * time.Hour
)

// Missions.
const (
	RoleSynergyBonus        = 0.15
	EngineerFlatBonus int64 = 5
)
