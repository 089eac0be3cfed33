package engine

// Feature gates keyed to global level. Everyone starts with daily
// activities; longer cadences and idle accrual unlock as the character
// levels up.
const (
	LevelPassive        = 3
	LevelWeeklyCadence  = 5
	LevelMonthlyCadence = 8
)

// CadenceUnlockLevels maps cadences to the global level required.
var CadenceUnlockLevels = map[Cadence]int{
	CadenceDaily:   0,
	CadenceWeekly:  LevelWeeklyCadence,
	CadenceMonthly: LevelMonthlyCadence,
}

// CanUseCadence returns an error if the global level is too low for the
// requested cadence.
func CanUseCadence(level int, cadence Cadence) error {
	req, ok := CadenceUnlockLevels[cadence]
	if !ok {
		return GateError{Feature: string(cadence)}
	}
	if level < req {
		return GateError{Feature: string(cadence) + " activities", RequiredLevel: req}
	}
	return nil
}

// PassiveUnlocked reports whether idle accrual is available at the level.
func PassiveUnlocked(level int) bool {
	return level >= LevelPassive
}
