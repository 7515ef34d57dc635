package schedule

import (
	"math"
	"regexp"
	"strconv"

	"github.com/dawaii/dawaii/internal/platform/fault"
)

// QuantityPolicy controls how many stock units one administration consumes.
type QuantityPolicy int

const (
	// QuantityUnitDose treats every administration as exactly one stock
	// unit, regardless of the dosage text. This is the default: stock is
	// counted in doses, so "500 mg" taken from a stock of 10 tablets
	// consumes 1 tablet.
	QuantityUnitDose QuantityPolicy = iota

	// QuantityFromDosage parses the leading number of the dosage text and
	// consumes that many stock units per administration ("2 tablets" from
	// a stock counted in tablets consumes 2). Falls back to 1 when the
	// dosage has no leading number.
	QuantityFromDosage
)

var leadingQuantity = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)

// PerAdministrationQuantity returns the stock units consumed by a single
// administration under the given policy.
func PerAdministrationQuantity(dosage string, policy QuantityPolicy) float64 {
	if policy != QuantityFromDosage {
		return 1
	}
	m := leadingQuantity.FindStringSubmatch(dosage)
	if m == nil {
		return 1
	}
	qty, err := strconv.ParseFloat(m[1], 64)
	if err != nil || qty <= 0 {
		return 1
	}
	return qty
}

// AdministrationsPerDay returns how many times per day the schedule is
// taken. The dose time list is authoritative; the frequency label is a
// fallback for schedules persisted without times.
func AdministrationsPerDay(s *Schedule) (int, error) {
	if n := len(s.DoseTimes); n > 0 {
		return n, nil
	}
	if n, ok := administrationsPerDay[s.Frequency]; ok {
		return n, nil
	}
	return 0, fault.Validationf("cannot determine administrations per day: no dose times and unknown frequency %q", s.Frequency)
}

// Derive computes the schedule's daily consumption and the whole days of
// stock remaining. Days until depletion is the floor of stock over daily
// consumption: a partial final day does not count as covered.
func Derive(s *Schedule, policy QuantityPolicy) (daily float64, days int, err error) {
	perDay, err := AdministrationsPerDay(s)
	if err != nil {
		return 0, 0, err
	}
	daily = PerAdministrationQuantity(s.Dosage, policy) * float64(perDay)
	if daily <= 0 {
		return 0, 0, fault.Validationf("daily consumption must be positive")
	}
	days = int(math.Floor(s.CurrentStock / daily))
	return daily, days, nil
}

// Refresh recomputes and stores the derived depletion fields on the
// schedule.
func Refresh(s *Schedule, policy QuantityPolicy) error {
	daily, days, err := Derive(s, policy)
	if err != nil {
		return err
	}
	s.DailyConsumption = daily
	s.DaysUntilDepletion = days
	return nil
}
