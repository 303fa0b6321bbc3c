package models

// Frequency enumerates the supported recurrence intervals.
type Frequency string

const (
	FrequencyMonthly      Frequency = "monthly"
	FrequencyBimonthly    Frequency = "bimonthly"
	FrequencyQuarterly    Frequency = "quarterly"
	FrequencySemiannually Frequency = "semiannually"
	FrequencyYearly       Frequency = "yearly"
)

// MonthStep returns the number of months between occurrences, and false for
// an unknown frequency.
func (f Frequency) MonthStep() (int, bool) {
	switch f {
	case FrequencyMonthly:
		return 1, true
	case FrequencyBimonthly:
		return 2, true
	case FrequencyQuarterly:
		return 3, true
	case FrequencySemiannually:
		return 6, true
	case FrequencyYearly:
		return 12, true
	}
	return 0, false
}

// RecurringTransaction is a rule template that is expanded into concrete
// transactions, one per elapsed occurrence.
//
// LastProcessedDate is the expansion checkpoint: it only ever advances, is
// always >= StartDate once set, and makes expansion idempotent: re-running
// it resumes from the checkpoint instead of re-emitting old occurrences.
type RecurringTransaction struct {
	Meta

	AmountCents       int64     `json:"amountCents"`
	Description       string    `json:"description"`
	CategoryID        string    `json:"categoryId"`
	Frequency         Frequency `json:"frequency"`
	StartDate         string    `json:"startDate"`
	LastProcessedDate string    `json:"lastProcessedDate,omitempty"`
	OwnerID           string    `json:"ownerId"`
}
