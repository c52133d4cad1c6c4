package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Defaults applied when a field is absent from the message
const (
	DefaultOrigin      = "กรุงเทพ"
	DefaultDestination = "ภายในประเทศไทย"
	Unspecified        = "ไม่ระบุ"
	DefaultTravelers   = 1
)

const dateLayout = "2006-01-02"

var (
	originRe      = regexp.MustCompile(`ต้นทาง:\s*([^\n]+)`)
	destinationRe = regexp.MustCompile(`ปลายทาง:\s*([^\n]+)`)
	datesRe       = regexp.MustCompile(`ช่วงเวลาเดินทาง:.*?วันที่:\s*(\d{4}-\d{2}-\d{2})(?:\s*ถึงวันที่\s*(\d{4}-\d{2}-\d{2}))?`)
	budgetRe      = regexp.MustCompile(`งบประมาณรวม:\s*ไม่เกิน\s*(\d+,?\d*)\s*บาท`)
	travelersRe   = regexp.MustCompile(`จำนวนผู้เดินทาง:\s*(\d+)`)
	preferencesRe = regexp.MustCompile(`ความต้องการพิเศษ:([^\n]+)`)
	preferenceSep = regexp.MustCompile(`[,•]`)
)

// Fields is the fixed-shape record extracted from a user message.
// Every field has a default; consumers must tolerate all defaults.
type Fields struct {
	Origin       string          `json:"origin"`
	Destination  string          `json:"destination"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	Budget       string          `json:"budget"`
	BudgetAmount decimal.Decimal `json:"-"`
	NumTravelers int             `json:"num_travelers"`
	Preferences  []string        `json:"preferences"`
}

// Defaults returns a record with every field at its default value
func Defaults() Fields {
	return Fields{
		Origin:       DefaultOrigin,
		Destination:  DefaultDestination,
		StartDate:    Unspecified,
		EndDate:      Unspecified,
		Budget:       Unspecified,
		NumTravelers: DefaultTravelers,
		Preferences:  []string{},
	}
}

// ExtractFields parses the labelled travel form out of free text
func ExtractFields(text string) Fields {
	f := Defaults()

	if m := originRe.FindStringSubmatch(text); m != nil {
		f.Origin = strings.TrimSpace(m[1])
	}
	if m := destinationRe.FindStringSubmatch(text); m != nil {
		f.Destination = strings.TrimSpace(m[1])
	}
	if m := datesRe.FindStringSubmatch(text); m != nil {
		f.StartDate = m[1]
		f.EndDate = m[1]
		if m[2] != "" {
			f.EndDate = m[2]
		}
	}
	if m := budgetRe.FindStringSubmatch(text); m != nil {
		f.Budget = strings.TrimSpace(m[1])
		if amount, err := decimal.NewFromString(strings.ReplaceAll(f.Budget, ",", "")); err == nil {
			f.BudgetAmount = amount
		}
	}
	if m := travelersRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			f.NumTravelers = n
		}
	}
	if m := preferencesRe.FindStringSubmatch(text); m != nil {
		f.Preferences = lo.FilterMap(preferenceSep.Split(m[1], -1), func(p string, _ int) (string, bool) {
			p = strings.TrimSpace(p)
			return p, p != ""
		})
	}

	return f
}

// HasAny reports whether at least one field differs from its default
func (f Fields) HasAny() bool {
	d := Defaults()
	return f.Origin != d.Origin ||
		f.Destination != d.Destination ||
		f.StartDate != d.StartDate ||
		f.EndDate != d.EndDate ||
		f.Budget != d.Budget ||
		f.NumTravelers != d.NumTravelers ||
		len(f.Preferences) > 0
}

// HasDestination reports whether a concrete destination was given
func (f Fields) HasDestination() bool {
	return f.Destination != "" && f.Destination != DefaultDestination && f.Destination != Unspecified
}

// TripDays returns the inclusive number of days between the dates, or 0 when
// either date is missing or the range is inverted.
func (f Fields) TripDays() int {
	start, err := time.Parse(dateLayout, f.StartDate)
	if err != nil {
		return 0
	}
	end, err := time.Parse(dateLayout, f.EndDate)
	if err != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// PerDayBudget divides the budget by the trip length. ok is false when either
// the amount or the dates are unknown.
func (f Fields) PerDayBudget() (decimal.Decimal, bool) {
	days := f.TripDays()
	if days == 0 || f.BudgetAmount.IsZero() {
		return decimal.Zero, false
	}
	return f.BudgetAmount.Div(decimal.NewFromInt(int64(days))).Round(2), true
}

// Merge overlays the non-default fields of update onto f
func (f Fields) Merge(update Fields) Fields {
	d := Defaults()
	if update.Origin != d.Origin {
		f.Origin = update.Origin
	}
	if update.Destination != d.Destination {
		f.Destination = update.Destination
	}
	if update.StartDate != d.StartDate {
		f.StartDate = update.StartDate
		f.EndDate = update.EndDate
	}
	if update.Budget != d.Budget {
		f.Budget = update.Budget
		f.BudgetAmount = update.BudgetAmount
	}
	if update.NumTravelers != d.NumTravelers {
		f.NumTravelers = update.NumTravelers
	}
	if len(update.Preferences) > 0 {
		f.Preferences = update.Preferences
	}
	return f
}
