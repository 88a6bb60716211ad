package datecalc

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParse_WholeDays(t *testing.T) {
	off, err := Parse(json.Number("1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off.Days != 1 || off.Hours != 0 || off.Fractional {
		t.Fatalf("expected 1 whole day, got %+v", off)
	}
}

func TestParse_OneDigitFractionIsHours(t *testing.T) {
	off, err := Parse(json.Number("0.1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off.Days != 0 || off.Hours != 1 || !off.Fractional {
		t.Fatalf("expected 1 hour, got %+v", off)
	}
}

func TestParse_TwoDigitFractionIsHours(t *testing.T) {
	off, err := Parse(json.Number("0.23"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off.Hours != 23 || !off.Fractional {
		t.Fatalf("expected 23 hours, got %+v", off)
	}
}

func TestParse_TrailingZeroDigitsAreSignificant(t *testing.T) {
	// "2.10" means 2 days and 10 hours, even though its numeric value is 2.1.
	off, err := Parse(json.Number("2.10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off.Days != 2 || off.Hours != 10 || !off.Fractional {
		t.Fatalf("expected 2 days 10 hours, got %+v", off)
	}
}

func TestParse_RejectsTooManyHours(t *testing.T) {
	if _, err := Parse(json.Number("0.24")); err == nil {
		t.Fatal("expected error for 24 hours")
	}
	if _, err := Parse(json.Number("0.99")); err == nil {
		t.Fatal("expected error for 99 hours")
	}
}

func TestParse_RejectsNegativeAndLongFractions(t *testing.T) {
	if _, err := Parse(json.Number("-1")); err == nil {
		t.Fatal("expected error for negative offset")
	}
	if _, err := Parse(json.Number("1.123")); err == nil {
		t.Fatal("expected error for three decimal digits")
	}
}

func TestParse_AllZeroFractionIsWholeDay(t *testing.T) {
	off, err := Parse(json.Number("3.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off.Days != 3 || off.Fractional {
		t.Fatalf("expected 3 whole days, got %+v", off)
	}
}

func TestParse_EmptyIsZero(t *testing.T) {
	off, err := Parse(json.Number(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off != (Offset{}) {
		t.Fatalf("expected zero offset, got %+v", off)
	}
}

func TestDue_WholeDaysKeepDateOnly(t *testing.T) {
	base := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	off, _ := Parse(json.Number("1"))

	due := Due(base, off, Offset{}, 0, nil)

	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !due.At.Equal(want) {
		t.Fatalf("expected %v, got %v", want, due.At)
	}
	if due.HasTime {
		t.Fatal("whole-day offset must not carry a time component")
	}
}

func TestDue_WholeDaysWithFixedTime(t *testing.T) {
	base := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	off, _ := Parse(json.Number("2"))
	fixed := "09:15"

	due := Due(base, off, Offset{}, 0, &fixed)

	want := time.Date(2026, 3, 12, 9, 15, 0, 0, time.UTC)
	if !due.At.Equal(want) || !due.HasTime {
		t.Fatalf("expected %v with time, got %v hasTime=%v", want, due.At, due.HasTime)
	}
}

func TestDue_FractionalIgnoresFixedTime(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	off, _ := Parse(json.Number("2.10"))
	fixed := "17:00"

	due := Due(base, off, Offset{}, 0, &fixed)

	// 2 days + 10 hours from the base moment, fixed time ignored.
	want := base.Add(58 * time.Hour)
	if !due.At.Equal(want) || !due.HasTime {
		t.Fatalf("expected %v with derived time, got %v hasTime=%v", want, due.At, due.HasTime)
	}
}

func TestDue_RepeatInstancesWholeDays(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	off, _ := Parse(json.Number("1"))
	interval, _ := Parse(json.Number("1"))

	for i := 0; i < 3; i++ {
		due := Due(base, off, interval, i, nil)
		want := time.Date(2026, 3, 11+i, 0, 0, 0, 0, time.UTC)
		if !due.At.Equal(want) {
			t.Fatalf("instance %d: expected %v, got %v", i, want, due.At)
		}
	}
}

func TestDue_FractionalIntervalForcesHourArithmetic(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	off, _ := Parse(json.Number("1"))
	interval, _ := Parse(json.Number("0.2"))

	due := Due(base, off, interval, 2, nil)

	// 24h + 2*2h from the base moment.
	want := base.Add(28 * time.Hour)
	if !due.At.Equal(want) || !due.HasTime {
		t.Fatalf("expected %v with derived time, got %v hasTime=%v", want, due.At, due.HasTime)
	}
}

func TestStep_FromConfirmedBase(t *testing.T) {
	confirmed := DueDate{At: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC), HasTime: true}
	interval, _ := Parse(json.Number("1"))

	second := Step(confirmed, interval, 1)

	want := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	if !second.At.Equal(want) || !second.HasTime {
		t.Fatalf("expected %v keeping time, got %v hasTime=%v", want, second.At, second.HasTime)
	}
}

func TestStep_FractionalInterval(t *testing.T) {
	confirmed := DueDate{At: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC), HasTime: true}
	interval, _ := Parse(json.Number("0.5"))

	third := Step(confirmed, interval, 2)

	want := confirmed.At.Add(10 * time.Hour)
	if !third.At.Equal(want) {
		t.Fatalf("expected %v, got %v", want, third.At)
	}
}
