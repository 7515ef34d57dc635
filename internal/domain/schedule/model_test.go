package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dawaii/dawaii/internal/platform/fault"
)

func validSchedule() *Schedule {
	return &Schedule{
		PatientID:      uuid.New(),
		MedicationName: "Metformin",
		Dosage:         "500 mg",
		DoseTimes:      []DoseTime{{Time: "08:00"}, {Time: "20:00"}},
		CurrentStock:   60,
		StockUnit:      "tablets",
		StartDate:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	if err := validSchedule().Validate(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	endBeforeStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		mutate func(*Schedule)
	}{
		{"missing patient", func(s *Schedule) { s.PatientID = uuid.Nil }},
		{"missing medication name", func(s *Schedule) { s.MedicationName = "" }},
		{"no dose times", func(s *Schedule) { s.DoseTimes = nil }},
		{"unparseable dose time", func(s *Schedule) { s.DoseTimes = []DoseTime{{Time: "8am"}} }},
		{"duplicate dose times", func(s *Schedule) { s.DoseTimes = []DoseTime{{Time: "08:00"}, {Time: "08:00"}} }},
		{"negative stock", func(s *Schedule) { s.CurrentStock = -1 }},
		{"stock above cap", func(s *Schedule) { s.CurrentStock = MaxStock + 1 }},
		{"start too far out", func(s *Schedule) { s.StartDate = now.AddDate(1, 0, 1) }},
		{"end before start", func(s *Schedule) { s.EndDate = &endBeforeStart }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := validSchedule()
			c.mutate(s)
			err := s.Validate(now)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !fault.IsValidation(err) {
				t.Errorf("expected validation classification, got %v", err)
			}
		})
	}
}

func TestValidate_StockCapBoundary(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	s := validSchedule()
	s.CurrentStock = MaxStock
	if err := s.Validate(now); err != nil {
		t.Errorf("stock exactly at cap should pass: %v", err)
	}
}

func TestActiveOn(t *testing.T) {
	end := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	s := validSchedule()
	s.Active = true
	s.EndDate = &end

	cases := []struct {
		day  time.Time
		want bool
	}{
		{time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC), false}, // before start
		{time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), true},    // first day
		{time.Date(2026, 9, 10, 18, 0, 0, 0, time.UTC), true},  // last day inclusive
		{time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC), false},  // past end
	}
	for _, c := range cases {
		if got := s.ActiveOn(c.day); got != c.want {
			t.Errorf("ActiveOn(%s) = %v, want %v", c.day.Format("2006-01-02"), got, c.want)
		}
	}

	s.Active = false
	if s.ActiveOn(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)) {
		t.Error("inactive schedule should never be active")
	}
}

func TestDoseTimeAt(t *testing.T) {
	dt := DoseTime{Time: "08:30"}
	day := time.Date(2026, 8, 31, 17, 45, 0, 0, time.UTC)
	at, err := dt.At(day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Errorf("At() = %s, want %s", at, want)
	}
}
