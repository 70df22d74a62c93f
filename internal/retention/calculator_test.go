package retention

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestExitTrigger: exit 2020-06-01 + 10 years = 2030-06-01, deferred while
// no exit date exists, correct after recomputation.
func TestExitTrigger(t *testing.T) {
	policy := Policy{Trigger: TriggerExit, Years: 10}
	dates := Dates{CreatedAt: date(2019, 3, 1)}

	// Employee still active: expiry deferred.
	expiry, err := Expiry(policy, dates)
	if err != nil {
		t.Fatalf("Expiry: %v", err)
	}
	if expiry != nil {
		t.Fatalf("expiry = %v, want nil while exit date unknown", expiry)
	}

	// Exit date becomes known: recomputation yields the exact value.
	exit := date(2020, 6, 1)
	dates.ExitDate = &exit
	expiry, err = Expiry(policy, dates)
	if err != nil {
		t.Fatalf("Expiry after exit set: %v", err)
	}
	if expiry == nil || !expiry.Equal(date(2030, 6, 1)) {
		t.Errorf("expiry = %v, want 2030-06-01", expiry)
	}
}

func TestCreationTrigger(t *testing.T) {
	expiry, err := Expiry(
		Policy{Trigger: TriggerCreation, Years: 6},
		Dates{CreatedAt: date(2024, 1, 15)},
	)
	if err != nil {
		t.Fatalf("Expiry: %v", err)
	}
	if expiry == nil || !expiry.Equal(date(2030, 1, 15)) {
		t.Errorf("expiry = %v, want 2030-01-15", expiry)
	}
}

func TestDocumentDateTrigger(t *testing.T) {
	docDate := date(2023, 12, 31)
	expiry, err := Expiry(
		Policy{Trigger: TriggerDocumentDate, Years: 3},
		Dates{CreatedAt: date(2024, 2, 1), DocumentDate: &docDate},
	)
	if err != nil {
		t.Fatalf("Expiry: %v", err)
	}
	if expiry == nil || !expiry.Equal(date(2026, 12, 31)) {
		t.Errorf("expiry = %v, want 2026-12-31", expiry)
	}

	// Without a document date the expiry is deferred, not an error.
	expiry, err = Expiry(
		Policy{Trigger: TriggerDocumentDate, Years: 3},
		Dates{CreatedAt: date(2024, 2, 1)},
	)
	if err != nil {
		t.Fatalf("Expiry without document date: %v", err)
	}
	if expiry != nil {
		t.Errorf("expiry = %v, want nil", expiry)
	}
}

// TestIdempotent verifies repeated invocation with identical inputs yields
// identical results.
func TestIdempotent(t *testing.T) {
	exit := date(2021, 9, 30)
	p := Policy{Trigger: TriggerExit, Years: 10}
	d := Dates{CreatedAt: date(2020, 1, 1), ExitDate: &exit}

	first, err := Expiry(p, d)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Expiry(p, d)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Equal(*second) {
		t.Errorf("results differ: %v vs %v", first, second)
	}
}

func TestUnknownTrigger(t *testing.T) {
	if _, err := Expiry(Policy{Trigger: "fiscal-year", Years: 1}, Dates{CreatedAt: date(2024, 1, 1)}); err == nil {
		t.Fatal("expected error for unknown trigger")
	}
}

func TestZeroCreationDate(t *testing.T) {
	if _, err := Expiry(Policy{Trigger: TriggerCreation, Years: 1}, Dates{}); err == nil {
		t.Fatal("expected error for zero reference date")
	}
}
