package validator

import "testing"

func TestValid_NoErrors(t *testing.T) {
	v := New()
	if !v.Valid() {
		t.Fatalf("fresh validator must be valid")
	}
}

func TestCheck_RecordsFailures(t *testing.T) {
	v := New()
	v.Check(true, "ok_field", "should not appear")
	v.Check(false, "bad_field", "must be provided")

	if v.Valid() {
		t.Fatalf("validator with a failed check must not be valid")
	}
	if _, ok := v.Errors["ok_field"]; ok {
		t.Fatalf("passing check must not record an error")
	}
	if msg := v.Errors["bad_field"]; msg != "must be provided" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestAddError_KeepsFirstMessage(t *testing.T) {
	v := New()
	v.AddError("field", "first")
	v.AddError("field", "second")

	if msg := v.Errors["field"]; msg != "first" {
		t.Fatalf("first message must win, got %q", msg)
	}
}
