package prefz

import (
	"errors"
	"testing"
)

func TestErrorRing_NilSafe(t *testing.T) {
	var r *errorRing

	// All operations should be safe on nil
	r.push(errors.New("test"))

	if r.all() != nil {
		t.Error("expected nil from nil ring")
	}
}

func TestErrorRing_ZeroSize(t *testing.T) {
	if r := newErrorRing(0); r != nil {
		t.Error("expected nil ring for size 0")
	}
}

func TestErrorRing_NegativeSize(t *testing.T) {
	if r := newErrorRing(-1); r != nil {
		t.Error("expected nil ring for negative size")
	}
}

func TestErrorRing_SingleError(t *testing.T) {
	r := newErrorRing(3)

	r.push(errors.New("error1"))

	errs := r.all()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if errs[0].Error() != "error1" {
		t.Error("expected same error instance")
	}
}

func TestErrorRing_WrapsWhenFull(t *testing.T) {
	r := newErrorRing(2)

	r.push(errors.New("error1"))
	r.push(errors.New("error2"))
	r.push(errors.New("error3"))

	errs := r.all()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	if errs[0].Error() != "error2" {
		t.Errorf("expected oldest retained to be error2, got %q", errs[0].Error())
	}
	if errs[1].Error() != "error3" {
		t.Errorf("expected newest to be error3, got %q", errs[1].Error())
	}
}
