package prefz

import "testing"

func TestObservableBound(t *testing.T) {
	if ObservableBound.Name() != "prefz.observable.bound" {
		t.Errorf("expected name 'prefz.observable.bound', got %q", ObservableBound.Name())
	}
}

func TestObservableClosed(t *testing.T) {
	if ObservableClosed.Name() != "prefz.observable.closed" {
		t.Errorf("expected name 'prefz.observable.closed', got %q", ObservableClosed.Name())
	}
}

func TestSubscriberAdded(t *testing.T) {
	if SubscriberAdded.Name() != "prefz.observable.subscriber.added" {
		t.Errorf("expected name 'prefz.observable.subscriber.added', got %q", SubscriberAdded.Name())
	}
}

func TestValueChanged(t *testing.T) {
	if ValueChanged.Name() != "prefz.value.changed" {
		t.Errorf("expected name 'prefz.value.changed', got %q", ValueChanged.Name())
	}
}

func TestExternalChangeApplied(t *testing.T) {
	if ExternalChangeApplied.Name() != "prefz.value.external.applied" {
		t.Errorf("expected name 'prefz.value.external.applied', got %q", ExternalChangeApplied.Name())
	}
}

func TestDecodeFailed(t *testing.T) {
	if DecodeFailed.Name() != "prefz.codec.decode.failed" {
		t.Errorf("expected name 'prefz.codec.decode.failed', got %q", DecodeFailed.Name())
	}
}

func TestEncodeFailed(t *testing.T) {
	if EncodeFailed.Name() != "prefz.codec.encode.failed" {
		t.Errorf("expected name 'prefz.codec.encode.failed', got %q", EncodeFailed.Name())
	}
}
