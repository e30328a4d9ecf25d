package gpio

import (
	"errors"
	"testing"
)

func TestFakePortReadWrite(t *testing.T) {
	f := NewFakePort()
	f.SetupInput(DefaultPinMotion, PullDown)
	f.SetupOutput(DefaultPinRelay1, Low)

	high, err := f.Read(DefaultPinMotion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if high {
		t.Error("input should start low")
	}

	f.SetInput(DefaultPinMotion, true)
	high, _ = f.Read(DefaultPinMotion)
	if !high {
		t.Error("expected input high after SetInput")
	}

	if err := f.Write(DefaultPinRelay1, High); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l, _ := f.Output(DefaultPinRelay1); l != High {
		t.Errorf("output: got %v, want high", l)
	}
	if len(f.Writes) != 1 || f.Writes[0] != (WriteRecord{Pin: DefaultPinRelay1, Level: High}) {
		t.Errorf("unexpected writes: %+v", f.Writes)
	}
	if f.PullOf(DefaultPinMotion) != PullDown {
		t.Error("expected pull-down on motion pin")
	}
}

func TestFakePortUnknownPin(t *testing.T) {
	f := NewFakePort()

	if _, err := f.Read(99); !errors.Is(err, ErrUnknownPin) {
		t.Errorf("read: expected ErrUnknownPin, got %v", err)
	}
	if err := f.Write(99, Low); !errors.Is(err, ErrUnknownPin) {
		t.Errorf("write: expected ErrUnknownPin, got %v", err)
	}
	if err := f.OnRisingEdge(99, func() {}); !errors.Is(err, ErrUnknownPin) {
		t.Errorf("watch: expected ErrUnknownPin, got %v", err)
	}
}

func TestFakePortErrors(t *testing.T) {
	f := NewFakePort()
	f.SetupInput(DefaultPinMotion, PullDown)
	f.SetupOutput(DefaultPinRelay1, Low)
	f.SetupOutput(DefaultPinRelay2, Low)

	f.ReadError = errors.New("simulated read error")
	if _, err := f.Read(DefaultPinMotion); err == nil || err.Error() != "simulated read error" {
		t.Errorf("unexpected read error: %v", err)
	}

	f.WriteError = errors.New("simulated write error")
	f.FailPin = DefaultPinRelay2
	if err := f.Write(DefaultPinRelay1, High); err != nil {
		t.Errorf("relay 1 should not fail: %v", err)
	}
	if err := f.Write(DefaultPinRelay2, High); err == nil {
		t.Error("relay 2 should fail")
	}
}

func TestFakePortRisingEdge(t *testing.T) {
	f := NewFakePort()
	f.SetupInput(DefaultPinOverride, PullDown)

	fired := 0
	if err := f.OnRisingEdge(DefaultPinOverride, func() { fired++ }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.SetInput(DefaultPinOverride, true)
	f.SetInput(DefaultPinOverride, true) // still high, no edge
	f.SetInput(DefaultPinOverride, false)
	f.Press(DefaultPinOverride)

	if fired != 2 {
		t.Errorf("expected 2 rising edges, got %d", fired)
	}
}

func TestFakePortClose(t *testing.T) {
	f := NewFakePort()

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestLevelString(t *testing.T) {
	if Low.String() != "low" || High.String() != "high" {
		t.Errorf("got %s/%s", Low, High)
	}
}
