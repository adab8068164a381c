package debug

import (
	"context"
	"errors"
	"testing"
)

func TestMockDispatcher_Script(t *testing.T) {
	m := &MockDispatcher{Responses: []Response{{UsageID: "1"}, {UsageID: "2"}}}
	ctx := context.Background()

	for _, want := range []string{"1", "2", "2"} {
		resp, err := m.Dispatch(ctx, Request{AppID: "x"})
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		if resp.UsageID != want {
			t.Errorf("UsageID = %q, want %q", resp.UsageID, want)
		}
	}
	if m.CallCount() != 3 {
		t.Errorf("CallCount = %d", m.CallCount())
	}

	m.Reset()
	if m.CallCount() != 0 {
		t.Error("Reset kept calls")
	}
	if _, ok := m.LastCall(); ok {
		t.Error("LastCall after Reset")
	}
}

func TestMockDispatcher_Errors(t *testing.T) {
	boom := errors.New("boom")
	m := &MockDispatcher{Err: boom}
	if _, err := m.Dispatch(context.Background(), Request{}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Dispatch(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want canceled", err)
	}
	if m.CallCount() != 1 {
		t.Errorf("cancelled call recorded: %d", m.CallCount())
	}
}
