package pipeline

import "testing"

func TestNewStageMachine_InitialStageIsIdle(t *testing.T) {
	sm := NewStageMachine()
	if sm.Current() != StageIdle {
		t.Fatalf("expected initial stage Idle, got %s", sm.Current())
	}
}

// advanceTo 通过合法转换推进到目标阶段。
func advanceTo(t *testing.T, sm *StageMachine, target Stage) {
	t.Helper()
	path := map[Stage][]Stage{
		StageIdle:       nil,
		StageCollecting: {StageCollecting},
		StageGenerating: {StageCollecting, StageGenerating},
		StageDelivering: {StageCollecting, StageGenerating, StageDelivering},
		StageRecording:  {StageCollecting, StageGenerating, StageDelivering, StageRecording},
		StageDone:       {StageCollecting, StageGenerating, StageDelivering, StageDone},
		StageFailed:     {StageFailed},
	}
	for _, s := range path[target] {
		if !sm.Transition(s) {
			t.Fatalf("failed to advance to %s", s)
		}
	}
}

func TestStageMachine_ValidTransitions(t *testing.T) {
	tests := []struct {
		from, to Stage
	}{
		{StageIdle, StageCollecting},
		{StageIdle, StageGenerating},
		{StageCollecting, StageGenerating},
		{StageCollecting, StageDelivering},
		{StageGenerating, StageDelivering},
		{StageDelivering, StageRecording},
		{StageDelivering, StageDone},
		{StageRecording, StageDone},
		{StageGenerating, StageFailed},
		{StageDelivering, StageFailed},
	}

	for _, tt := range tests {
		sm := NewStageMachine()
		advanceTo(t, sm, tt.from)

		if !sm.Transition(tt.to) {
			t.Errorf("transition %s → %s should be valid", tt.from, tt.to)
		}
		if sm.Current() != tt.to {
			t.Errorf("expected stage %s, got %s", tt.to, sm.Current())
		}
	}
}

func TestStageMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		from, to Stage
	}{
		{StageIdle, StageRecording},
		{StageIdle, StageDelivering},
		{StageCollecting, StageRecording},
		{StageGenerating, StageRecording},
		{StageGenerating, StageGenerating},
		{StageRecording, StageDelivering},
		{StageDone, StageCollecting},
		{StageDone, StageFailed},
		{StageFailed, StageRecording},
		{StageFailed, StageFailed},
	}

	for _, tt := range tests {
		sm := NewStageMachine()
		advanceTo(t, sm, tt.from)

		if sm.Transition(tt.to) {
			t.Errorf("transition %s → %s should be invalid", tt.from, tt.to)
		}
		if sm.Current() != tt.from {
			t.Errorf("stage should remain %s after invalid transition, got %s", tt.from, sm.Current())
		}
	}
}

func TestStageMachine_OnChange(t *testing.T) {
	sm := NewStageMachine()

	var gotFrom, gotTo Stage
	called := false
	sm.SetOnChange(func(from, to Stage) {
		called = true
		gotFrom = from
		gotTo = to
	})

	sm.Transition(StageCollecting)

	if !called {
		t.Fatal("onChange callback was not called")
	}
	if gotFrom != StageIdle || gotTo != StageCollecting {
		t.Errorf("expected Idle → Collecting, got %s → %s", gotFrom, gotTo)
	}
}

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageIdle, "Idle"},
		{StageRecording, "Recording"},
		{StageFailed, "Failed"},
		{Stage(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", tt.stage, got, tt.want)
		}
	}
}
