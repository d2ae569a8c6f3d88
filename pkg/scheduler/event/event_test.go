package event

import (
	"testing"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	sink := Multi{r, Discard{}, NewLogSink()}

	sink.Emit(Event{Kind: PhaseStarted, Phase: "foundation"})
	sink.Emit(Event{Kind: AssignmentCommitted, Troop: "A", Activity: "Archery", Slot: "Mon-1"})
	sink.Emit(Event{Kind: AssignmentForced, Troop: "A", Activity: "Reflection", Slot: "Fri-1"})
	sink.Emit(Event{Kind: AssignmentCommitted, Troop: "B", Activity: "Delta", Slot: "Tue-1"})

	tests := []struct {
		name string
		kind Kind
		want int
	}{
		{"阶段事件", PhaseStarted, 1},
		{"安排事件", AssignmentCommitted, 2},
		{"强制事件", AssignmentForced, 1},
		{"无修复事件", RepairAction, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Count(tt.kind); got != tt.want {
				t.Errorf("Count(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}

	r.Reset()
	if len(r.Events) != 0 {
		t.Error("Reset() should clear events")
	}
}
