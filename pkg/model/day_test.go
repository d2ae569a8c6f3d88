package model

import (
	"testing"
)

func TestAllSlots(t *testing.T) {
	slots := AllSlots()
	if len(slots) != 14 {
		t.Fatalf("len(AllSlots()) = %d, want 14", len(slots))
	}
	for i, s := range slots {
		if s.Ordinal() != i {
			t.Errorf("%s.Ordinal() = %d, want %d", s, s.Ordinal(), i)
		}
	}
	if got := len(SlotsOn(Thursday)); got != 2 {
		t.Errorf("Thursday slots = %d, want 2", got)
	}
}

func TestParseDay(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Day
		wantErr bool
	}{
		{"全称", "Monday", Monday, false},
		{"缩写", "fri", Friday, false},
		{"带空格", " Thursday ", Thursday, false},
		{"无效", "Sunday", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDay(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDay(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDay(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSpanSlots(t *testing.T) {
	tests := []struct {
		name   string
		start  TimeSlot
		count  int
		wantOK bool
	}{
		{"单时段", NewSlot(Monday, 3), 1, true},
		{"两时段从第一时段", NewSlot(Monday, 1), 2, true},
		{"两时段越界", NewSlot(Monday, 3), 2, false},
		{"三时段整天", NewSlot(Tuesday, 1), 3, true},
		{"短日三时段", NewSlot(Thursday, 1), 3, false},
		{"无效时段", NewSlot(Thursday, 3), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, ok := SpanSlots(tt.start, tt.count)
			if ok != tt.wantOK {
				t.Fatalf("SpanSlots(%s, %d) ok = %v, want %v", tt.start, tt.count, ok, tt.wantOK)
			}
			if ok && len(slots) != tt.count {
				t.Errorf("len = %d, want %d", len(slots), tt.count)
			}
		})
	}
}

func TestTimeSlot_Neighbors(t *testing.T) {
	s := NewSlot(Wednesday, 2)
	prev, ok := s.Prev()
	if !ok || prev != NewSlot(Wednesday, 1) {
		t.Errorf("Prev() = %v, %v", prev, ok)
	}
	next, ok := s.Next()
	if !ok || next != NewSlot(Wednesday, 3) {
		t.Errorf("Next() = %v, %v", next, ok)
	}
	if _, ok := NewSlot(Thursday, 2).Next(); ok {
		t.Error("Thursday-2 should have no next slot")
	}
	if !NewSlot(Thursday, 2).IsLast() {
		t.Error("Thursday-2 should be the last slot")
	}
}

func TestDay_TextRoundTrip(t *testing.T) {
	var d Day
	if err := d.UnmarshalText([]byte("Wed")); err != nil {
		t.Fatal(err)
	}
	b, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "Wednesday" {
		t.Errorf("MarshalText() = %s, want Wednesday", b)
	}
}
