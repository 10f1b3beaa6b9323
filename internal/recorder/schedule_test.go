package recorder

import "testing"

func TestParseScheduleSimpleRange(t *testing.T) {
	s, err := ParseSchedule("0-7,22-23")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for h := 0; h <= 7; h++ {
		if !s.Armed(h) {
			t.Fatalf("expected hour %d armed", h)
		}
	}
	for h := 8; h <= 21; h++ {
		if s.Armed(h) {
			t.Fatalf("expected hour %d disarmed", h)
		}
	}
	if !s.Armed(22) || !s.Armed(23) {
		t.Fatalf("expected 22 and 23 armed")
	}
}

func TestParseScheduleWrapsMidnight(t *testing.T) {
	s, err := ParseSchedule("22-6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, h := range []int{22, 23, 0, 1, 5, 6} {
		if !s.Armed(h) {
			t.Fatalf("expected hour %d armed", h)
		}
	}
	for _, h := range []int{7, 12, 21} {
		if s.Armed(h) {
			t.Fatalf("expected hour %d disarmed", h)
		}
	}
}

func TestParseScheduleAlwaysOn(t *testing.T) {
	s, err := ParseSchedule("0-23")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.AlwaysOn() {
		t.Fatalf("expected 0-23 to be always-on")
	}
}

func TestParseScheduleSingleHour(t *testing.T) {
	s, err := ParseSchedule("5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Armed(5) || s.Armed(4) || s.Armed(6) {
		t.Fatalf("expected only hour 5 armed")
	}
}

func TestParseScheduleRejectsInvalid(t *testing.T) {
	cases := []string{"", "24-25", "-1-5", "abc", "5-abc"}
	for _, c := range cases {
		if _, err := ParseSchedule(c); err == nil {
			t.Fatalf("expected error for schedule %q", c)
		}
	}
}
