package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		in      string
		want    Endpoint
		wantErr bool
	}{
		{"db.internal:5432", Endpoint{Host: "db.internal", Port: 5432}, false},
		{"DB.Internal:5432", Endpoint{Host: "db.internal", Port: 5432}, false},
		{"[::1]:8080", Endpoint{Host: "::1", Port: 8080}, false},
		{"noport", Endpoint{}, true},
		{"host:0", Endpoint{}, true},
		{"host:70000", Endpoint{}, true},
		{":80", Endpoint{}, true},
	}
	for _, c := range cases {
		got, err := ParseEndpoint(c.in)
		if (err != nil) != c.wantErr {
			t.Fatalf("ParseEndpoint(%q) err=%v wantErr=%v", c.in, err, c.wantErr)
		}
		if err == nil && got != c.want {
			t.Fatalf("ParseEndpoint(%q)=%+v want %+v", c.in, got, c.want)
		}
	}
}

func TestEndpoint_StringRoundTrip(t *testing.T) {
	for _, ep := range []Endpoint{{"127.0.0.1", 10100}, {"::1", 443}} {
		got, err := ParseEndpoint(ep.String())
		if err != nil || got != ep {
			t.Fatalf("round trip %v -> %q -> %v (%v)", ep, ep.String(), got, err)
		}
	}
}

func TestOutageWindow_ContainsIsHalfOpen(t *testing.T) {
	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	w := OutageWindow{Start: base.Add(time.Second), End: base.Add(6 * time.Second)}

	if w.Contains(base.Add(500 * time.Millisecond)) {
		t.Fatal("before start should not be inside")
	}
	if !w.Contains(w.Start) {
		t.Fatal("start is inclusive")
	}
	if w.Contains(w.End) {
		t.Fatal("end is exclusive")
	}
	if got := w.Remaining(base.Add(4 * time.Second)); got != 2*time.Second {
		t.Fatalf("remaining = %v", got)
	}
	if got := w.Remaining(base.Add(time.Minute)); got != 0 {
		t.Fatalf("remaining past end should clamp to 0, got %v", got)
	}
}

func TestStatus_JSON(t *testing.T) {
	tr := Transition{
		Endpoint: Endpoint{Host: "a", Port: 1},
		From:     StatusUp,
		To:       StatusPlannedOut,
		At:       time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	_ = json.Unmarshal(b, &raw)
	if raw["from"] != "UP" || raw["to"] != "PLANNED_OUT" {
		t.Fatalf("unexpected status encoding: %s", b)
	}

	var got Transition
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.From != StatusUp || got.To != StatusPlannedOut {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestParseStatus_Unknown(t *testing.T) {
	if _, err := ParseStatus("sideways"); err == nil {
		t.Fatal("expected error")
	}
	if s, err := ParseStatus("down"); err != nil || s != StatusDown {
		t.Fatalf("got %v %v", s, err)
	}
}
