package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hamed0406/portwatch/internal/domain"
)

func downAlert() Alert {
	return Alert{Title: "Endpoint DOWN", Text: "details", Transition: tr(domain.StatusUp, domain.StatusDown)}
}

func TestSlack_OK(t *testing.T) {
	var got slackMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if s == nil {
		t.Fatal("expected slack client")
	}
	if err := s.Send(context.Background(), downAlert()); err != nil {
		t.Fatalf("send err: %v", err)
	}
	if got.Text != "*Endpoint DOWN* db.internal:5432" {
		t.Fatalf("payload text not as expected: %q", got.Text)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("want one attachment, got %d", len(got.Attachments))
	}
	att := got.Attachments[0]
	if att.Color != "danger" || att.Text != "details" || att.TS == 0 {
		t.Fatalf("unexpected attachment: %+v", att)
	}
	if len(att.Fields) != 2 || att.Fields[0].Value != "db.internal:5432" || att.Fields[1].Value != "UP → DOWN" {
		t.Fatalf("unexpected fields: %+v", att.Fields)
	}
}

func TestSlack_ColorFollowsNewStatus(t *testing.T) {
	cases := map[domain.Status]string{
		domain.StatusDown:       "danger",
		domain.StatusUp:         "good",
		domain.StatusPlannedOut: "#9e9e9e",
	}
	for st, want := range cases {
		msg := newSlackMessage(Alert{Title: "x", Transition: tr(domain.StatusUnknown, st)})
		if msg.Attachments[0].Color != want {
			t.Fatalf("%s: color %q, want %q", st, msg.Attachments[0].Color, want)
		}
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	err := s.Send(context.Background(), downAlert())
	if err == nil || !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "db.internal:5432") {
		t.Fatalf("expected non-2xx error naming the endpoint, got %v", err)
	}
}

func TestSlack_Disabled(t *testing.T) {
	if NewSlack("") != nil {
		t.Fatal("empty webhook should disable slack")
	}
	var s *Slack
	if err := s.Send(context.Background(), downAlert()); err == nil {
		t.Fatal("nil slack should refuse to send")
	}
}
