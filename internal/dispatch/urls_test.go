package dispatch

import (
	"net/url"
	"strings"
	"testing"
)

func TestEmailComposeURL(t *testing.T) {
	got := emailComposeURL("a@example.com", "Q3 & Q4 report", "see attached")
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("compose URL does not parse: %v", err)
	}
	q := u.Query()
	if q.Get("view") != "cm" || q.Get("fs") != "1" {
		t.Errorf("missing compose parameters: %q", got)
	}
	if q.Get("to") != "a@example.com" {
		t.Errorf("recipient mangled: %q", q.Get("to"))
	}
	// An ampersand in the subject must stay inside the parameter.
	if q.Get("su") != "Q3 & Q4 report" {
		t.Errorf("subject mangled: %q", q.Get("su"))
	}
	if q.Get("body") != "see attached" {
		t.Errorf("body mangled: %q", q.Get("body"))
	}
}

func TestEmailComposeURLOmitsEmptyFields(t *testing.T) {
	got := emailComposeURL("a@example.com", "", "")
	if strings.Contains(got, "su=") || strings.Contains(got, "body=") {
		t.Errorf("empty fields must be omitted: %q", got)
	}
}

func TestSearchURL(t *testing.T) {
	got := searchURL("go html parser & tokenizer")
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("search URL does not parse: %v", err)
	}
	if q := u.Query().Get("q"); q != "go html parser & tokenizer" {
		t.Errorf("query mangled: %q", q)
	}
}
