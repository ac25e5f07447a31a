package dispatch

import "net/url"

// emailComposeURL builds a Gmail compose link from structured fields.
// Everything is query-escaped; a hand-concatenated subject with an
// ampersand must not become two parameters.
func emailComposeURL(to, subject, body string) string {
	v := url.Values{}
	v.Set("view", "cm")
	v.Set("fs", "1")
	v.Set("to", to)
	if subject != "" {
		v.Set("su", subject)
	}
	if body != "" {
		v.Set("body", body)
	}
	return "https://mail.google.com/mail/?" + v.Encode()
}

// searchURL builds a web search link for the query.
func searchURL(query string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(query)
}
