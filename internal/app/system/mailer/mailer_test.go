package mailer

import (
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"
)

func TestBuildWelcomeEmail(t *testing.T) {
	e := BuildWelcomeEmail(WelcomeEmailData{
		SiteName:  "Dynamic Dashboard",
		Name:      "Ada",
		Role:      "editor",
		SignInURL: "https://dash.example.com/login",
	})

	if e.Subject != "Welcome to Dynamic Dashboard" {
		t.Errorf("Subject = %q", e.Subject)
	}
	for _, want := range []string{"Hello Ada", "editor", "https://dash.example.com/login", "Google account"} {
		if !strings.Contains(e.TextBody, want) {
			t.Errorf("text body missing %q", want)
		}
		if !strings.Contains(e.HTMLBody, want) {
			t.Errorf("html body missing %q", want)
		}
	}
}

func TestBuildWelcomeEmail_EscapesHTML(t *testing.T) {
	e := BuildWelcomeEmail(WelcomeEmailData{
		SiteName:  "Dash",
		Name:      `<script>alert(1)</script>`,
		Role:      "viewer",
		SignInURL: "https://dash.example.com/login",
	})
	if strings.Contains(e.HTMLBody, "<script>") {
		t.Error("html body contains unescaped markup from the name")
	}
}

func TestBuildMessage(t *testing.T) {
	m := New(Config{From: "noreply@example.com", FromName: "Dash"}, nil)
	raw, err := m.buildMessage(Email{
		To:       "ada@example.com",
		Subject:  "Welcome to Dash",
		TextBody: "plain body",
		HTMLBody: "<p>html body</p>",
	}, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got := msg.Header.Get("To"); got != "ada@example.com" {
		t.Errorf("To = %q", got)
	}
	from, err := msg.Header.AddressList("From")
	if err != nil || len(from) != 1 || from[0].Address != "noreply@example.com" || from[0].Name != "Dash" {
		t.Errorf("From = %v, %v", from, err)
	}
	dec := new(mime.WordDecoder)
	subj, _ := dec.DecodeHeader(msg.Header.Get("Subject"))
	if subj != "Welcome to Dash" {
		t.Errorf("Subject = %q", subj)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("Content-Type = %q, %v", mediaType, err)
	}
	mr := multipart.NewReader(msg.Body, params["boundary"])
	var types []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		types = append(types, p.Header.Get("Content-Type"))
	}
	if len(types) != 2 || !strings.HasPrefix(types[0], "text/plain") || !strings.HasPrefix(types[1], "text/html") {
		t.Errorf("parts = %v, want text then html", types)
	}
}

func TestSend_EmptyRecipient(t *testing.T) {
	m := New(Config{Host: "127.0.0.1", Port: 1}, nil)
	if err := m.Send(Email{Subject: "x"}); err == nil {
		t.Error("expected error for empty recipient")
	}
}
