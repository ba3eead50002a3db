package email

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSendRequiresConfiguration(t *testing.T) {
	s := NewSMTPSender(Config{})
	err := s.Send(context.Background(), &Message{To: "a@b.test", Subject: "hi", HTML: "<p>hi</p>"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Send() error = %v, want ErrNotConfigured", err)
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	s := NewSMTPSender(Config{Host: "mail.test", Port: 587, From: "noreply@mail.test"})
	err := s.Send(context.Background(), &Message{Subject: "hi", HTML: "<p>hi</p>"})
	if !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("Send() error = %v, want ErrNoRecipient", err)
	}
}

func TestSendTemplateUnknownTemplate(t *testing.T) {
	s := NewSMTPSender(Config{Host: "mail.test", Port: 587, From: "noreply@mail.test"})
	err := s.SendTemplate(context.Background(), "a@b.test", Template("nope"), nil)
	if err == nil {
		t.Fatal("SendTemplate() with unknown template should fail")
	}
}

func TestEncodeEnvelope(t *testing.T) {
	s := NewSMTPSender(Config{
		Host:     "mail.test",
		Port:     587,
		From:     "noreply@mail.test",
		FromName: "BuildLedger",
	})

	raw := string(s.encode(&Message{
		To:      "pm@acme.test",
		Subject: "You're invited",
		HTML:    "<p>join us</p>",
		ReplyTo: "support@mail.test",
	}))

	headerEnd := strings.Index(raw, "\r\n\r\n")
	if headerEnd < 0 {
		t.Fatal("encoded message has no blank line between headers and body")
	}
	headers, body := raw[:headerEnd], raw[headerEnd+4:]

	for _, want := range []string{
		"From: BuildLedger <noreply@mail.test>",
		"To: pm@acme.test",
		"Subject: You're invited",
		"Reply-To: support@mail.test",
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
	} {
		if !strings.Contains(headers, want+"\r\n") {
			t.Errorf("headers missing %q:\n%s", want, headers)
		}
	}
	if body != "<p>join us</p>" {
		t.Errorf("body = %q, want the HTML payload", body)
	}
}

func TestEncodeOmitsEmptyOptionalHeaders(t *testing.T) {
	s := NewSMTPSender(Config{Host: "mail.test", Port: 587, From: "noreply@mail.test"})
	raw := string(s.encode(&Message{To: "pm@acme.test", Subject: "hi", HTML: "x"}))

	if strings.Contains(raw, "Reply-To:") {
		t.Error("Reply-To header present for a message without one")
	}
	if !strings.Contains(raw, "From: noreply@mail.test\r\n") {
		t.Errorf("bare From header missing without FromName:\n%s", raw)
	}
}

func TestConfigAddr(t *testing.T) {
	c := Config{Host: "mail.test", Port: 2525}
	if got := c.addr(); got != "mail.test:2525" {
		t.Fatalf("addr() = %q", got)
	}
}

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"complete", Config{Host: "mail.test", Port: 587, From: "a@b.test"}, true},
		{"missing host", Config{Port: 587, From: "a@b.test"}, false},
		{"missing port", Config{Host: "mail.test", From: "a@b.test"}, false},
		{"missing from", Config{Host: "mail.test", Port: 587}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSMTPSender(tt.cfg).IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoOpSenderAcceptsEverything(t *testing.T) {
	s := NewNoOpSender()
	if !s.IsConfigured() {
		t.Error("no-op sender should always report configured")
	}
	if err := s.Send(context.Background(), &Message{}); err != nil {
		t.Errorf("Send() error = %v", err)
	}
	if err := s.SendTemplate(context.Background(), "a@b.test", TemplateInvitation, nil); err != nil {
		t.Errorf("SendTemplate() error = %v", err)
	}
}
