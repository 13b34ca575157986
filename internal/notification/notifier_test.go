package notification

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"Go2NetGuard/internal/config"
)

func TestEmailNotifier_Send(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "nids@example.com",
		To:   "soc@example.com, oncall@example.com",
	})

	var gotAddr string
	var gotTo []string
	var gotMsg string
	n.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := n.Send("2 Triggered", "<p>body</p>"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 2 || gotTo[1] != "oncall@example.com" {
		t.Errorf("recipients = %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: 2 Triggered\r\n") || !strings.HasSuffix(gotMsg, "\r\n\r\n<p>body</p>") {
		t.Errorf("unexpected message:\n%s", gotMsg)
	}
}

func TestEmailNotifier_SendError(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{Host: "h", Port: 25, To: "a@b"})
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	if err := n.Send("s", "b"); err == nil || !strings.Contains(err.Error(), "refused") {
		t.Errorf("Send() error = %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	if _, ok := FromConfig(config.SMTPConfig{}).(LogNotifier); !ok {
		t.Error("unconfigured SMTP should fall back to the log notifier")
	}
	if _, ok := FromConfig(config.SMTPConfig{Host: "h", To: "a@b"}).(*EmailNotifier); !ok {
		t.Error("configured SMTP should produce an email notifier")
	}
}
