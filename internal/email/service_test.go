package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestSendFailsWhenNotConfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendHTMLEmail([]string{"a@example.com"}, "subject", "<p>hi</p>"); err == nil {
		t.Fatal("expected error when not configured")
	}
}

func TestInviteTemplateRenders(t *testing.T) {
	html, err := renderTemplate(inviteEmailTemplate, InviteData{
		AppName:     "Rallypoint",
		InviterName: "Jordan",
		ContactName: "Sam",
		TargetName:  "Tuesday Night Dinks",
		InviteURL:   "https://rallypoint.app/g-grp_1?invite=true&phone=",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	for _, want := range []string{"Jordan", "Sam", "Tuesday Night Dinks", "https://rallypoint.app/g-grp_1"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered invite missing %q", want)
		}
	}
}

func TestVerificationTemplateRenders(t *testing.T) {
	html, err := renderTemplate(verificationEmailTemplate, VerificationData{
		AppName:         "Rallypoint",
		UserName:        "Jordan",
		VerificationURL: "https://rallypoint.app/verify?token=abc",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "https://rallypoint.app/verify?token=abc") {
		t.Error("rendered verification missing URL")
	}
}
