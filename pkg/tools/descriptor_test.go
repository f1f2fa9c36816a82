package tools

import (
	"errors"
	"testing"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name       string
		wantApp    string
		wantAction string
		wantErr    bool
	}{
		{"GMAIL_SEND_EMAIL", "gmail", "send_email", false},
		{"Slack_Post", "slack", "post", false},
		{"slack.postMessage", "slack", "postMessage", false},
		{"Jira.Issue.Create", "Jira", "Issue.Create", false},
		{"Search", "search", "execute", false},
		{"mixed_name.with_dot", "mixed", "name.with_dot", false},
		{"", "", "", true},
		{"_LEADING", "", "", true},
		{"TRAILING_", "", "", true},
		{".action", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, action, err := ParseName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDescriptor) {
					t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if app != tt.wantApp || action != tt.wantAction {
				t.Errorf("ParseName(%q) = (%q, %q), want (%q, %q)", tt.name, app, action, tt.wantApp, tt.wantAction)
			}
		})
	}
}
