package tui

import (
	"context"
	"errors"
	"testing"
)

func TestIsInteractive(t *testing.T) {
	// The result depends on how the tests are run; only make sure it
	// does not panic.
	_ = IsInteractive()
}

func TestShouldPrompt(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{name: "GitHub Actions", envVars: map[string]string{"GITHUB_ACTIONS": "true"}},
		{name: "GitLab CI", envVars: map[string]string{"GITLAB_CI": "true"}},
		{name: "Jenkins", envVars: map[string]string{"JENKINS_URL": "http://jenkins.local"}},
		{name: "Generic CI", envVars: map[string]string{"CI": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}
			if ShouldPrompt() {
				t.Errorf("ShouldPrompt() = true with env %v", tt.envVars)
			}
		})
	}
}

func TestPromptForSelect(t *testing.T) {
	_, err := PromptForSelect("Choose:", []string{})
	if err == nil {
		t.Error("expected error when no options provided, got nil")
	}
}

func TestPromptFieldsSkipsFilledValues(t *testing.T) {
	email := "ada@safekart.test"
	password := "secret1"

	err := PromptFields("Sign in",
		Field{Prompt: Prompt{Message: "Email"}, Value: &email},
		Field{Prompt: Prompt{Message: "Password", Secret: true}, Value: &password},
	)
	if err != nil {
		t.Fatalf("PromptFields() = %v, want nil when nothing needs asking", err)
	}
}

func TestWithSpinnerReturnsActionError(t *testing.T) {
	want := errors.New("boom")
	called := false

	err := WithSpinner(context.Background(), "Working", func(context.Context) error {
		called = true
		return want
	})
	if !called {
		t.Fatal("action not called")
	}
	if !errors.Is(err, want) {
		t.Errorf("WithSpinner() = %v, want %v", err, want)
	}
}
