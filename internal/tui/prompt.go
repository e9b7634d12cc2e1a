package tui

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"

	"github.com/safekart/safekart/internal/errors"
)

// Prompt represents a simple interactive prompt configuration
type Prompt struct {
	Message     string
	Default     string
	Placeholder string
	Required    bool
	// Secret hides the input, for passwords
	Secret bool
}

// Field is one value collected by PromptFields. Value is read as the
// default and receives the answer.
type Field struct {
	Prompt
	Value    *string
	Validate func(string) error
}

// PromptFields asks for several values on one screen. Fields whose value
// is already set are skipped.
func PromptFields(title string, fields ...Field) error {
	var inputs []huh.Field
	for _, f := range fields {
		if *f.Value != "" {
			continue
		}
		if f.Default != "" {
			*f.Value = f.Default
		}
		input := huh.NewInput().
			Title(f.Message).
			Placeholder(f.Placeholder).
			Value(f.Value)
		if f.Secret {
			input = input.EchoMode(huh.EchoModePassword)
		}
		if v := f.Validate; v != nil {
			input = input.Validate(v)
		}
		inputs = append(inputs, input)
	}
	if len(inputs) == 0 {
		return nil
	}

	group := huh.NewGroup(inputs...)
	if title != "" {
		group = group.Title(title)
	}
	return run(huh.NewForm(group))
}

// PromptForString displays an interactive prompt and returns the user's input
func PromptForString(p Prompt) (string, error) {
	value := p.Default

	input := huh.NewInput().
		Title(p.Message).
		Placeholder(p.Placeholder).
		Value(&value)
	if p.Secret {
		input = input.EchoMode(huh.EchoModePassword)
	}

	if err := run(huh.NewForm(huh.NewGroup(input))); err != nil {
		return "", err
	}

	if p.Required && value == "" {
		return "", errors.New(errors.ErrCodeAuthPromptFailed, fmt.Sprintf("%s is required", p.Message))
	}

	return value, nil
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := run(huh.NewForm(huh.NewGroup(confirm))); err != nil {
		return false, err
	}

	return confirmed, nil
}

// PromptForSelect displays a selection prompt with multiple options
func PromptForSelect(message string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options provided")
	}

	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		huhOptions[i] = huh.NewOption(opt, opt)
	}

	var selected string
	selectField := huh.NewSelect[string]().
		Title(message).
		Options(huhOptions...).
		Value(&selected)

	if err := run(huh.NewForm(huh.NewGroup(selectField))); err != nil {
		return "", err
	}

	return selected, nil
}

// run executes a form. Ctrl+C becomes context.Canceled so the CLI exits
// with the interrupt code.
func run(form *huh.Form) error {
	err := form.Run()
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, huh.ErrUserAborted):
		return context.Canceled
	default:
		return errors.Wrap(errors.ErrCodeAuthPromptFailed, "prompt failed", err)
	}
}

// WithSpinner runs action behind a spinner when stdout is a terminal, and
// plainly otherwise.
func WithSpinner(ctx context.Context, title string, action func(context.Context) error) error {
	if !IsTerminal(os.Stdout) {
		return action(ctx)
	}
	var actionErr error
	err := spinner.New().
		Title(title).
		Context(ctx).
		Action(func() {
			actionErr = action(ctx)
		}).
		Run()
	if actionErr != nil {
		return actionErr
	}
	return err
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	return IsTerminal(os.Stdin)
}

// IsTerminal reports whether f is a character device.
func IsTerminal(f *os.File) bool {
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
