// Package wizard collects a new goal test case interactively.
package wizard

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// TestCaseDraft holds all fields collected during the interactive wizard.
type TestCaseDraft struct {
	ID             string
	DisplayName    string
	InitialMessage string
	PersonaName    string
	PersonaPhone   string
	Fields         []string
	ConfirmBooking bool
	NoTransfer     bool
	MaxTurns       int
}

var idPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateID enforces kebab-case test identifiers.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("test id is required")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("test id must be kebab-case (got %q)", id)
	}
	return nil
}

const testCaseTemplate = `id: {{ .ID }}
{{- if .DisplayName }}
name: {{ .DisplayName }}
{{- end }}
initial_message: "{{ .InitialMessage }}"

persona:
  base:
    name: {{ .PersonaName }}
{{- if .PersonaPhone }}
    phone: {{ .PersonaPhone }}
{{- else }}
  generate:
    - phone
{{- end }}

goals:
{{- range .Fields }}
  - id: collect-{{ . }}
    kind: collect_field
    field: {{ . }}
    required: true
{{- end }}
{{- if .ConfirmBooking }}
  - id: confirm-booking
    kind: confirm_booking
    required: true
{{- end }}
{{- if .NoTransfer }}
  - id: no-transfer
    kind: no_transfer
{{- end }}
{{- if .MaxTurns }}

response:
  max_turns: {{ .MaxTurns }}
{{- end }}
`

// RunTestCaseWizard runs an interactive huh form to collect a test case.
// If initialID is non-empty, it pre-populates the id field.
func RunTestCaseWizard(in io.Reader, out io.Writer, initialID string) (*TestCaseDraft, error) {
	var (
		id             = initialID
		displayName    string
		initialMessage string
		personaName    string
		personaPhone   string
		fields         []string
		confirmBooking = true
		noTransfer     bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Test id").
				Description("A kebab-case identifier for this test").
				Placeholder("book-new-patient").
				Value(&id).
				Validate(func(s string) error {
					return ValidateID(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Display name").
				Description("Optional human-readable name").
				Placeholder("Book a new patient").
				Value(&displayName),
			huh.NewInput().
				Title("Initial message").
				Description("The synthetic caller's opening utterance").
				Placeholder("Hi, I'd like to book an appointment").
				Value(&initialMessage).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("initial message is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Persona name").
				Placeholder("Dana Reyes").
				Value(&personaName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("persona name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Persona phone").
				Description("Leave blank to generate one from the run seed").
				Placeholder("555-000-1111").
				Value(&personaPhone),
			huh.NewMultiSelect[string]().
				Title("Fields the agent must collect").
				Options(
					huh.NewOption("phone", "phone").Selected(true),
					huh.NewOption("email", "email"),
					huh.NewOption("insurance", "insurance"),
					huh.NewOption("name", "name"),
				).
				Value(&fields),
			huh.NewConfirm().
				Title("Require a booking confirmation?").
				Value(&confirmBooking),
			huh.NewConfirm().
				Title("Fail if the agent transfers to a human?").
				Value(&noTransfer),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	return &TestCaseDraft{
		ID:             strings.TrimSpace(id),
		DisplayName:    strings.TrimSpace(displayName),
		InitialMessage: strings.TrimSpace(initialMessage),
		PersonaName:    strings.TrimSpace(personaName),
		PersonaPhone:   strings.TrimSpace(personaPhone),
		Fields:         fields,
		ConfirmBooking: confirmBooking,
		NoTransfer:     noTransfer,
	}, nil
}

// GenerateTestCaseYAML renders a test case file from the given draft.
func GenerateTestCaseYAML(draft *TestCaseDraft) (string, error) {
	tmpl, err := template.New("testcase").Parse(testCaseTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, draft); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}
