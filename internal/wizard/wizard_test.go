package wizard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookedby/convoqa/internal/models"
	"github.com/bookedby/convoqa/internal/validation"
)

func fullDraft() *TestCaseDraft {
	return &TestCaseDraft{
		ID:             "book-new-patient",
		DisplayName:    "Book a new patient",
		InitialMessage: "Hi, I'd like to book an appointment for my daughter",
		PersonaName:    "Dana Reyes",
		PersonaPhone:   "555-000-1111",
		Fields:         []string{"phone", "insurance"},
		ConfirmBooking: true,
		NoTransfer:     true,
		MaxTurns:       20,
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr string
	}{
		{"valid", "book-new-patient", ""},
		{"valid single word", "booking", ""},
		{"valid with digits", "book-2-children", ""},
		{"empty", "", "test id is required"},
		{"whitespace", "   ", "test id is required"},
		{"uppercase", "Book-Patient", "kebab-case"},
		{"underscores", "book_patient", "kebab-case"},
		{"trailing dash", "book-", "kebab-case"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGenerateTestCaseYAML_FullDraft(t *testing.T) {
	result, err := GenerateTestCaseYAML(fullDraft())
	require.NoError(t, err)

	assert.Contains(t, result, "id: book-new-patient")
	assert.Contains(t, result, "name: Book a new patient")
	assert.Contains(t, result, "name: Dana Reyes")
	assert.Contains(t, result, "phone: 555-000-1111")
	assert.Contains(t, result, "id: collect-phone")
	assert.Contains(t, result, "id: collect-insurance")
	assert.Contains(t, result, "id: confirm-booking")
	assert.Contains(t, result, "kind: no_transfer")
	assert.Contains(t, result, "max_turns: 20")
}

func TestGenerateTestCaseYAML_MinimalDraft(t *testing.T) {
	draft := &TestCaseDraft{
		ID:             "quick-check",
		InitialMessage: "Hello",
		PersonaName:    "Sam Okafor",
		Fields:         []string{"phone"},
	}

	result, err := GenerateTestCaseYAML(draft)
	require.NoError(t, err)

	// No display name line between the id and the initial message.
	assert.Contains(t, result, "id: quick-check\ninitial_message:")
	assert.NotContains(t, result, "confirm-booking")
	assert.NotContains(t, result, "no_transfer")
	assert.NotContains(t, result, "max_turns")
}

func TestGenerateTestCaseYAML_BlankPhoneEmitsGenerate(t *testing.T) {
	draft := &TestCaseDraft{
		ID:             "generated-phone",
		InitialMessage: "Hello",
		PersonaName:    "Sam Okafor",
		Fields:         []string{"phone"},
	}

	result, err := GenerateTestCaseYAML(draft)
	require.NoError(t, err)

	// A blank phone becomes a seed-generated field, as the wizard promises.
	assert.Contains(t, result, "generate:\n    - phone")
	assert.Empty(t, validation.ValidateTestCaseBytes([]byte(result)))

	path := filepath.Join(t.TempDir(), "case.yaml")
	require.NoError(t, os.WriteFile(path, []byte(result), 0o644))

	tc, err := models.LoadTestCase(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"phone"}, tc.Persona.Generate)
}

func TestGenerateTestCaseYAML_PassesSchemaValidation(t *testing.T) {
	result, err := GenerateTestCaseYAML(fullDraft())
	require.NoError(t, err)

	assert.Empty(t, validation.ValidateTestCaseBytes([]byte(result)))
}

func TestGenerateTestCaseYAML_LoadsAsTestCase(t *testing.T) {
	result, err := GenerateTestCaseYAML(fullDraft())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "case.yaml")
	require.NoError(t, os.WriteFile(path, []byte(result), 0o644))

	tc, err := models.LoadTestCase(path)
	require.NoError(t, err)

	assert.Equal(t, "book-new-patient", tc.TestID)
	assert.Equal(t, "Dana Reyes", tc.Persona.Base.Name)
	assert.Len(t, tc.Goals, 4)
	assert.Equal(t, 20, tc.Response.MaxTurns)
}
