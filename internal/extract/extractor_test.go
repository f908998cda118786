package extract

import (
	"testing"

	"github.com/bookedby/convoqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PhoneDashed(t *testing.T) {
	e := MustNew()

	matches := e.Extract("Call me at 555-123-4567")

	require.Len(t, matches, 1)
	assert.Equal(t, models.FieldPhone, matches[0].Field)
	assert.Equal(t, "555-123-4567", matches[0].Value)
}

func TestExtract_PhoneFormats(t *testing.T) {
	e := MustNew()

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"parens", "you can reach me at (555) 123-4567 anytime", "555-123-4567"},
		{"bare digits", "number is 5551234567", "555-123-4567"},
		{"dashed", "it's 555-867-5309", "555-867-5309"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := e.Extract(tt.message)
			require.Len(t, matches, 1)
			assert.Equal(t, models.FieldPhone, matches[0].Field)
			assert.Equal(t, tt.want, matches[0].Value)
		})
	}
}

func TestExtract_NameSkipsStopWords(t *testing.T) {
	e := MustNew()

	matches := e.Extract("my name is Jake, calling about an appointment")

	require.Len(t, matches, 1)
	assert.Equal(t, models.FieldName, matches[0].Field)
	assert.Equal(t, "Jake", matches[0].Value)
}

func TestExtract_NameStopWordOnly(t *testing.T) {
	e := MustNew()

	// "Calling" matches the name pattern shape but is on the stop-word list.
	matches := e.Extract("Hi, this is Calling")
	assert.Empty(t, matches)
}

func TestExtract_Email(t *testing.T) {
	e := MustNew()

	matches := e.Extract("send the forms to jake.evans@gmail.com please")

	require.Len(t, matches, 1)
	assert.Equal(t, models.FieldEmail, matches[0].Field)
	assert.Equal(t, "jake.evans@gmail.com", matches[0].Value)
}

func TestExtract_InsuranceCarrierBeforeFreeText(t *testing.T) {
	e := MustNew()

	matches := e.Extract("we have Delta Dental insurance")

	require.Len(t, matches, 1)
	assert.Equal(t, models.FieldInsurance, matches[0].Field)
	assert.Equal(t, "Delta Dental", matches[0].Value)
}

func TestExtract_InsuranceFreeText(t *testing.T) {
	e := MustNew()

	matches := e.Extract("I have Sunrise Family insurance")

	require.Len(t, matches, 1)
	assert.Equal(t, models.FieldInsurance, matches[0].Field)
	assert.Equal(t, "Sunrise Family", matches[0].Value)
}

func TestExtract_MultipleFields(t *testing.T) {
	e := MustNew()

	matches := e.Extract("my name is Rosa Diaz, I'm at 555-000-1111 and rosa@icloud.com")

	got := map[models.Field]string{}
	for _, m := range matches {
		got[m.Field] = m.Value
	}
	assert.Equal(t, "555-000-1111", got[models.FieldPhone])
	assert.Equal(t, "rosa@icloud.com", got[models.FieldEmail])
	assert.Equal(t, "Rosa Diaz", got[models.FieldName])
}

func TestExtract_NoMatches(t *testing.T) {
	e := MustNew()

	assert.Empty(t, e.Extract("hello, I'd like to book an appointment"))
	assert.Empty(t, e.Extract(""))
}

func TestExtract_AtMostOnePerFamily(t *testing.T) {
	e := MustNew()

	matches := e.Extract("call 555-123-4567 or 555-999-8888")

	require.Len(t, matches, 1)
	assert.Equal(t, "555-123-4567", matches[0].Value)
}
