package classify

import (
	"testing"

	"github.com/bookedby/convoqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPersona() *models.Persona {
	return &models.Persona{
		Name:              "Rosa Diaz",
		Phone:             "555-000-1111",
		Email:             "rosa@icloud.com",
		InsuranceProvider: "Cigna",
		Reason:            "cleaning for my son",
		Children: []models.Child{
			{Name: "Mateo", BirthDate: "2017-04-02"},
			{Name: "Luna", BirthDate: "2019-09-15"},
		},
	}
}

func TestCategoryClassifier_Categories(t *testing.T) {
	c := New(Options{UseCategorySystem: true})

	tests := []struct {
		utterance string
		want      Category
	}{
		{"Can I get a phone number to reach you?", CategoryAskPhone},
		{"What's your email address?", CategoryAskEmail},
		{"Do you have dental insurance?", CategoryAskInsurance},
		{"What is the child's name?", CategoryAskChildName},
		{"And their date of birth?", CategoryAskBirthDate},
		{"May I have your name?", CategoryAskName},
		{"What brings you in?", CategoryAskReason},
		{"We have Tuesday at 3pm available at our downtown office.", CategoryOfferSlot},
		{"Your appointment is confirmed for Tuesday!", CategoryConfirming},
		{"Thanks so much, have a great day!", CategoryGoodbye},
		{"Let me transfer you to a staff member.", CategoryTransfer},
		{"The weather is lovely.", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			cl, err := c.Classify(tt.utterance, nil, testPersona())
			require.NoError(t, err)
			assert.Equal(t, tt.want, cl.Category)
		})
	}
}

func TestIsTerminal_ConfidenceGate(t *testing.T) {
	assert.False(t, IsTerminal(&Classification{Category: CategoryConfirming, Confidence: 0.6}))
	assert.True(t, IsTerminal(&Classification{Category: CategoryConfirming, Confidence: 0.85}))
	assert.True(t, IsTerminal(&Classification{Category: CategoryGoodbye, Confidence: 0.1}))
	assert.True(t, IsTerminal(&Classification{Category: CategoryTransfer, Confidence: 0.1}))
	assert.False(t, IsTerminal(&Classification{Category: CategoryAskPhone, Confidence: 0.99}))
}

func TestCategoryClassifier_WeakConfirmationBelowThreshold(t *testing.T) {
	c := New(Options{UseCategorySystem: true})

	cl, err := c.Classify("That should do it, let me double check the calendar.", nil, testPersona())
	require.NoError(t, err)

	assert.Equal(t, CategoryConfirming, cl.Category)
	assert.False(t, IsTerminal(cl))
}

func TestToLegacyIntent(t *testing.T) {
	res := ToLegacyIntent(&Classification{
		Category:   CategoryAskPhone,
		Confidence: 0.85,
		Fields:     []models.Field{models.FieldPhone},
	})

	assert.Equal(t, IntentAskingPhone, res.Intent)
	assert.Equal(t, 0.85, res.Confidence)
	assert.Equal(t, []models.Field{models.FieldPhone}, res.Fields)
}

func TestGenerateResponse_FieldAnswers(t *testing.T) {
	c := New(Options{UseCategorySystem: true})
	p := testPersona()
	tctx := &Context{Provided: map[models.Field]bool{}}

	tests := []struct {
		category Category
		contains string
	}{
		{CategoryAskPhone, "555-000-1111"},
		{CategoryAskEmail, "rosa@icloud.com"},
		{CategoryAskInsurance, "Cigna"},
		{CategoryAskName, "Rosa Diaz"},
		{CategoryAskChildName, "Mateo"},
		{CategoryAskBirthDate, "2017-04-02"},
	}

	for _, tt := range tests {
		reply, err := c.GenerateResponse(&Classification{Category: tt.category}, p, tctx)
		require.NoError(t, err)
		assert.Contains(t, reply, tt.contains)
	}
}

func TestGenerateResponse_ChildIndexSelectsChild(t *testing.T) {
	c := New(Options{UseCategorySystem: true})
	p := testPersona()

	reply, err := c.GenerateResponse(&Classification{Category: CategoryAskChildName}, p, &Context{ChildIndex: 1})
	require.NoError(t, err)
	assert.Contains(t, reply, "Luna")

	reply, err = c.GenerateResponse(&Classification{Category: CategoryAskBirthDate}, p, &Context{ChildIndex: 1})
	require.NoError(t, err)
	assert.Contains(t, reply, "2019-09-15")
}

func TestLegacyClassifier_SharedContract(t *testing.T) {
	c := New(Options{UseCategorySystem: false})

	cl, err := c.Classify("Could I get your phone number?", nil, testPersona())
	require.NoError(t, err)
	assert.Equal(t, CategoryAskPhone, cl.Category)

	cl, err = c.Classify("You're booked, I'll double check with the hygienist.", nil, testPersona())
	require.NoError(t, err)
	assert.Equal(t, CategoryConfirming, cl.Category)
	assert.False(t, IsTerminal(cl))

	cl, err = c.Classify("Perfect, your appointment is confirmed.", nil, testPersona())
	require.NoError(t, err)
	assert.Equal(t, CategoryConfirming, cl.Category)
	assert.True(t, IsTerminal(cl))
}

func TestDecodeOptions(t *testing.T) {
	opts, err := DecodeOptions(nil)
	require.NoError(t, err)
	assert.True(t, opts.UseCategorySystem)

	opts, err = DecodeOptions(map[string]any{"use_category_system": false})
	require.NoError(t, err)
	assert.False(t, opts.UseCategorySystem)
}

func TestGenerateResponse_FallbackWithoutModel(t *testing.T) {
	c := New(Options{UseCategorySystem: true})

	reply, err := c.GenerateResponse(&Classification{Category: CategoryUnknown}, testPersona(), &Context{})
	require.NoError(t, err)
	assert.Contains(t, reply, "book an appointment")
}
