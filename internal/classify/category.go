package classify

import (
	"regexp"

	"github.com/bookedby/convoqa/internal/models"
)

// categoryRule maps an utterance pattern to a category. Rules are tried in
// order; the first match wins.
type categoryRule struct {
	re         *regexp.Regexp
	category   Category
	confidence float64
	fields     []models.Field
}

// The rule table is ordered from most to least specific. Terminal shapes
// come first so a closing "thanks for calling, you're all set" is not
// misread as a question.
var categoryRules = []categoryRule{
	{regexp.MustCompile(`(?i)\b(transfer(ring)? you|connect you (to|with)|hand you (off|over)|to a (staff member|team member|human|colleague))\b`), CategoryTransfer, 0.95, nil},
	{regexp.MustCompile(`(?i)\b(goodbye|bye for now|have a (great|good|nice) (day|one)|take care)\b`), CategoryGoodbye, 0.9, nil},
	{regexp.MustCompile(`(?i)\b(appointment is (confirmed|booked|all set)|you're all set|booking (is )?confirmed|we have you (booked|down) for)\b`), CategoryConfirming, 0.9, nil},
	{regexp.MustCompile(`(?i)\b(should be (all )?set|i think that's booked|that should do it)\b`), CategoryConfirming, 0.6, nil},
	{regexp.MustCompile(`(?i)\b(phone|contact) number\b|\breach you\b`), CategoryAskPhone, 0.85, []models.Field{models.FieldPhone}},
	{regexp.MustCompile(`(?i)\bemail( address)?\b`), CategoryAskEmail, 0.85, []models.Field{models.FieldEmail}},
	{regexp.MustCompile(`(?i)\binsurance\b`), CategoryAskInsurance, 0.8, []models.Field{models.FieldInsurance}},
	{regexp.MustCompile(`(?i)\b(child|kid|patient)('s)? name\b|\bname of (your|the) (child|kid|patient)\b`), CategoryAskChildName, 0.85, []models.Field{models.FieldChildName}},
	{regexp.MustCompile(`(?i)\b(date of birth|birth\s?date|birthday|how old)\b`), CategoryAskBirthDate, 0.85, []models.Field{models.FieldBirthDate}},
	{regexp.MustCompile(`(?i)\byour (full )?name\b|\bwho am i speaking with\b|\bmay i (have|get) your name\b`), CategoryAskName, 0.85, []models.Field{models.FieldName}},
	{regexp.MustCompile(`(?i)\b(reason for|what brings|what is (this|the) (visit|appointment) (for|about))\b`), CategoryAskReason, 0.8, []models.Field{models.FieldReason}},
	{regexp.MustCompile(`(?i)\b(we have|there is|i can offer|how about|does .{1,40} work( for you)?|available (at|on))\b`), CategoryOfferSlot, 0.7, nil},
	{regexp.MustCompile(`(?i)\b(could you (repeat|clarify)|i didn't (catch|understand)|sorry,? what)\b`), CategoryClarify, 0.7, nil},
}

// categoryClassifier is the category-based system, preferred by default.
type categoryClassifier struct {
	strategy *strategyEngine
}

func newCategoryClassifier(model ResponseModel) *categoryClassifier {
	return &categoryClassifier{strategy: newStrategyEngine(model)}
}

func (c *categoryClassifier) Classify(utterance string, _ []models.ConversationTurn, _ *models.Persona) (*Classification, error) {
	for _, rule := range categoryRules {
		if rule.re.MatchString(utterance) {
			return &Classification{
				Category:   rule.category,
				Confidence: rule.confidence,
				Fields:     rule.fields,
			}, nil
		}
	}
	return &Classification{Category: CategoryUnknown, Confidence: 0.2}, nil
}

func (c *categoryClassifier) GenerateResponse(cl *Classification, persona *models.Persona, tctx *Context) (string, error) {
	return c.strategy.Generate(cl, persona, tctx)
}
