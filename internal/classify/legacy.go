package classify

import (
	"regexp"
	"strings"

	"github.com/bookedby/convoqa/internal/models"
)

// legacyClassifier is the pre-category intent detector, kept selectable for
// sites that have not migrated. It detects intents directly and adapts them
// to the shared contract.
type legacyClassifier struct {
	strategy *strategyEngine
}

func newLegacyClassifier(model ResponseModel) *legacyClassifier {
	return &legacyClassifier{strategy: newStrategyEngine(model)}
}

type legacyRule struct {
	keywords   []string
	intent     string
	confidence float64
	fields     []models.Field
}

var legacyConfirmStrong = regexp.MustCompile(`(?i)\b(confirmed|all set|booked you)\b`)

// Keyword tables instead of regexes: this mirrors how the old detector
// worked, quirks included.
var legacyRules = []legacyRule{
	{[]string{"transfer", "connect you"}, IntentTransfer, 0.9, nil},
	{[]string{"goodbye", "have a great day", "take care"}, IntentGoodbye, 0.9, nil},
	{[]string{"confirmed", "all set", "booked"}, IntentConfirming, 0.7, nil},
	{[]string{"phone", "number"}, IntentAskingPhone, 0.8, []models.Field{models.FieldPhone}},
	{[]string{"email"}, IntentAskingEmail, 0.8, []models.Field{models.FieldEmail}},
	{[]string{"insurance"}, IntentAskingInsurance, 0.75, []models.Field{models.FieldInsurance}},
	{[]string{"child's name", "name of your child", "patient's name"}, IntentAskingChildName, 0.8, []models.Field{models.FieldChildName}},
	{[]string{"date of birth", "birthday", "how old"}, IntentAskingBirthDate, 0.8, []models.Field{models.FieldBirthDate}},
	{[]string{"your name", "who am i speaking"}, IntentAskingName, 0.8, []models.Field{models.FieldName}},
	{[]string{"reason for", "what brings"}, IntentAskingReason, 0.75, []models.Field{models.FieldReason}},
	{[]string{"we have", "how about", "available"}, IntentOfferingSlot, 0.65, nil},
}

// detectIntent is the legacy entry point, preserved shape and all.
func (l *legacyClassifier) detectIntent(lastUtterance string, _ []models.ConversationTurn, _ []models.Field) *IntentDetectionResult {
	lower := strings.ToLower(lastUtterance)
	for _, rule := range legacyRules {
		for _, kw := range rule.keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			conf := rule.confidence
			// Strong confirmation wording lifts confidence past the
			// terminal threshold.
			if rule.intent == IntentConfirming && legacyConfirmStrong.MatchString(lastUtterance) {
				conf = 0.9
			}
			return &IntentDetectionResult{Intent: rule.intent, Confidence: conf, Fields: rule.fields}
		}
	}
	return &IntentDetectionResult{Intent: IntentUnknown, Confidence: 0.2}
}

func (l *legacyClassifier) Classify(utterance string, history []models.ConversationTurn, persona *models.Persona) (*Classification, error) {
	res := l.detectIntent(utterance, history, nil)
	return &Classification{
		Category:   categoryForLegacyIntent(res.Intent),
		Confidence: res.Confidence,
		Fields:     res.Fields,
	}, nil
}

func (l *legacyClassifier) GenerateResponse(c *Classification, persona *models.Persona, tctx *Context) (string, error) {
	return l.strategy.Generate(c, persona, tctx)
}

func categoryForLegacyIntent(intent string) Category {
	switch intent {
	case IntentAskingName:
		return CategoryAskName
	case IntentAskingPhone:
		return CategoryAskPhone
	case IntentAskingEmail:
		return CategoryAskEmail
	case IntentAskingInsurance:
		return CategoryAskInsurance
	case IntentAskingChildName:
		return CategoryAskChildName
	case IntentAskingBirthDate:
		return CategoryAskBirthDate
	case IntentAskingReason:
		return CategoryAskReason
	case IntentOfferingSlot:
		return CategoryOfferSlot
	case IntentConfirming:
		return CategoryConfirming
	case IntentGoodbye:
		return CategoryGoodbye
	case IntentTransfer:
		return CategoryTransfer
	default:
		return CategoryUnknown
	}
}
