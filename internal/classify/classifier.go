// Package classify determines what the agent under test is asking for and
// produces the simulated caller's next utterance.
//
// Two implementations exist behind one contract: the category-based system
// (default) and the legacy intent detector. The runner selects one at
// construction time and only ever calls the shared interface.
package classify

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/bookedby/convoqa/internal/models"
)

// Category labels what the agent's latest utterance is doing.
type Category string

const (
	CategoryAskName      Category = "ask_name"
	CategoryAskPhone     Category = "ask_phone"
	CategoryAskEmail     Category = "ask_email"
	CategoryAskInsurance Category = "ask_insurance"
	CategoryAskChildName Category = "ask_child_name"
	CategoryAskBirthDate Category = "ask_birth_date"
	CategoryAskReason    Category = "ask_reason"
	CategoryOfferSlot    Category = "offer_slot"
	CategoryConfirming   Category = "confirming_booking"
	CategoryGoodbye      Category = "saying_goodbye"
	CategoryTransfer     Category = "initiating_transfer"
	CategoryClarify      Category = "clarify"
	CategoryUnknown      Category = "unknown"
)

// Legacy intent names consumed by the progress tracker.
const (
	IntentAskingName       = "asking_name"
	IntentAskingPhone      = "asking_phone"
	IntentAskingEmail      = "asking_email"
	IntentAskingInsurance  = "asking_insurance"
	IntentAskingChildName  = "asking_child_name"
	IntentAskingBirthDate  = "asking_birth_date"
	IntentAskingReason     = "asking_reason"
	IntentOfferingSlot     = "offering_slot"
	IntentConfirming       = "confirming_booking"
	IntentGoodbye          = "saying_goodbye"
	IntentTransfer         = "initiating_transfer"
	IntentUnknown          = "unknown"
)

// confirmTerminalThreshold is the confidence below which a booking
// confirmation is assumed still in progress.
const confirmTerminalThreshold = 0.8

// Classification is the result of classifying one agent utterance.
type Classification struct {
	Category   Category
	Confidence float64
	Fields     []models.Field
}

// IntentDetectionResult is the legacy-shaped classification the progress
// tracker consumes regardless of which classifier produced it.
type IntentDetectionResult struct {
	Intent     string
	Confidence float64
	Fields     []models.Field
}

// Context carries turn-local state into response generation.
type Context struct {
	// ChildIndex is the active child in a multi-child scenario.
	ChildIndex int
	// Provided is the set of fields already supplied this conversation.
	Provided map[models.Field]bool
	History  []models.ConversationTurn
	Turn     int
}

// ResponseClassifier is the single contract both classifier systems
// implement.
type ResponseClassifier interface {
	Classify(utterance string, history []models.ConversationTurn, persona *models.Persona) (*Classification, error)
	GenerateResponse(c *Classification, persona *models.Persona, tctx *Context) (string, error)
}

// IsTerminal reports whether a classification ends the conversation.
// Goodbyes and transfers always do; a booking confirmation only counts once
// confidence clears the threshold.
func IsTerminal(c *Classification) bool {
	switch c.Category {
	case CategoryGoodbye, CategoryTransfer:
		return true
	case CategoryConfirming:
		return c.Confidence >= confirmTerminalThreshold
	default:
		return false
	}
}

// ToLegacyIntent adapts a classification to the intent shape the progress
// tracker expects.
func ToLegacyIntent(c *Classification) *IntentDetectionResult {
	return &IntentDetectionResult{
		Intent:     legacyIntentFor(c.Category),
		Confidence: c.Confidence,
		Fields:     c.Fields,
	}
}

func legacyIntentFor(cat Category) string {
	switch cat {
	case CategoryAskName:
		return IntentAskingName
	case CategoryAskPhone:
		return IntentAskingPhone
	case CategoryAskEmail:
		return IntentAskingEmail
	case CategoryAskInsurance:
		return IntentAskingInsurance
	case CategoryAskChildName:
		return IntentAskingChildName
	case CategoryAskBirthDate:
		return IntentAskingBirthDate
	case CategoryAskReason:
		return IntentAskingReason
	case CategoryOfferSlot:
		return IntentOfferingSlot
	case CategoryConfirming:
		return IntentConfirming
	case CategoryGoodbye:
		return IntentGoodbye
	case CategoryTransfer:
		return IntentTransfer
	default:
		return IntentUnknown
	}
}

// Options configures classifier construction. Free-form parameter blocks
// from suite YAML are decoded into this with mapstructure.
type Options struct {
	UseCategorySystem bool `mapstructure:"use_category_system"`
	// Model is the optional LLM-backed generation fallback for complex
	// cases. Nil keeps generation purely template-based.
	Model ResponseModel `mapstructure:"-"`
}

// DecodeOptions decodes a raw parameter map into Options.
func DecodeOptions(params map[string]any) (Options, error) {
	// New deployments default to the category-based system.
	opts := Options{UseCategorySystem: true}
	if len(params) == 0 {
		return opts, nil
	}
	if err := mapstructure.Decode(params, &opts); err != nil {
		return Options{}, fmt.Errorf("classify: decode options: %w", err)
	}
	return opts, nil
}

// New selects the classifier implementation once, per the configured flag.
func New(opts Options) ResponseClassifier {
	if opts.UseCategorySystem {
		return newCategoryClassifier(opts.Model)
	}
	return newLegacyClassifier(opts.Model)
}
