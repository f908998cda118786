package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bookedby/convoqa/internal/models"
)

// ResponseModel is the optional LLM-backed generation path. Implementations
// must be safe for concurrent use.
type ResponseModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// strategyEngine turns a classification plus persona into the caller's next
// utterance. Template generation is the default; the model, when present,
// only handles categories the templates cannot.
type strategyEngine struct {
	model ResponseModel
}

func newStrategyEngine(model ResponseModel) *strategyEngine {
	return &strategyEngine{model: model}
}

// modelTimeout bounds a single generation fallback call.
const modelTimeout = 15 * time.Second

func (s *strategyEngine) Generate(c *Classification, persona *models.Persona, tctx *Context) (string, error) {
	switch c.Category {
	case CategoryAskName:
		return fmt.Sprintf("My name is %s.", persona.Name), nil
	case CategoryAskPhone:
		return fmt.Sprintf("It's %s.", persona.Phone), nil
	case CategoryAskEmail:
		return fmt.Sprintf("My email is %s.", persona.Email), nil
	case CategoryAskInsurance:
		if persona.InsuranceID != "" {
			return fmt.Sprintf("We have %s, member ID %s.", persona.InsuranceProvider, persona.InsuranceID), nil
		}
		return fmt.Sprintf("We have %s.", persona.InsuranceProvider), nil
	case CategoryAskChildName:
		name := persona.ValueFor(models.FieldChildName, tctx.ChildIndex)
		if name == "" {
			return "The appointment is for me, actually.", nil
		}
		return fmt.Sprintf("It's for %s.", name), nil
	case CategoryAskBirthDate:
		dob := persona.ValueFor(models.FieldBirthDate, tctx.ChildIndex)
		if dob == "" {
			return "I don't have that handy, sorry.", nil
		}
		return fmt.Sprintf("Date of birth is %s.", dob), nil
	case CategoryAskReason:
		if persona.Reason != "" {
			return persona.Reason + ".", nil
		}
		return "Just a routine checkup.", nil
	case CategoryOfferSlot:
		return "That works for us.", nil
	case CategoryConfirming:
		return "Great, thank you!", nil
	case CategoryClarify:
		return s.clarifyReply(persona, tctx), nil
	default:
		return s.fallback(c, persona, tctx)
	}
}

// clarifyReply restates whatever was said last, or the booking intent when
// there is no prior user turn.
func (s *strategyEngine) clarifyReply(persona *models.Persona, tctx *Context) string {
	for i := len(tctx.History) - 1; i >= 0; i-- {
		if tctx.History[i].Role == models.RoleUser {
			return "Sorry, I said: " + tctx.History[i].Content
		}
	}
	return bookingIntent(persona, tctx)
}

// fallback handles unknown categories: the model when configured, a generic
// booking nudge otherwise.
func (s *strategyEngine) fallback(c *Classification, persona *models.Persona, tctx *Context) (string, error) {
	if s.model == nil {
		return bookingIntent(persona, tctx), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), modelTimeout)
	defer cancel()

	reply, err := s.model.Complete(ctx, buildModelPrompt(c, persona, tctx))
	if err != nil {
		return "", fmt.Errorf("classify: model fallback: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func bookingIntent(persona *models.Persona, tctx *Context) string {
	if name := persona.ValueFor(models.FieldChildName, tctx.ChildIndex); name != "" {
		return fmt.Sprintf("I'd like to book an appointment for %s.", name)
	}
	return "I'd like to book an appointment."
}

func buildModelPrompt(c *Classification, persona *models.Persona, tctx *Context) string {
	var b strings.Builder
	b.WriteString("You are simulating a patient calling a dental office.\n")
	fmt.Fprintf(&b, "Caller facts: name=%s phone=%s email=%s insurance=%s\n",
		persona.Name, persona.Phone, persona.Email, persona.InsuranceProvider)
	fmt.Fprintf(&b, "The receptionist's last message was classified as %q.\n", c.Category)
	b.WriteString("Conversation so far:\n")
	for _, turn := range tctx.History {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	b.WriteString("Reply with the caller's next message only.")
	return b.String()
}
