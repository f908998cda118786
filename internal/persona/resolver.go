// Package persona resolves dynamic persona templates into concrete,
// reproducible personas.
//
// Resolution is deterministic: the same template and seed always produce
// the same generated values, so any run can be replayed from its recorded
// seed.
package persona

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/bookedby/convoqa/internal/models"
)

// Generatable field names accepted in DynamicPersona.Generate.
const (
	GenName      = "name"
	GenPhone     = "phone"
	GenEmail     = "email"
	GenInsurance = "insurance"
	GenChildren  = "children"
)

var firstNames = []string{
	"Ava", "Ben", "Clara", "Diego", "Elena", "Felix", "Grace", "Henry",
	"Isla", "Jake", "Kira", "Liam", "Maya", "Noah", "Olive", "Priya",
	"Quinn", "Rosa", "Sam", "Tara",
}

var lastNames = []string{
	"Anderson", "Brooks", "Chen", "Diaz", "Evans", "Flores", "Garcia",
	"Hayes", "Ibrahim", "Jensen", "Kim", "Lopez", "Morris", "Nguyen",
	"Ortiz", "Patel", "Reyes", "Silva", "Torres", "Walsh",
}

var insuranceCarriers = []string{
	"Delta Dental", "Cigna", "Aetna", "MetLife", "Guardian", "Humana",
	"United Healthcare", "Blue Cross Blue Shield",
}

var emailDomains = []string{"gmail.com", "yahoo.com", "outlook.com", "icloud.com"}

// Resolver expands dynamic personas. The zero value is not usable; use New.
type Resolver struct {
	seedFn func() int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSeedSource overrides how auto-seeds are chosen. Used by tests.
func WithSeedSource(fn func() int64) Option {
	return func(r *Resolver) {
		r.seedFn = fn
	}
}

// New creates a Resolver. Auto-seeds default to the current time.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		seedFn: func() int64 { return time.Now().UnixNano() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve expands the template using a freshly chosen seed.
func (r *Resolver) Resolve(dp *models.DynamicPersona) (*models.ResolvedPersona, error) {
	return r.ResolveWithSeed(dp, r.seedFn())
}

// ResolveWithSeed expands the template deterministically from seed. The
// returned metadata records the seed and every generated field name.
func (r *Resolver) ResolveWithSeed(dp *models.DynamicPersona, seed int64) (*models.ResolvedPersona, error) {
	out := dp.Base
	out.Children = append([]models.Child(nil), dp.Base.Children...)

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	generated := make([]string, 0, len(dp.Generate))

	for _, field := range dp.Generate {
		switch field {
		case GenName:
			out.Name = genFullName(rng)
		case GenPhone:
			out.Phone = genPhone(rng)
		case GenEmail:
			out.Email = genEmail(rng, out.Name)
		case GenInsurance:
			out.InsuranceProvider = insuranceCarriers[rng.IntN(len(insuranceCarriers))]
		case GenChildren:
			for i := range out.Children {
				out.Children[i].Name = firstNames[rng.IntN(len(firstNames))]
				out.Children[i].BirthDate = genBirthDate(rng)
			}
		default:
			return nil, fmt.Errorf("persona: unknown generated field %q", field)
		}
		generated = append(generated, field)
	}

	return &models.ResolvedPersona{
		Persona: out,
		Meta: models.ResolutionMeta{
			Seed:            seed,
			GeneratedFields: generated,
		},
	}, nil
}

func genFullName(rng *rand.Rand) string {
	return firstNames[rng.IntN(len(firstNames))] + " " + lastNames[rng.IntN(len(lastNames))]
}

// genPhone produces a US-style number avoiding 555-prefix collisions with
// fixture data.
func genPhone(rng *rand.Rand) string {
	area := 200 + rng.IntN(700)
	mid := 200 + rng.IntN(700)
	tail := rng.IntN(10000)
	return fmt.Sprintf("%03d-%03d-%04d", area, mid, tail)
}

func genEmail(rng *rand.Rand, name string) string {
	local := strings.ToLower(strings.ReplaceAll(name, " ", "."))
	if local == "" {
		local = strings.ToLower(firstNames[rng.IntN(len(firstNames))])
	}
	return fmt.Sprintf("%s%d@%s", local, rng.IntN(100), emailDomains[rng.IntN(len(emailDomains))])
}

// genBirthDate yields a date for a patient between 2 and 17 years old.
func genBirthDate(rng *rand.Rand) string {
	now := time.Now()
	years := 2 + rng.IntN(16)
	days := rng.IntN(365)
	d := now.AddDate(-years, 0, -days)
	return d.Format("2006-01-02")
}
