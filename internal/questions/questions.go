// Package questions supplies the fixed, tiered question set every interview uses.
package questions

import "fmt"

// Tier is the difficulty of a question.
type Tier string

const (
	TierEasy   Tier = "easy"
	TierMedium Tier = "medium"
	TierHard   Tier = "hard"
)

// Tiers lists the tiers in interview order.
var Tiers = []Tier{TierEasy, TierMedium, TierHard}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierBudgets[t]
	return ok
}

// Question is immutable once issued to a candidate.
type Question struct {
	Text             string `json:"text"`
	Tier             Tier   `json:"difficulty"`
	TimeLimitSeconds int    `json:"timeLimitSeconds"`
	MaxScore         int    `json:"maxScore"`
}

// Budget describes how many questions a tier gets and their limits.
type Budget struct {
	Count            int
	TimeLimitSeconds int
	MaxScore         int
}

var tierBudgets = map[Tier]Budget{
	TierEasy:   {Count: 2, TimeLimitSeconds: 20, MaxScore: 10},
	TierMedium: {Count: 2, TimeLimitSeconds: 60, MaxScore: 20},
	TierHard:   {Count: 2, TimeLimitSeconds: 120, MaxScore: 30},
}

var bank = map[Tier][]string{
	TierEasy: {
		"What is React? Explain briefly.",
		"What is Node.js used for?",
	},
	TierMedium: {
		"Explain the difference between state and props in React.",
		"How does Express.js handle routing?",
	},
	TierHard: {
		"How would you optimize performance in a React app?",
		"Explain the event loop in Node.js with an example.",
	},
}

// TierBudget returns the budget for tier. Unknown tiers yield a zero Budget.
func TierBudget(t Tier) Budget {
	return tierBudgets[t]
}

// Provider issues question sets.
type Provider struct{}

// NewProvider returns the curated provider.
func NewProvider() *Provider {
	return &Provider{}
}

// ForSession returns a freshly allocated ordered question set. Mutating the
// result never affects sets issued earlier or later.
func (p *Provider) ForSession() []Question {
	set := make([]Question, 0, 6)
	for _, tier := range Tiers {
		b := tierBudgets[tier]
		texts := bank[tier]
		for i := 0; i < b.Count && i < len(texts); i++ {
			set = append(set, Question{
				Text:             texts[i],
				Tier:             tier,
				TimeLimitSeconds: b.TimeLimitSeconds,
				MaxScore:         b.MaxScore,
			})
		}
	}
	return set
}

// Label renders a short heading such as "Q3 (medium, 60s)".
func (q Question) Label(index int) string {
	return fmt.Sprintf("Q%d (%s, %ds)", index+1, q.Tier, q.TimeLimitSeconds)
}
