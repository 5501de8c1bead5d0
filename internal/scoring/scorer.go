// Package scoring turns a free-text answer into a bounded heuristic score.
package scoring

import (
	"math"
	"strings"

	"github.com/spigell/interview-assistant/internal/questions"
)

type curve struct {
	divisor int
	offset  int
	cap     int
}

var curves = map[questions.Tier]curve{
	questions.TierEasy:   {divisor: 5, offset: 4, cap: 10},
	questions.TierMedium: {divisor: 7, offset: 8, cap: 20},
	questions.TierHard:   {divisor: 10, offset: 10, cap: 30},
}

var keywords = map[questions.Tier][]string{
	questions.TierEasy:   {"React", "component", "let", "const", "var", "REST"},
	questions.TierMedium: {"Redux", "Context", "Promise", "async", "await", "event loop", "optimize"},
	questions.TierHard:   {"authentication", "SSR", "CI/CD", "microservices", "scalable", "refresh token"},
}

// Scorer scores answers. With CapToMax the keyword bonus cannot push the total
// above the tier maximum.
type Scorer struct {
	CapToMax bool
}

// New returns a scorer with the given cap policy.
func New(capToMax bool) *Scorer {
	return &Scorer{CapToMax: capToMax}
}

// Breakdown explains how a score was reached.
type Breakdown struct {
	Tokens   int
	Base     int
	Keywords []string
	Total    int
}

// Score returns the answer score for tier. Unknown tiers score 0.
func (s *Scorer) Score(answer string, tier questions.Tier) int {
	return s.Breakdown(answer, tier).Total
}

// Breakdown computes the score together with its components.
func (s *Scorer) Breakdown(answer string, tier questions.Tier) Breakdown {
	c, ok := curves[tier]
	if !ok {
		return Breakdown{}
	}

	tokens := len(strings.Fields(answer))
	b := Breakdown{Tokens: tokens}
	if tokens == 0 {
		return b
	}

	b.Base = min(c.cap, roundHalfUp(float64(tokens)/float64(c.divisor))+c.offset)

	lc := strings.ToLower(answer)
	for _, kw := range keywords[tier] {
		if strings.Contains(lc, strings.ToLower(kw)) {
			b.Keywords = append(b.Keywords, kw)
		}
	}

	b.Total = b.Base + len(b.Keywords)
	if s != nil && s.CapToMax {
		b.Total = min(b.Total, c.cap)
	}
	return b
}

// Keywords returns a copy of the keyword list for tier.
func Keywords(tier questions.Tier) []string {
	return append([]string(nil), keywords[tier]...)
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
