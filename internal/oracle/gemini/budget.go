package gemini

import (
	"github.com/tiktoken-go/tokenizer"

	"github.com/hirepath/hirepath/internal/domain"
)

const defaultPromptTokenBudget = 4096

// promptBudget bounds how much accumulated history goes into a prompt.
// Counts use the cl100k encoding, an adequate proxy for Gemini's own
// tokenization at budget granularity.
type promptBudget struct {
	codec tokenizer.Codec
	max   int
}

func newPromptBudget(max int) (*promptBudget, error) {
	if max <= 0 {
		max = defaultPromptTokenBudget
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, err
	}
	return &promptBudget{codec: codec, max: max}, nil
}

func (b *promptBudget) count(text string) int {
	ids, _, err := b.codec.Encode(text)
	if err != nil {
		// Fall back to the rough 4-chars-per-token heuristic.
		return len(text) / 4
	}
	return len(ids)
}

// trimHistory keeps the most recent turns whose cumulative token count
// fits within the budget. Order is preserved.
func (b *promptBudget) trimHistory(history []domain.QuestionAnswer) []domain.QuestionAnswer {
	if len(history) == 0 {
		return history
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		qa := history[i]
		cost := b.count(qa.Question) + b.count(qa.Answer) + b.count(qa.Explanation)
		if total+cost > b.max {
			break
		}
		total += cost
		start = i
	}

	// Always keep at least the latest turn so adaptivity survives
	// pathological budgets.
	if start == len(history) {
		start = len(history) - 1
	}
	return history[start:]
}
