package services

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// Template pools for the fallback sentence generator. The word is quoted
// to sidestep article and inflection issues (e.g. "a apple").
var (
	sentenceTemplatesCommon = []string{
		"My family likes to talk about '%s'.",
		"We learned about '%s' in class today.",
		"The teacher gave an example with '%s'.",
		"Many people use '%s' every day.",
		"I saw the word '%s' in a book.",
		"This question is about '%s'.",
		"Can you explain what '%s' means?",
		"People often discuss '%s' in daily life.",
	}

	sentenceTemplatesVerb = []string{
		"People often '%s' after school.",
		"They decided to '%s' together.",
		"Try to '%s' carefully in this task.",
		"Sometimes we need to '%s' to solve problems.",
	}

	sentenceTemplatesAdjective = []string{
		"It was a very '%s' idea.",
		"The story sounds quite '%s'.",
		"Her answer seems '%s' to me.",
		"That looks rather '%s'.",
	}

	sentenceTemplatesAdverb = []string{
		"She spoke '%s' to make everything clear.",
		"Please work '%s' to avoid mistakes.",
		"They moved '%s' through the hallway.",
		"He answered '%s' during the test.",
	}

	sentenceTemplatesNoun = []string{
		"Everyone was talking about '%s'.",
		"The museum had an exhibit about '%s'.",
		"I read an article on '%s' yesterday.",
		"We found more information about '%s'.",
	}
)

// GenerateSentenceWithWord builds a fallback example sentence when the
// explanation carries no examples. Deterministic per word so the same
// word always renders the same sentence across sessions.
func GenerateSentenceWithWord(word string, posTags []string) string {
	templates := sentenceTemplatesCommon
	for _, tag := range posTags {
		switch tag {
		case "v", "verb":
			templates = sentenceTemplatesVerb
		case "adj", "adjective":
			templates = sentenceTemplatesAdjective
		case "adv", "adverb":
			templates = sentenceTemplatesAdverb
		case "n", "noun":
			templates = sentenceTemplatesNoun
		default:
			continue
		}
		break
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	rng := rand.New(rand.NewSource(int64(h.Sum32())))

	return fmt.Sprintf(templates[rng.Intn(len(templates))], word)
}
