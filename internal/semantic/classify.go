package semantic

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/config"
)

// minClassifiableLen is the shortest transcript worth classifying.
const minClassifiableLen = 10

var productKeywords = []string{
	"code", "api", "function", "bug", "deploy", "python", "script", "json",
	"token", "import", "class", "meeting", "agenda", "client", "project",
	"timeline", "deadline", "quarter", "revenue", "feature", "app",
	"so basically", "means that", "reason is",

	"chal gaya", "run ho gaya", "error aa raha hai", "phat gaya", "test karna",
	"deploy kar do", "fix kar diya", "kaam hai", "urgent hai", "dead line",
	"commit kiya", "push kiya", "file bhejo", "check kar lo", "samajh nahi aaya",
	"kaise chalega", "sahi chal raha hai", "issue hai", "server down", "bhai code",
	"logic kya hai", "build ban gaya", "repo share", "merge kar", "pull request",
}

var funnyKeywords = []string{
	"haha", "lol", "funny", "lmao", "rofl", "joke", "kidding",

	"mazak", "kya baat hai", "mast joke", "arre bhai", "pagal hai kya",
	"gazab", "bawal", "sahi khel gaya", "kya scene hai", "has mat",
	"lol bhai", "epic tha", "bakwas mat kar", "hasna mat",
}

// keywordRule maps a keyword pattern to a category. Rules are tried in order.
type keywordRule struct {
	category string
	re       *regexp.Regexp
}

var keywordRules = []keywordRule{
	{config.CategoryProduct, wordsPattern(productKeywords)},
	{config.CategoryFunny, wordsPattern(funnyKeywords)},
}

func wordsPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// LLM answers a single chat prompt.
type LLM interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Classifier assigns a category to a transcript: keyword rules first, then
// the LLM if configured, then "general".
type Classifier struct {
	LLM        LLM      // optional
	Categories []string // answer vocabulary, in priority order
	Warn       func(format string, args ...any)
}

// NewClassifier returns a classifier over the given vocabulary.
func NewClassifier(llm LLM, categories []string) *Classifier {
	if len(categories) == 0 {
		categories = []string{config.CategoryProduct, config.CategoryFunny, config.CategoryGeneral}
	}
	return &Classifier{LLM: llm, Categories: categories}
}

// Classify labels text. It never fails: LLM errors degrade to the fallback.
func (c *Classifier) Classify(ctx context.Context, text string) Label {
	text = strings.TrimSpace(text)
	label := Label{Category: config.CategoryGeneral, Transcript: text, Attribution: AttributionFallback}
	if len(text) < minClassifiableLen {
		return label
	}

	for _, rule := range keywordRules {
		if rule.re.MatchString(text) {
			label.Category = rule.category
			label.Attribution = AttributionRegex
			return label
		}
	}

	if c.LLM == nil {
		return label
	}
	answer, err := c.LLM.Complete(ctx, systemPrompt, c.userPrompt(text))
	if err != nil {
		if c.Warn != nil {
			c.Warn("classifier LLM call failed: %v", err)
		}
		return label
	}
	if cat := c.match(answer); cat != "" {
		label.Category = cat
		label.Attribution = AttributionLLM
	}
	return label
}

// match returns the first vocabulary category contained in answer.
func (c *Classifier) match(answer string) string {
	answer = strings.ToLower(strings.TrimSpace(answer))
	for _, cat := range c.Categories {
		if strings.Contains(answer, cat) {
			return cat
		}
	}
	return ""
}

const systemPrompt = "You label short video clip transcripts with exactly one category. Answer with the category name only."

func (c *Classifier) userPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("Classify this text into ONE category.\n")
	sb.WriteString("Priority order when several match (highest first):\n")
	for i, cat := range c.Categories {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, cat)
	}
	sb.WriteString("Only answer the last category if nothing else fits.\n\n")
	sb.WriteString("Text: \"")
	sb.WriteString(text)
	sb.WriteString("\"\n\nAnswer ONLY with the category name (lowercase).")
	return sb.String()
}
