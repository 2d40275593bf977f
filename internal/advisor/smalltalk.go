package advisor

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

// Greetings and pleasantries that carry no financial intent. Anchored
// patterns match short utterances only.
var smallTalkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^h+i+\s*$`),
	regexp.MustCompile(`(?i)^h+e+l+o+\s*$`),
	regexp.MustCompile(`(?i)^hey\s*$`),
	regexp.MustCompile(`(?i)^good\s*(morning|evening|afternoon|night)`),
	regexp.MustCompile(`(?i)^thanks?\s*(you)?\s*$`),
	regexp.MustCompile(`(?i)^ok\s*$`),
	regexp.MustCompile(`(?i)^okay\s*$`),
	regexp.MustCompile(`(?i)^bye\s*$`),
	regexp.MustCompile(`(?i)^how are you`),
	regexp.MustCompile(`(?i)^what('s| is) up`),
	regexp.MustCompile(`(?i)^sup\s*$`),
	regexp.MustCompile(`(?i)^yo\s*$`),
}

var smallTalkReplies = []string{
	"Hey! 👋 Ask me anything about your spending — like totals, recurring purchases, or category breakdowns.",
	"Hi there! I'm your financial coach. Ask me about your expenses and I'll give precise insights.",
	"Hello! 💰 Try asking: 'What did I spend this month?' or 'Which category costs most?'",
}

// IsSmallTalk reports whether text is chit-chat that needs no data lookup.
func IsSmallTalk(text string) bool {
	text = strings.TrimSpace(text)
	for _, p := range smallTalkPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// PickSmallTalkReply returns one canned greeting, uniformly at random.
func PickSmallTalkReply() string {
	return smallTalkReplies[rand.IntN(len(smallTalkReplies))]
}
