package advisor

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"zenith/internal/core"
)

const adviceSystemPrompt = `You are FinAI, a precise financial assistant.
RULES:
1. NEVER perform arithmetic - use only the pre-calculated numbers provided
2. If a DIRECT ANSWER is provided, use those exact figures
3. Keep responses concise (2-3 sentences max)
4. Use %s symbol for all amounts
5. Be helpful and actionable with advice`

const promptRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// recentLimit is how many of the newest transactions the advice prompt lists.
const recentLimit = 10

func (a *Advisor) systemPrompt() string {
	return fmt.Sprintf(adviceSystemPrompt, a.format.Symbol)
}

func (a *Advisor) advicePrompt(question string, snap *core.Snapshot, recent []core.Transaction, fact string) string {
	f := a.format
	s := snap.Last30Days

	var b strings.Builder
	b.WriteString("📊 YOUR FINANCIAL DATA (Verified):\n")
	b.WriteString(promptRule + "\n")
	fmt.Fprintf(&b, "📅 Last 30 Days: %s | %d transactions | Avg: %s\n", f.Money(s.Total), s.Count, f.Money(s.Avg))
	fmt.Fprintf(&b, "📆 This Month: %s\n\n", f.Money(snap.MonthlyTotal))

	b.WriteString("🛒 Recent Transactions:\n")
	b.WriteString(f.TransactionLines(recent[:min(len(recent), recentLimit)]))
	b.WriteString("\n\n📁 By Category:\n")
	b.WriteString(f.CategoryLines(snap.Categories))
	b.WriteString("\n\n🔄 Recurring:\n")
	b.WriteString(f.RecurringLines(snap.Recurring))
	b.WriteString("\n" + promptRule + "\n")

	if fact != "" {
		fmt.Fprintf(&b, "⚡ %s\n", fact)
	}
	fmt.Fprintf(&b, "\n❓ Question: %q\n\n", question)
	b.WriteString("💡 Provide a helpful, concise answer based on the data above.")
	return b.String()
}

func (a *Advisor) tipPrompt(snap *core.Snapshot) string {
	f := a.format
	topName, topAmount := "N/A", f.Money(decimal.Zero)
	if len(snap.Categories) > 0 {
		topName = string(snap.Categories[0].Category)
		topAmount = f.Money(snap.Categories[0].Amount)
	}

	var b strings.Builder
	b.WriteString("You are a financial advisor. Based on this data:\n")
	fmt.Fprintf(&b, "- Total spending last 30 days: %s\n", f.Money(snap.Last30Days.Total))
	fmt.Fprintf(&b, "- Top category: %s at %s\n\n", topName, topAmount)
	fmt.Fprintf(&b, "Give ONE short, actionable money-saving tip. Be specific with amounts. Use %s symbol.", f.Symbol)
	return b.String()
}
