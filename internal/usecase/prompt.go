package usecase

import (
	"fmt"
	"strings"
	"time"

	"realty-assistant/internal/domain"
)

const promptTimeLayout = "2006-01-02 15:04:05"

type promptContext struct {
	preferences domain.UserPreferences
	now         time.Time
	maxHistory  int
}

// buildPromptMessages returns the system instructions followed by the raw
// user message. It only reads its inputs.
func buildPromptMessages(ctx promptContext, message string, state []domain.Turn) []domain.ChatMessage {
	history := renderHistory(selectHistory(state, ctx.maxHistory))
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildSystemPrompt(ctx, history)},
		{Role: domain.RoleUser, Content: message},
	}
}

// selectHistory returns the trailing max turns, or all of them when fewer
// exist. The result shares the backing array with state.
func selectHistory(state []domain.Turn, max int) []domain.Turn {
	if max <= 0 {
		return nil
	}
	if len(state) > max {
		return state[len(state)-max:]
	}
	return state
}

func renderHistory(turns []domain.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Role+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

func buildSystemPrompt(ctx promptContext, history string) string {
	p := ctx.preferences
	return strings.Join([]string{
		"You are a knowledgeable Dubai real estate assistant. Your goal is to help users find properties " +
			"that match their requirements and provide detailed information about Dubai's real estate market.",
		"",
		"User Preferences:",
		"Property Type: " + p.PropertyType,
		"Preferred Areas: " + strings.Join(p.PreferredAreas, ", "),
		fmt.Sprintf("Budget Range: %d - %d AED", p.BudgetRange.Min, p.BudgetRange.Max),
		"Bedrooms: " + p.Bedrooms,
		"Purpose: " + p.Purpose,
		"Desired Amenities: " + strings.Join(p.Amenities, ", "),
		"",
		"Current Time: " + ctx.now.Format(promptTimeLayout),
		"",
		"When responding:",
		responseRules(),
		"",
		"Previous conversation context:",
		history,
	}, "\n")
}

func responseRules() string {
	return strings.Join([]string{
		"1. Be professional and informative about Dubai real estate",
		"2. Consider the user's preferences and budget",
		"3. Provide specific details about areas and property types",
		"4. Include relevant market insights",
		"5. Suggest similar areas when appropriate",
		"6. Keep responses concise but informative. keep it to one or two paragraph maximum.",
		"7. If you don't know something specific, tell that.",
	}, "\n")
}
