package usecase

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"realty-assistant/internal/domain"
)

func turns(n int) []domain.Turn {
	out := make([]domain.Turn, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			out = append(out, domain.UserTurn(fmt.Sprintf("m%d", i)))
		} else {
			out = append(out, domain.AssistantTurn(fmt.Sprintf("m%d", i)))
		}
	}
	return out
}

func TestSelectHistory(t *testing.T) {
	for _, n := range []int{0, 1, 5, 10, 11, 20} {
		got := selectHistory(turns(n), 10)
		want := n
		if want > 10 {
			want = 10
		}
		require.Len(t, got, want, "n=%d", n)
		if want > 0 {
			require.Equal(t, fmt.Sprintf("m%d", n-1), got[len(got)-1].Content)
			require.Equal(t, fmt.Sprintf("m%d", n-want), got[0].Content)
		}
	}
	require.Empty(t, selectHistory(turns(4), 0))
}

func TestRenderHistory(t *testing.T) {
	require.Equal(t, "", renderHistory(nil))
	require.Equal(t, "user: m0\nassistant: m1\nuser: m2", renderHistory(turns(3)))

	rendered := renderHistory(selectHistory(turns(15), 10))
	lines := strings.Split(rendered, "\n")
	require.Len(t, lines, 10)
	require.Equal(t, "assistant: m5", lines[0])
	require.Equal(t, "user: m14", lines[9])
}

func TestBuildPromptMessages_Shape(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	msgs := buildPromptMessages(promptContext{
		preferences: domain.DefaultUserPreferences(),
		now:         now,
		maxHistory:  10,
	}, "Any villas on the Palm?", turns(2))

	require.Len(t, msgs, 2)
	require.Equal(t, domain.RoleSystem, msgs[0].Role)
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "Any villas on the Palm?"}, msgs[1])

	system := msgs[0].Content
	require.Contains(t, system, "You are a knowledgeable Dubai real estate assistant.")
	require.Contains(t, system, "Property Type: Apartment")
	require.Contains(t, system, "Preferred Areas: Dubai Marina, Downtown Dubai, Palm Jumeirah")
	require.Contains(t, system, "Budget Range: 500000 - 2000000 AED")
	require.Contains(t, system, "Bedrooms: 2")
	require.Contains(t, system, "Purpose: Buy")
	require.Contains(t, system, "Desired Amenities: Swimming Pool, Gym, Parking")
	require.Contains(t, system, "Current Time: 2025-01-02 03:04:05")
	require.Contains(t, system, "When responding:\n1. Be professional")
	require.Contains(t, system, "6. Keep responses concise but informative. keep it to one or two paragraph maximum.\n")
	require.Contains(t, system, "7. If you don't know something specific, tell that.\n")
	require.True(t, strings.HasSuffix(system, "Previous conversation context:\nuser: m0\nassistant: m1"))
	require.NotContains(t, system, "Any villas on the Palm?")
}

func TestBuildPromptMessages_CustomPreferences(t *testing.T) {
	prefs := domain.UserPreferences{
		PropertyType:   "Villa",
		PreferredAreas: []string{"Arabian Ranches"},
		BudgetRange:    domain.BudgetRange{Min: 3000000, Max: 6000000},
		Bedrooms:       "4",
		Purpose:        "Rent",
		Amenities:      nil,
	}
	msgs := buildPromptMessages(promptContext{preferences: prefs, now: time.Now(), maxHistory: 10}, "hi", nil)
	require.Contains(t, msgs[0].Content, "Property Type: Villa")
	require.Contains(t, msgs[0].Content, "Preferred Areas: Arabian Ranches\n")
	require.Contains(t, msgs[0].Content, "Budget Range: 3000000 - 6000000 AED")
	require.Contains(t, msgs[0].Content, "Purpose: Rent")
	require.Contains(t, msgs[0].Content, "Desired Amenities: \n")
}

func TestBuildPromptMessages_DoesNotMutateState(t *testing.T) {
	state := turns(12)
	snapshot := append([]domain.Turn(nil), state...)
	_ = buildPromptMessages(promptContext{preferences: domain.DefaultUserPreferences(), now: time.Now(), maxHistory: 10}, "hi", state)
	require.Equal(t, snapshot, state)
}

func TestPreview(t *testing.T) {
	require.Equal(t, "short", preview("short"))
	long := strings.Repeat("é", 60)
	require.Equal(t, strings.Repeat("é", 50)+"...", preview(long))
}
