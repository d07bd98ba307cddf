package usecase

import (
	"fmt"
	"strings"

	"trakii-bot/internal/profile"
)

// buildTriageSystemPrompt renders the classification instructions sent as the
// system message: bot persona, background, and one rule per label.
func buildTriageSystemPrompt(p profile.Profile) string {
	return strings.Join([]string{
		"< Role >",
		fmt.Sprintf("You are %s, a helpful assistant for GPS tracking, member of the Trakii an international organization.", p.FullName),
		"</ Role >",
		"",
		"< Background >",
		normalizePromptInput(p.Background) + ".",
		"</ Background >",
		"",
		"< Instructions >",
		"",
		"Your job is to classify the following message into one of six categories:",
		"",
		"1. location - When the user asks for location (coordinates or place)",
		"2. speed - When the user asks for speed",
		"3. status - When the user asks for device status (online, battery, last update)",
		"4. list - When the user asks for the catalog of registered devices",
		"5. ask - When the user asks general questions about Trakii",
		"6. ignore - When the user asks whatever that is not related to the previous detailed categories",
		"",
		"Classify the below message into one of these categories.",
		"",
		"When the input message comes on Spanish you have to answer ALWAYS on Spanish",
		"",
		"</ Instructions >",
		"",
		"< Rules >",
		"- Location: " + p.Rules.Location,
		"- Speed: " + p.Rules.Speed,
		"- Status: " + p.Rules.Status,
		"- List: " + p.Rules.List,
		"- Ask: " + p.Rules.Ask,
		"- Ignore: " + p.Rules.Ignore,
		"</ Rules >",
		"",
		"Classify the following message:",
	}, "\n")
}

// buildTriageUserPrompt wraps the raw user message for the classification call.
func buildTriageUserPrompt(message string) string {
	return fmt.Sprintf("Please determine how to handle the below message:\n\n%s", message)
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
