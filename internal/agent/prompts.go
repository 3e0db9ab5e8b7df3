package agent

import (
	"fmt"
	"strings"
)

func topicsPrompt(subject string, findings []Finding, max int) string {
	var b strings.Builder
	b.WriteString("You are assisting an open-source intelligence investigation into ")
	b.WriteString(subject)
	b.WriteString(".\nThe summaries gathered so far are:\n\n")
	for _, f := range findings {
		b.WriteString("- ")
		b.WriteString(f.Summary)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nName up to %d specific areas worth investigating further, most promising first. ", max)
	b.WriteString("Reply with a comma-separated list only, no numbering and no explanations.")
	return b.String()
}

func synthesisPrompt(subject, question, knowledge string) string {
	var b strings.Builder
	b.WriteString("You are writing the final report of an open-source intelligence investigation into ")
	b.WriteString(subject)
	b.WriteString(".\n\nQuestion to answer: ")
	b.WriteString(question)
	b.WriteString("\n\nGathered knowledge, one entry per source:\n\n")
	b.WriteString(knowledge)
	b.WriteString("\n\nAnswer the question using only the knowledge above. ")
	b.WriteString("Mention which sources support each claim and state clearly when the knowledge is insufficient.\n\nReport:")
	return b.String()
}

// formatFindings renders findings as the knowledge block fed to synthesis.
// Findings arrive already ordered, so the rendering is deterministic.
func formatFindings(findings []Finding) string {
	var b strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&b, "Source: %s\nSummary: %s\n\n", f.URL, f.Summary)
	}
	return strings.TrimSpace(b.String())
}

// parseTopics splits a comma-separated model reply into ranked topics.
// Position implies priority: earlier entries score higher.
func parseTopics(reply string, max int) []Topic {
	parts := strings.Split(reply, ",")
	var topics []Topic
	for _, p := range parts {
		text := strings.Trim(strings.TrimSpace(p), ".\"'")
		if text == "" {
			continue
		}
		topics = append(topics, Topic{Text: text})
		if len(topics) == max {
			break
		}
	}
	for i := range topics {
		topics[i].Priority = 1.0 - float64(i)/float64(len(topics))
	}
	return topics
}
