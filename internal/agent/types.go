package agent

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kallisto-osint/osinter/config"
)

// Status is the investigation state machine position.
type Status string

const (
	StatusCreated       Status = "created"
	StatusRoundRunning  Status = "round_running"
	StatusTopicsPending Status = "topics_pending"
	StatusAggregating   Status = "aggregating"
	StatusComplete      Status = "complete"
	StatusFailed        Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Finding is the durable output unit: one per successfully summarized
// source. Immutable once created.
type Finding struct {
	URL        string  `json:"url"`
	Title      string  `json:"title,omitempty"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
	Round      int     `json:"round"`
	Rank       int     `json:"rank"`
}

// Topic is a candidate follow-up subject proposed after a round. Consumed
// at most once: promoted to a deep-dive round or dropped.
type Topic struct {
	Text     string  `json:"text"`
	Priority float64 `json:"priority"`
}

// Round is one search-fetch-summarize cycle. Rounds are append-only and
// never mutated after completion.
type Round struct {
	Seq         int       `json:"seq"`
	Query       string    `json:"query"`
	Findings    []Finding `json:"findings"`
	Topics      []Topic   `json:"topics,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Investigation is the root unit of work, owned exclusively by the
// knowledge agent for its lifetime.
type Investigation struct {
	ID       string                     `json:"id"`
	Subject  string                     `json:"subject"`
	Location string                     `json:"location,omitempty"`
	Question string                     `json:"question"`
	Config   config.InvestigationConfig `json:"config"`

	Status            Status    `json:"status"`
	Rounds            []Round   `json:"rounds"`
	TimedOut          bool      `json:"timed_out"`
	ProviderExhausted bool      `json:"provider_exhausted"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at,omitempty"`
}

// appendRound enforces the round invariants at a single choke point:
// sequence numbers strictly increasing and gapless, count capped by the
// configured limit.
func (inv *Investigation) appendRound(r Round) error {
	if r.Seq != len(inv.Rounds) {
		return fmt.Errorf("round seq %d out of order, expected %d", r.Seq, len(inv.Rounds))
	}
	if len(inv.Rounds) >= inv.Config.RoundLimit {
		return fmt.Errorf("round limit %d reached", inv.Config.RoundLimit)
	}
	inv.Rounds = append(inv.Rounds, r)
	return nil
}

// Findings flattens all rounds into one deterministic order: by round, then
// by original search rank. Downstream synthesis prompts are sensitive to
// source ordering, so arrival order is never exposed.
func (inv *Investigation) Findings() []Finding {
	var out []Finding
	for _, r := range inv.Rounds {
		out = append(out, r.Findings...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].Rank < out[j].Rank
	})
	return out
}

// Report is the terminal artifact synthesized from all findings.
type Report struct {
	InvestigationID   string    `json:"investigation_id"`
	Subject           string    `json:"subject"`
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	Sources           int       `json:"sources"`
	Rounds            int       `json:"rounds"`
	TimedOut          bool      `json:"timed_out"`
	ProviderExhausted bool      `json:"provider_exhausted"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// ErrNotComplete guards the report invariant: a report is only
// constructible from a completed investigation.
var ErrNotComplete = errors.New("investigation is not complete")

// BuildReport assembles the report for a completed investigation.
func BuildReport(inv *Investigation, answer string) (Report, error) {
	if inv.Status != StatusComplete {
		return Report{}, fmt.Errorf("%w: status %s", ErrNotComplete, inv.Status)
	}
	return Report{
		InvestigationID:   inv.ID,
		Subject:           inv.Subject,
		Question:          inv.Question,
		Answer:            answer,
		Sources:           len(inv.Findings()),
		Rounds:            len(inv.Rounds),
		TimedOut:          inv.TimedOut,
		ProviderExhausted: inv.ProviderExhausted,
		GeneratedAt:       time.Now(),
	}, nil
}
