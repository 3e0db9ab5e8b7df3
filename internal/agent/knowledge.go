package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kallisto-osint/osinter/config"
	"github.com/kallisto-osint/osinter/internal/summarize"
	"github.com/kallisto-osint/osinter/internal/telemetry"
)

// synthesisTokens caps the final report completion.
const synthesisTokens = 1024

// noInformationAnswer is the canned report body when every round came back
// empty. An empty investigation still completes; it reports the absence.
const noInformationAnswer = "No public information relevant to the question was found for this subject."

// Completer is the LLM capability the orchestrator uses directly, for topic
// extraction and final synthesis. Satisfied by provider.Client.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Request describes one investigation to run.
type Request struct {
	Subject  string
	Question string
	Location string
	Config   config.InvestigationConfig
}

// Validate rejects requests the orchestrator cannot act on.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return errors.New("subject is required")
	}
	if strings.TrimSpace(r.Question) == "" {
		return errors.New("question is required")
	}
	return nil
}

// KnowledgeAgent owns the investigation lifecycle: it spawns rounds through
// the web agent, promotes follow-up topics to deep dives, and synthesizes
// the final report. One Run call per investigation; the agent itself is
// reusable and safe for concurrent Runs.
type KnowledgeAgent struct {
	llm       Completer
	web       *WebAgent
	pipeline  *summarize.Pipeline
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewKnowledgeAgent wires the orchestrator.
func NewKnowledgeAgent(llm Completer, web *WebAgent, pipeline *summarize.Pipeline, tele *telemetry.Telemetry) *KnowledgeAgent {
	return &KnowledgeAgent{
		llm:       llm,
		web:       web,
		pipeline:  pipeline,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
	}
}

// Run executes a full investigation and returns its final state and
// report. Rounds run under the configured wall-clock budget; synthesis runs
// under the caller's context so a budget cutoff still yields a report from
// whatever was gathered. The investigation is returned even on failure so
// callers can persist partial state.
func (k *KnowledgeAgent) Run(ctx context.Context, req Request) (*Investigation, Report, error) {
	if err := req.Validate(); err != nil {
		return nil, Report{}, err
	}
	cfg := req.Config.Normalize()
	inv := &Investigation{
		ID:        uuid.New().String(),
		Subject:   strings.TrimSpace(req.Subject),
		Location:  strings.TrimSpace(req.Location),
		Question:  strings.TrimSpace(req.Question),
		Config:    cfg,
		Status:    StatusCreated,
		StartedAt: time.Now(),
	}

	tracer := otel.Tracer("osinter/agent")
	ctx, span := tracer.Start(ctx, "investigation.run", trace.WithAttributes(
		attribute.String("investigation.id", inv.ID),
		attribute.Int("investigation.round_limit", cfg.RoundLimit),
	))
	defer span.End()

	k.logger.Printf("investigation %s started: subject=%q rounds<=%d budget=%s",
		inv.ID, inv.Subject, cfg.RoundLimit, cfg.Budget)

	// rounds share one wall-clock budget; synthesis deliberately does not
	roundCtx, cancelRounds := context.WithTimeout(ctx, cfg.Budget)
	defer cancelRounds()

	k.runRounds(roundCtx, tracer, inv)
	if roundCtx.Err() != nil && ctx.Err() == nil {
		inv.TimedOut = true
		k.logger.Printf("investigation %s budget expired after %d round(s), aggregating what we have",
			inv.ID, len(inv.Rounds))
	}
	if err := ctx.Err(); err != nil {
		return k.fail(inv, fmt.Errorf("investigation cancelled: %w", err))
	}

	report, err := k.aggregate(ctx, tracer, inv)
	if err != nil {
		return k.fail(inv, err)
	}
	k.telemetry.RecordInvestigation(string(StatusComplete), time.Since(inv.StartedAt))
	k.logger.Printf("investigation %s complete: %d round(s), %d source(s)",
		inv.ID, report.Rounds, report.Sources)
	return inv, report, nil
}

// runRounds drives the round loop: the initial broad round, then a ranked
// topic queue feeding deep dives until the round limit, an empty queue or
// the budget stops it. All round errors are absorbed; a failed round simply
// contributes nothing.
func (k *KnowledgeAgent) runRounds(ctx context.Context, tracer trace.Tracer, inv *Investigation) {
	cfg := inv.Config

	inv.Status = StatusRoundRunning
	k.runRound(ctx, tracer, inv, initialQuery(inv))

	seen := map[string]struct{}{}
	var queue []Topic
	for len(inv.Rounds) < cfg.RoundLimit && ctx.Err() == nil {
		if len(queue) == 0 {
			inv.Status = StatusTopicsPending
			queue = k.extractTopics(ctx, inv, seen)
			if len(queue) == 0 {
				k.logger.Printf("investigation %s: no further topics after round %d",
					inv.ID, len(inv.Rounds)-1)
				return
			}
			last := &inv.Rounds[len(inv.Rounds)-1]
			last.Topics = append(last.Topics, queue...)
		}
		topic := queue[0]
		queue = queue[1:]

		inv.Status = StatusRoundRunning
		dive := NewDeepDiveAgent(k.web, inv.Subject, topic)
		k.runRound(ctx, tracer, inv, dive.Query())
	}
}

// runRound executes one search-fetch-summarize cycle and appends it.
func (k *KnowledgeAgent) runRound(ctx context.Context, tracer trace.Tracer, inv *Investigation, query string) {
	seq := len(inv.Rounds)
	ctx, span := tracer.Start(ctx, "investigation.round", trace.WithAttributes(
		attribute.Int("round.seq", seq),
		attribute.String("round.query", query),
	))
	defer span.End()

	round := Round{Seq: seq, Query: query, StartedAt: time.Now()}
	findings, err := k.web.Investigate(ctx, query, inv.Config.ResultLimit, seq)
	if err != nil {
		k.logger.Printf("round %d query %q failed: %v", seq, query, err)
	}
	round.Findings = findings
	round.CompletedAt = time.Now()
	if err := inv.appendRound(round); err != nil {
		// unreachable by construction, the loop checks the limit first
		k.logger.Printf("dropping round %d: %v", seq, err)
		return
	}
	k.telemetry.RecordRound()
	k.logger.Printf("round %d done: query=%q findings=%d", seq, query, len(findings))
}

// extractTopics asks the model for follow-up areas based on everything
// gathered so far. Provider exhaustion here is absorbed: the investigation
// proceeds straight to aggregation with the rounds it has.
func (k *KnowledgeAgent) extractTopics(ctx context.Context, inv *Investigation, seen map[string]struct{}) []Topic {
	findings := inv.Findings()
	if len(findings) == 0 {
		return nil
	}
	reply, err := k.llm.Complete(ctx, topicsPrompt(inv.Subject, findings, inv.Config.MaxTopics), 256)
	if err != nil {
		k.logger.Printf("topic extraction failed: %v", err)
		return nil
	}
	var out []Topic
	for _, t := range parseTopics(reply, inv.Config.MaxTopics) {
		key := strings.ToLower(t.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// aggregate synthesizes the final answer from all findings and closes the
// investigation. Findings are never silently dropped: if synthesis itself
// is unavailable the report falls back to listing them verbatim.
func (k *KnowledgeAgent) aggregate(ctx context.Context, tracer trace.Tracer, inv *Investigation) (Report, error) {
	ctx, span := tracer.Start(ctx, "investigation.aggregate")
	defer span.End()

	inv.Status = StatusAggregating
	findings := inv.Findings()

	answer := noInformationAnswer
	if len(findings) > 0 {
		knowledge := formatFindings(findings)
		if summarize.TokenEstimate(knowledge) > summarize.ReduceTokenBudget {
			condensed, err := k.pipeline.Condense(ctx, knowledge)
			if err != nil {
				return Report{}, fmt.Errorf("condense findings: %w", err)
			}
			knowledge = condensed
		}
		out, err := k.llm.Complete(ctx, synthesisPrompt(inv.Subject, inv.Question, knowledge), synthesisTokens)
		if err != nil {
			if ctx.Err() != nil {
				return Report{}, fmt.Errorf("synthesis cancelled: %w", ctx.Err())
			}
			k.logger.Printf("investigation %s synthesis failed, falling back to raw findings: %v", inv.ID, err)
			inv.ProviderExhausted = true
			answer = "Synthesis was unavailable. Findings follow verbatim:\n\n" + knowledge
		} else {
			answer = strings.TrimSpace(out)
		}
	}

	inv.Status = StatusComplete
	inv.CompletedAt = time.Now()
	return BuildReport(inv, answer)
}

// fail closes the investigation as failed, preserving accumulated state.
func (k *KnowledgeAgent) fail(inv *Investigation, err error) (*Investigation, Report, error) {
	inv.Status = StatusFailed
	inv.FailureReason = err.Error()
	inv.CompletedAt = time.Now()
	k.telemetry.RecordInvestigation(string(StatusFailed), time.Since(inv.StartedAt))
	k.logger.Printf("investigation %s failed: %v", inv.ID, err)
	return inv, Report{}, err
}

// initialQuery composes the broad round-zero query from the request parts.
func initialQuery(inv *Investigation) string {
	parts := []string{inv.Subject}
	if inv.Location != "" {
		parts = append(parts, inv.Location)
	}
	parts = append(parts, inv.Question)
	return strings.Join(parts, " ")
}
