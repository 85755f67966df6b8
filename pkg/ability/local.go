package ability

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"supportflow/pkg/kb"
	"supportflow/pkg/logx"
	"supportflow/pkg/state"
	"supportflow/pkg/ticket"
	"supportflow/pkg/utils"
)

// priorityLevels maps the raw intake spellings to canonical priorities.
var priorityLevels = map[string]string{
	"l": "low", "lo": "low", "low": "low",
	"m": "medium", "med": "medium", "medium": "medium", "normal": "medium",
	"h": "high", "hi": "high", "high": "high", "urgent": "high", "critical": "high",
}

// LocalSet builds the deterministic abilities of the pipeline. The knowledge
// base and ticket system are the only external collaborators; both are
// treated as recoverable dependencies.
type LocalSet struct {
	KB        kb.Searcher
	Tickets   ticket.Updater
	Threshold int

	logger *logx.Logger
}

// NewLocalSet wires the local abilities to their collaborators.
func NewLocalSet(searcher kb.Searcher, tickets ticket.Updater, threshold int) *LocalSet {
	return &LocalSet{
		KB:        searcher,
		Tickets:   tickets,
		Threshold: threshold,
		logger:    logx.NewLogger("ability"),
	}
}

// RegisterAll installs every local ability into the registry.
func (l *LocalSet) RegisterAll(r *Registry) {
	r.Register("accept_payload", l.acceptPayload)
	r.Register("parse_request_text", l.parseRequestText)
	r.Register("normalize_fields", l.normalizeFields)
	r.Register("add_flags_calculations", l.addFlagsCalculations)
	r.Register("store_answer", l.storeAnswer)
	r.Register("knowledge_base_search", l.knowledgeBaseSearch)
	r.Register("store_data", l.storeData)
	r.Register("solution_evaluation", l.solutionEvaluation)
	r.Register("escalation_decision", l.escalationDecision)
	r.Register("update_payload", l.updatePayload)
	r.Register("update_ticket", l.updateTicket)
	r.Register("close_ticket", l.closeTicket)
	r.Register("response_generation", l.responseGeneration)
	r.Register("trigger_notifications", l.triggerNotifications)
	r.Register("output_payload", l.outputPayload)
}

// normalizedPriority prefers the priority already normalized into state,
// falling back to the raw intake value.
func normalizedPriority(snapshot state.Snapshot) string {
	if p := snapshot.StringField("priority"); p != "" {
		return strings.ToLower(p)
	}
	return strings.ToLower(strings.TrimSpace(snapshot.Intake.Priority))
}

// acceptPayload seeds the stable containers later stages write into.
func (l *LocalSet) acceptPayload(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	updates := map[string]any{"accept_payload": "accept_payload_result"}
	if _, ok := snapshot.Field(state.KeyStructuredRequest); !ok {
		updates[state.KeyStructuredRequest] = map[string]any{}
	}
	if _, ok := snapshot.Field(state.KeyFlags); !ok {
		updates[state.KeyFlags] = map[string]any{}
	}
	if _, ok := snapshot.Field(state.KeyDecision); !ok {
		updates[state.KeyDecision] = map[string]any{}
	}
	return state.NewResult("accept_payload", updates), nil
}

// parseRequestText gives the raw query a minimal structure without guessing
// at semantics.
func (l *LocalSet) parseRequestText(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	structured := snapshot.MapField(state.KeyStructuredRequest)
	if structured == nil {
		structured = map[string]any{}
	}
	if _, ok := structured["summary"]; !ok {
		structured["summary"] = snapshot.Intake.Query
	}
	if _, ok := structured["language"]; !ok {
		structured["language"] = "unknown"
	}
	if _, ok := structured["length"]; !ok {
		structured["length"] = len(snapshot.Intake.Query)
	}
	return state.NewResult("parse_request_text", map[string]any{
		"parse_request_text":       "parse_request_text_result",
		state.KeyStructuredRequest: structured,
	}), nil
}

// normalizeFields canonicalizes priority and email casing.
func (l *LocalSet) normalizeFields(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	updates := map[string]any{"normalize_fields": "normalize_fields_result"}

	if raw := strings.TrimSpace(snapshot.Intake.Priority); raw != "" {
		key := strings.ToLower(raw)
		if canonical, ok := priorityLevels[key]; ok {
			updates["priority"] = canonical
		} else {
			updates["priority"] = key
		}
	}
	if email := strings.TrimSpace(snapshot.Intake.Email); email != "" {
		updates["email"] = strings.ToLower(email)
	}

	return state.NewResult("normalize_fields", updates), nil
}

// addFlagsCalculations derives presence flags and an SLA risk signal from
// structured fields only.
func (l *LocalSet) addFlagsCalculations(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	flags := snapshot.MapField(state.KeyFlags)
	if flags == nil {
		flags = map[string]any{}
	}

	flags["has_entities"] = len(snapshot.MapField(state.KeyEntities)) > 0
	flags["has_kb_result"] = hasField(snapshot, state.KeyKnowledgeBase)
	flags["has_enrichment"] = hasField(snapshot, state.KeyEnrichment)
	flags["has_answer"] = snapshot.StringField(state.KeyExtractAnswer) != ""

	switch normalizedPriority(snapshot) {
	case "high", "critical":
		flags["sla_risk"] = "elevated"
	case "medium", "normal":
		flags["sla_risk"] = "moderate"
	case "low":
		flags["sla_risk"] = "low"
	default:
		flags["sla_risk"] = "unknown"
	}

	return state.NewResult("add_flags_calculations", map[string]any{
		"add_flags_calculations": "add_flags_calculations_result",
		state.KeyFlags:           flags,
	}), nil
}

// storeAnswer appends the captured human answer into the stable answers
// list.
func (l *LocalSet) storeAnswer(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	updates := map[string]any{"store_answer": "store_answer_result"}
	if ans := snapshot.StringField(state.KeyExtractAnswer); ans != "" {
		answers := snapshot.SliceField(state.KeyAnswers)
		answers = append(answers, map[string]any{"text": ans})
		updates[state.KeyAnswers] = answers
	}
	return state.NewResult("store_answer", updates), nil
}

// knowledgeBaseSearch queries the knowledge base with the structured summary.
// An empty result set is recoverable: the miss is recorded and the pipeline
// continues.
func (l *LocalSet) knowledgeBaseSearch(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	query := snapshot.Intake.Query
	if structured := snapshot.MapField(state.KeyStructuredRequest); structured != nil {
		if summary := utils.GetMapFieldOr(structured, "summary", ""); summary != "" {
			query = summary
		}
	}
	for _, item := range snapshot.SliceField(state.KeyAnswers) {
		if answer, ok := item.(map[string]any); ok {
			if text, ok := answer["text"].(string); ok {
				query += " " + text
			}
		}
	}

	hits, err := l.KB.Search(query, 0)
	if err != nil {
		res := state.NewResult("knowledge_base_search", map[string]any{
			state.KeyKnowledgeBase: map[string]any{"found": false},
		})
		return res, fmt.Errorf("%w: knowledge base search: %v", ErrRecoverable, err)
	}

	if len(hits) == 0 {
		res := state.NewResult("knowledge_base_search", map[string]any{
			state.KeyKnowledgeBase: map[string]any{"found": false},
		})
		return res, fmt.Errorf("%w: no knowledge base matches", ErrRecoverable)
	}

	results := make([]any, 0, len(hits))
	for _, hit := range hits {
		results = append(results, map[string]any{
			"id":      hit.Article.ID,
			"title":   hit.Article.Title,
			"snippet": hit.Snippet,
			"score":   hit.Score,
		})
	}
	l.logger.Debug("knowledge base returned %d hits for request %s", len(hits), snapshot.ID)
	return state.NewResult("knowledge_base_search", map[string]any{
		state.KeyKnowledgeBase: map[string]any{"found": true, "results": results},
	}), nil
}

// storeData attaches retrieved knowledge into the stable container.
func (l *LocalSet) storeData(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	updates := map[string]any{"store_data": "store_data_result"}
	if kbResult, ok := snapshot.Field(state.KeyKnowledgeBase); ok {
		retrieved := snapshot.SliceField(state.KeyRetrievedData)
		retrieved = append(retrieved, map[string]any{"source": "kb", "payload": kbResult})
		updates[state.KeyRetrievedData] = retrieved
	}
	return state.NewResult("store_data", updates), nil
}

// solutionEvaluation scores solution confidence from the presence and shape
// of structured fields.
func (l *LocalSet) solutionEvaluation(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	score := 50

	switch normalizedPriority(snapshot) {
	case "high":
		score += 15
	case "low":
		score -= 5
	}

	if len(snapshot.MapField(state.KeyEntities)) > 0 {
		score += 10
	}

	if kbResult := snapshot.MapField(state.KeyKnowledgeBase); kbResult != nil {
		if utils.GetMapFieldOr(kbResult, "found", false) {
			score += 10
		} else {
			score -= 5
		}
	}

	if enrichment := snapshot.MapField(state.KeyEnrichment); enrichment != nil {
		if prev, ok := asInt(enrichment["previous_tickets"]); ok && prev >= 3 {
			score -= 10
		}
	}

	score = clamp(score, 0, 100)
	return state.NewResult("solution_evaluation", map[string]any{
		state.KeySolutionEvaluation: map[string]any{"score": score},
	}), nil
}

// escalationDecision compares the confidence score against the configured
// threshold. Scores below it escalate.
func (l *LocalSet) escalationDecision(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	score := 0
	if eval := snapshot.MapField(state.KeySolutionEvaluation); eval != nil {
		if s, ok := asInt(eval["score"]); ok {
			score = s
		}
	}

	decision := map[string]any{"escalate": score < l.Threshold}
	if score < l.Threshold {
		decision["reason"] = fmt.Sprintf("confidence score %d below threshold %d", score, l.Threshold)
	}
	return state.NewResult("escalation_decision", map[string]any{
		state.KeyEscalationDecision: decision,
	}), nil
}

// updatePayload records the decision outcome in the stable decision
// container.
func (l *LocalSet) updatePayload(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	decision := snapshot.MapField(state.KeyDecision)
	if decision == nil {
		decision = map[string]any{}
	}

	score := -1
	if eval := snapshot.MapField(state.KeySolutionEvaluation); eval != nil {
		if s, ok := asInt(eval["score"]); ok {
			decision["score"] = s
			score = s
		}
	}

	escalate := false
	if esc := snapshot.MapField(state.KeyEscalationDecision); esc != nil {
		if e, ok := esc["escalate"].(bool); ok {
			escalate = e
			decision["should_escalate"] = e
			if reason, ok := esc["reason"]; ok {
				decision["escalation_reason"] = reason
			}
		}
	}

	if _, ok := decision["next_status_hint"]; !ok {
		switch {
		case score >= l.Threshold && !escalate:
			decision["next_status_hint"] = "resolved_candidate"
		case escalate:
			decision["next_status_hint"] = "pending_handoff"
		default:
			decision["next_status_hint"] = "in_progress"
		}
	}

	return state.NewResult("update_payload", map[string]any{
		"update_payload":  "update_payload_result",
		state.KeyDecision: decision,
	}), nil
}

// updateTicket pushes the decision outcome into the ticket system. Ticketing
// failures are recorded and absorbed.
func (l *LocalSet) updateTicket(ctx context.Context, snapshot state.Snapshot) (state.Result, error) {
	decision := snapshot.MapField(state.KeyDecision)
	escalate := utils.GetMapFieldOr(decision, "should_escalate", false)
	score, _ := asInt(decision["score"])

	status := "pending"
	switch {
	case escalate:
		status = "escalated"
	case score >= l.Threshold:
		status = "resolved"
	}

	notes := utils.GetMapFieldOr(decision, "escalation_reason", "Automated triage update")

	fields := map[string]any{"status": status, "notes": notes}
	if prio := normalizedPriority(snapshot); prio != "" {
		fields["priority"] = prio
	}

	ticketState := map[string]any{
		"ticket_id": snapshot.Intake.TicketID,
		"status":    status,
		"notes":     notes,
	}
	updates := map[string]any{
		"update_ticket": "update_ticket_result",
		state.KeyTicket: ticketState,
	}

	if err := l.Tickets.Update(ctx, snapshot.Intake.TicketID, fields); err != nil {
		ticketState["error"] = err.Error()
		res := state.NewResult("update_ticket", updates)
		return res, fmt.Errorf("%w: %v", ErrRecoverable, err)
	}
	return state.NewResult("update_ticket", updates), nil
}

// closeTicket closes a resolved ticket. Escalated or unresolved tickets are
// left open.
func (l *LocalSet) closeTicket(ctx context.Context, snapshot state.Snapshot) (state.Result, error) {
	status := utils.GetMapFieldOr(snapshot.MapField(state.KeyTicket), "status", "")
	escalate := utils.GetMapFieldOr(snapshot.MapField(state.KeyEscalationDecision), "escalate", false)

	switch {
	case escalate:
		return state.NewResult("close_ticket", map[string]any{
			"close_ticket": map[string]any{
				"skipped": true,
				"reason":  "Ticket escalated, cannot close automatically",
			},
		}), nil

	case status != "resolved":
		return state.NewResult("close_ticket", map[string]any{
			"close_ticket": map[string]any{
				"skipped": true,
				"reason":  "Ticket not resolved yet",
			},
		}), nil
	}

	closed := map[string]any{
		"ticket_id":        snapshot.Intake.TicketID,
		"status":           "closed",
		"resolution_notes": "Issue resolved.",
	}
	updates := map[string]any{"close_ticket": closed}

	err := l.Tickets.Update(ctx, snapshot.Intake.TicketID, map[string]any{"status": "closed"})
	if err != nil {
		closed["status"] = status
		closed["error"] = err.Error()
		res := state.NewResult("close_ticket", updates)
		return res, fmt.Errorf("%w: %v", ErrRecoverable, err)
	}

	ticketState := snapshot.MapField(state.KeyTicket)
	if ticketState == nil {
		ticketState = map[string]any{"ticket_id": snapshot.Intake.TicketID}
	}
	ticketState["status"] = "closed"
	updates[state.KeyTicket] = ticketState
	return state.NewResult("close_ticket", updates), nil
}

// responseGeneration renders the deterministic customer-facing reply.
func (l *LocalSet) responseGeneration(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	customer := snapshot.Intake.CustomerName
	if customer == "" {
		customer = "Customer"
	}

	lines := []string{
		fmt.Sprintf("Hi %s,", customer),
		"",
		"Thanks for reaching out. We're reviewing your request and taking the next appropriate steps.",
	}

	if eval := snapshot.MapField(state.KeySolutionEvaluation); eval != nil {
		if score, ok := asInt(eval["score"]); ok {
			lines = append(lines, fmt.Sprintf("- Current solution confidence score: %d/100.", score))
		}
	}
	if kbResult := snapshot.MapField(state.KeyKnowledgeBase); kbResult != nil {
		if found, _ := kbResult["found"].(bool); found {
			lines = append(lines, "- We found some relevant guidance in our knowledge base and are applying it.")
		}
	}

	escalate := false
	if esc := snapshot.MapField(state.KeyEscalationDecision); esc != nil {
		escalate, _ = esc["escalate"].(bool)
	}
	if escalate {
		lines = append(lines, "- We're routing this to a specialist for a closer look.")
	} else {
		lines = append(lines, "- We're progressing your case internally and will follow up soon.")
	}

	return state.NewResult("response_generation", map[string]any{
		state.KeyResponse: strings.Join(lines, "\n"),
	}), nil
}

// triggerNotifications records the customer notification for the final
// response.
func (l *LocalSet) triggerNotifications(_ context.Context, snapshot state.Snapshot) (state.Result, error) {
	return state.NewResult("trigger_notifications", map[string]any{
		state.KeyNotifications: map[string]any{
			"success":         true,
			"channel":         "email",
			"recipient":       snapshot.Intake.Email,
			"notification_id": "ntf-" + uuid.New().String(),
		},
	}), nil
}

// outputPayload marks pipeline end. The terminal payload itself is projected
// by the orchestrator.
func (l *LocalSet) outputPayload(_ context.Context, _ state.Snapshot) (state.Result, error) {
	return state.NewResult("output_payload", map[string]any{
		"output_payload": "output_payload_result",
	}), nil
}

func hasField(snapshot state.Snapshot, key string) bool {
	v, ok := snapshot.Field(key)
	if !ok || v == nil {
		return false
	}
	if m, isMap := v.(map[string]any); isMap {
		return len(m) > 0
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
