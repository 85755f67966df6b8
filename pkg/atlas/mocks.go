package atlas

import (
	"encoding/json"
	"fmt"

	"supportflow/pkg/state"
)

// degradedOutput returns the canned response used when no provider is
// reachable. Outputs mirror what a healthy model would produce so the
// pipeline can complete end to end without credentials.
func degradedOutput(ability string, snapshot state.Snapshot) string {
	switch ability {
	case "extract_entities":
		return `{"software": "App", "action": "login", "error": "crash", "email_valid": true}`

	case "enrich_records":
		return `{"sla": "Gold", "previous_tickets": 2, "avg_resolution_time": "4h"}`

	case "clarify_question":
		return "Could you provide more details about the issue?"

	case "extract_answer":
		return "user_provided_extra_info"

	case "knowledge_base_search":
		return `{"found": false}`

	case "escalation_decision":
		score := 50
		if eval := snapshot.MapField(state.KeySolutionEvaluation); eval != nil {
			if s, ok := numberToInt(eval["score"]); ok {
				score = s
			}
		}
		return fmt.Sprintf(`{"escalate": %t}`, score < 90)

	case "update_ticket":
		return `{"status": "pending", "priority": "high", "notes": "Waiting on user info"}`

	case "close_ticket":
		status := "open"
		if ticket := snapshot.MapField(state.KeyTicket); ticket != nil {
			if s, ok := ticket["status"].(string); ok {
				status = s
			}
		}
		escalated := false
		if decision := snapshot.MapField(state.KeyEscalationDecision); decision != nil {
			if e, ok := decision["escalate"].(bool); ok {
				escalated = e
			}
		}
		switch {
		case status == "resolved" && !escalated:
			out, _ := json.Marshal(map[string]any{
				"ticket_id":        snapshot.Intake.TicketID,
				"status":           "closed",
				"resolution_notes": "Issue resolved.",
			})
			return string(out)
		case escalated:
			return `{"error": "Ticket escalated, cannot close automatically"}`
		default:
			return `{"skipped": true, "reason": "Ticket not resolved yet"}`
		}

	case "execute_api_calls":
		return `{"success": false, "api": "none", "details": "no action required"}`

	case "trigger_notifications":
		return `{"success": true, "notification_id": "mock_id"}`

	default:
		return fmt.Sprintf(`{"mock": "%s response"}`, ability)
	}
}

// numberToInt tolerates the float64 that JSON decoding produces for
// integer scores.
func numberToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
