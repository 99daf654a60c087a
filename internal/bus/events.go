package bus

import "time"

// Well-known event types.
const (
	EventCallStarted      = "call.started"
	EventCallFinished     = "call.finished"
	EventPlanFinished     = "plan.finished"
	EventTransportStarted = "transport.started"
	EventTransportStopped = "transport.stopped"
)

// CallFinished builds the event a dispatcher emits after answering one
// envelope. errClass is empty on success, otherwise the error band
// ("method_not_found", "invalid_params", "internal", "domain").
func CallFinished(agent, method string, duration time.Duration, errClass string) Event {
	return Event{
		Type:  EventCallFinished,
		Agent: agent,
		Payload: map[string]any{
			"method":   method,
			"duration": duration,
			"error":    errClass,
		},
	}
}

// PlanFinished records one planner run: which sink, whether it
// succeeded, and how the pipeline ended.
func PlanFinished(sinkID string, success bool, outcome string, duration time.Duration) Event {
	return Event{
		Type:  EventPlanFinished,
		Agent: "query_planner",
		Payload: map[string]any{
			"sink_id":  sinkID,
			"success":  success,
			"outcome":  outcome,
			"duration": duration,
		},
	}
}
