package domain

// Phase represents one state of the session state machine.
type Phase string

const (
	PhaseLobby       Phase = "LOBBY"       // Waiting for players to join
	PhaseStarting    Phase = "STARTING"    // "Get ready" screen before the first question
	PhaseQuestion    Phase = "QUESTION"    // Question shown, countdown running
	PhaseAnswers     Phase = "ANSWERS"     // Question closed, correct answers revealed
	PhaseResult      Phase = "RESULT"      // Answer distribution shown to the host
	PhaseLeaderboard Phase = "LEADERBOARD" // Running leaderboard shown
	PhaseFinished    Phase = "FINISHED"    // Terminal: final scores persisted
)

func (p Phase) String() string {
	return string(p)
}

// Terminal reports whether the phase ends the state machine.
func (p Phase) Terminal() bool {
	return p == PhaseFinished
}

// CanTransitionTo checks if a transition from the current phase to the target
// phase is valid.
func (p Phase) CanTransitionTo(target Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseLobby:       {PhaseStarting, PhaseFinished},
		PhaseStarting:    {PhaseQuestion, PhaseFinished},
		PhaseQuestion:    {PhaseAnswers, PhaseFinished},
		PhaseAnswers:     {PhaseResult, PhaseFinished},
		PhaseResult:      {PhaseLeaderboard, PhaseFinished},
		PhaseLeaderboard: {PhaseQuestion, PhaseFinished},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}
	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}
