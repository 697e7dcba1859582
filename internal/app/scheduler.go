package app

import (
	"time"

	"trivia-live/internal/domain"
)

// Scheduler defers phase transitions. Implementations must re-validate the
// session's phase against guard before firing, so a timer that outlives the
// phase it was scheduled for becomes a no-op instead of a duplicate
// transition.
type Scheduler interface {
	Schedule(g *GameSession, after time.Duration, guard domain.Phase, fn func())
}

// TimerScheduler is the production Scheduler backed by time.AfterFunc.
type TimerScheduler struct{}

func NewTimerScheduler() TimerScheduler {
	return TimerScheduler{}
}

func (TimerScheduler) Schedule(g *GameSession, after time.Duration, guard domain.Phase, fn func()) {
	time.AfterFunc(after, func() {
		if g.Phase() != guard {
			return
		}
		fn()
	})
}
