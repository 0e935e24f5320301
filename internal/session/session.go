package session

import (
	"time"

	"github.com/banshee-data/drivesense/internal/reading"
)

// Score bounds and the smooth-driving bonus. The bonus rewards sessions
// with a low average G-force once enough readings have accumulated to make
// the average meaningful.
const (
	ScoreMax               = 100
	ScoreMin               = 0
	smoothBonus            = 10
	smoothBonusMaxAvgG     = 0.15
	smoothBonusMinReadings = 100
)

// Session is one driving session: its events plus running statistics. The
// session is active until End is called; ID is assigned by storage on save
// and is zero for unsaved sessions.
type Session struct {
	ID             int64
	StartTime      time.Time
	EndTime        *time.Time
	Events         []Event
	TotalReadings  int
	TotalMagnitude float64
}

// NewSession starts a session at the given time.
func NewSession(start time.Time) *Session {
	return &Session{StartTime: start}
}

// IsActive reports whether the session has not been ended yet.
func (s *Session) IsActive() bool {
	return s.EndTime == nil
}

// End finalizes the session. Further End calls are ignored so the recorded
// end time never moves.
func (s *Session) End(t time.Time) {
	if s.EndTime != nil {
		return
	}
	end := t
	s.EndTime = &end
}

// RecordReading folds one reading into the running statistics.
func (s *Session) RecordReading(r reading.Reading) {
	s.TotalReadings++
	s.TotalMagnitude += r.Magnitude()
}

// AddEvent appends a detected event.
func (s *Session) AddEvent(e Event) {
	s.Events = append(s.Events, e)
}

// Duration is the elapsed session time; for an active session it is
// measured against now.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

// AverageMagnitude is the mean G-force over all recorded readings, zero
// when nothing has been recorded.
func (s *Session) AverageMagnitude() float64 {
	if s.TotalReadings == 0 {
		return 0
	}
	return s.TotalMagnitude / float64(s.TotalReadings)
}

// Score computes the 0-100 session score from the accumulated state: start
// from the maximum, deduct each event's penalty, award the smooth-driving
// bonus when earned, and clamp.
func (s *Session) Score() int {
	score := ScoreMax
	for _, e := range s.Events {
		score -= e.PenaltyPoints()
	}
	if s.AverageMagnitude() < smoothBonusMaxAvgG && s.TotalReadings > smoothBonusMinReadings {
		score += smoothBonus
	}
	if score > ScoreMax {
		score = ScoreMax
	}
	if score < ScoreMin {
		score = ScoreMin
	}
	return score
}
