// Package reward holds the XP, streak and hint quota rules. Every function is
// a pure function of its inputs; callers pass the clock in.
package reward

import (
	"time"

	"dailycode/internal/verify/model"
	"dailycode/pkg/errors"
)

const (
	DefaultXPPerProblem    int64 = 50
	DefaultStreakBonusXP   int64 = 25
	DefaultDailyTarget           = 2
	DefaultFreeHintsPerDay       = 3

	dayLayout = "2006-01-02"
	// Unlimited marks a plan without a hint cap.
	Unlimited = -1
)

// Policy carries the tunable reward constants.
type Policy struct {
	XPPerProblem    int64
	StreakBonusXP   int64
	DailyTarget     int
	FreeHintsPerDay int
	// Location decides where calendar days start. Nil means UTC.
	Location *time.Location
}

// DefaultPolicy returns the built-in constants in UTC.
func DefaultPolicy() Policy {
	return Policy{
		XPPerProblem:    DefaultXPPerProblem,
		StreakBonusXP:   DefaultStreakBonusXP,
		DailyTarget:     DefaultDailyTarget,
		FreeHintsPerDay: DefaultFreeHintsPerDay,
		Location:        time.UTC,
	}
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Day formats t as the calendar day key, e.g. 2024-03-09.
func (p Policy) Day(t time.Time) string {
	return t.In(p.loc()).Format(dayLayout)
}

func (p Policy) yesterday(now time.Time) string {
	y, m, d := now.In(p.loc()).Date()
	return time.Date(y, m, d-1, 12, 0, 0, 0, p.loc()).Format(dayLayout)
}

// SameDay reports whether a and b fall on the same calendar day.
func (p Policy) SameDay(a, b time.Time) bool {
	return p.Day(a) == p.Day(b)
}

// NextStreak advances a streak: +1 after studying yesterday, unchanged when
// already counted today, otherwise a fresh streak of 1.
func (p Policy) NextStreak(now time.Time, last *time.Time, current int) int {
	if last == nil {
		return 1
	}
	switch p.Day(*last) {
	case p.Day(now):
		if current < 1 {
			return 1
		}
		return current
	case p.yesterday(now):
		return current + 1
	default:
		return 1
	}
}

// Outcome is the state after one first-time completion.
type Outcome struct {
	Learner  model.Learner
	Progress model.DailyProgress
	Reward   model.Reward
}

// ApplyCompletion computes the learner and daily progress after solving a
// problem for the first time. progress must be today's row, or zero.
func (p Policy) ApplyCompletion(learner model.Learner, progress model.DailyProgress, now time.Time) Outcome {
	today := p.Day(now)
	if progress.Day != today {
		progress = model.DailyProgress{UserID: learner.ID, Day: today}
	}
	progress.UserID = learner.ID
	progress.ProblemsSolved++

	gained := p.XPPerProblem
	bonus := false
	if !progress.TargetMet && progress.ProblemsSolved >= p.DailyTarget {
		progress.TargetMet = true
		bonus = true
		gained += p.StreakBonusXP
		learner.Streak = p.NextStreak(now, learner.LastStudiedAt, learner.Streak)
		if learner.Streak > learner.MaxStreak {
			learner.MaxStreak = learner.Streak
		}
		studied := now
		learner.LastStudiedAt = &studied
	}
	learner.XP += gained

	return Outcome{
		Learner:  learner,
		Progress: progress,
		Reward: model.Reward{
			XPGained:       gained,
			StreakBonus:    bonus,
			Streak:         learner.Streak,
			MaxStreak:      learner.MaxStreak,
			TotalXP:        learner.XP,
			SolvedToday:    progress.ProblemsSolved,
			DailyTarget:    p.DailyTarget,
			DailyTargetMet: progress.TargetMet,
		},
	}
}

// HintLimit returns the daily hint cap for plan, or Unlimited.
func (p Policy) HintLimit(plan model.Plan) int {
	switch plan {
	case model.PlanPro, model.PlanLifetime:
		return Unlimited
	default:
		return p.FreeHintsPerDay
	}
}

// HintsUsedToday is the effective counter: it resets once the last hint was
// taken on an earlier day.
func (p Policy) HintsUsedToday(learner model.Learner, now time.Time) int {
	if learner.LastHintAt == nil || !p.SameDay(*learner.LastHintAt, now) {
		return 0
	}
	return learner.HintsUsedToday
}

// HintState is the quota after a consume.
type HintState struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// ConsumeHint charges one hint. It fails with HintQuotaExceeded once the daily
// limit is reached.
func (p Policy) ConsumeHint(learner model.Learner, now time.Time) (model.Learner, HintState, error) {
	limit := p.HintLimit(learner.Plan)
	used := p.HintsUsedToday(learner, now)
	if limit != Unlimited && used >= limit {
		return learner, HintState{Used: used, Limit: limit, Remaining: 0}, errors.New(errors.HintQuotaExceeded).
			WithDetail("limit", limit)
	}
	used++
	learner.HintsUsedToday = used
	at := now
	learner.LastHintAt = &at

	state := HintState{Used: used, Limit: limit, Remaining: Unlimited}
	if limit != Unlimited {
		state.Remaining = limit - used
	}
	return learner, state, nil
}
