package model

import "time"

// Problem is the read-only view of a practice problem.
type Problem struct {
	ID    string
	Title string
	// TestCases is the stored JSON payload, parsed per request.
	TestCases string
	// Signature is optional JSON consumed by typed harnesses.
	Signature string
}

// Plan is the learner's subscription tier.
type Plan string

const (
	PlanFree     Plan = "FREE"
	PlanPro      Plan = "PRO"
	PlanLifetime Plan = "LIFETIME"
)

// Learner carries the reward and quota state the engine reads and updates.
type Learner struct {
	ID             string
	XP             int64
	Streak         int
	MaxStreak      int
	LastStudiedAt  *time.Time
	Plan           Plan
	HintsUsedToday int
	LastHintAt     *time.Time
}

// Completion marks a first-time solve of a problem.
type Completion struct {
	UserID      string
	ProblemID   string
	Language    string
	CompletedAt time.Time
}

// DailyProgress counts problems solved on one calendar day.
type DailyProgress struct {
	UserID         string
	Day            string
	ProblemsSolved int
	TargetMet      bool
}

// Reward summarizes what one commit granted.
type Reward struct {
	XPGained       int64 `json:"xpGained"`
	StreakBonus    bool  `json:"streakBonus"`
	Streak         int   `json:"streak"`
	MaxStreak      int   `json:"maxStreak"`
	TotalXP        int64 `json:"totalXp"`
	SolvedToday    int   `json:"solvedToday"`
	DailyTarget    int   `json:"dailyTarget"`
	DailyTargetMet bool  `json:"dailyTargetMet"`
}
