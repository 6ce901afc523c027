package models

import (
	"time"
)

// Mission categories; a player whose war role matches the category gets the
// role-synergy bonus on the success roll.
const (
	MissionCategoryAssault = "assault"
	MissionCategoryIntel   = "intel"
	MissionCategorySupport = "support"
	MissionCategorySupply  = "supply"
)

// Mission is a static template for a short role-gated task offered to
// participants of an active war. Seeded from the in-code catalog at boot.
type Mission struct {
	Code         string  `json:"code" gorm:"primaryKey"`
	Name         string  `json:"name" gorm:"not null"`
	Category     string  `json:"category" gorm:"not null"`
	MinLevel     int     `json:"min_level" gorm:"default:1"`
	RequiredRole string  `json:"required_role"` // empty = any role
	BasePoints   int64   `json:"base_points" gorm:"not null"`
	CashReward   int64   `json:"cash_reward" gorm:"default:0"`
	XPReward     int64   `json:"xp_reward" gorm:"default:0"`
	StaminaCost  int     `json:"stamina_cost" gorm:"default:0"`
	FocusCost    int     `json:"focus_cost" gorm:"default:0"`
	SuccessProb  float64 `json:"success_prob" gorm:"not null"`
	CooldownMins int     `json:"cooldown_mins" gorm:"default:30"`
}

// MissionAttempt is the audit row written for every attempt, success or
// failure. The newest row per (player, mission) is also the cooldown clock:
// cooldowns start on attempt, regardless of outcome.
type MissionAttempt struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	WarID         string    `json:"war_id" gorm:"not null;index"`
	MissionCode   string    `json:"mission_code" gorm:"not null;index:idx_mission_attempts_cooldown"`
	PlayerID      string    `json:"player_id" gorm:"not null;index:idx_mission_attempts_cooldown"`
	CrewID        string    `json:"crew_id" gorm:"not null"`
	Success       bool      `json:"success"`
	PointsAwarded int64     `json:"points_awarded" gorm:"default:0"`
	CashAwarded   int64     `json:"cash_awarded" gorm:"default:0"`
	XPAwarded     int64     `json:"xp_awarded" gorm:"default:0"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_mission_attempts_cooldown"`
}
