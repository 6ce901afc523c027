package models

import (
	"time"
)

// War roles assignable to crew members. Assigned by the crew system, not by
// any individual war.
const (
	RoleSoldier  = "soldier"
	RoleSpy      = "spy"
	RoleEngineer = "engineer"
	RoleMedic    = "medic"
)

// Crew mirrors the economic and standing state of a crew owned by the
// external crew service. Fund mutations made by the conflict engine happen on
// this mirror inside the same transaction as the war/territory change they
// belong to; the sync worker reconciles everything else.
type Crew struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"not null"`
	LeaderID string `json:"leader_id" gorm:"not null;index"`
	Funds    int64  `json:"funds" gorm:"default:0"`

	// War standing
	Wars          int64 `json:"wars" gorm:"default:0"`
	Wins          int64 `json:"wins" gorm:"default:0"`
	Losses        int64 `json:"losses" gorm:"default:0"`
	Stalemates    int64 `json:"stalemates" gorm:"default:0"`
	WinStreak     int64 `json:"win_streak" gorm:"default:0"`
	BestWinStreak int64 `json:"best_win_streak" gorm:"default:0"`

	// Time-boxed post-loss debuff; owned by the crew service, stamped here.
	DebuffUntil *time.Time `json:"debuff_until,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Members []CrewMember `json:"members,omitempty" gorm:"foreignKey:CrewID"`
}

// CrewMember links a player to a crew with their assigned war role. The
// per-cycle counters are reset to zero every time one of the crew's wars
// resolves.
type CrewMember struct {
	ID        string `json:"id" gorm:"primaryKey"`
	CrewID    string `json:"crew_id" gorm:"not null;uniqueIndex:idx_crew_members_crew_player"`
	PlayerID  string `json:"player_id" gorm:"not null;uniqueIndex:idx_crew_members_crew_player;index"`
	WarRole   string `json:"war_role" gorm:"default:'soldier'"`
	IsWarlord bool   `json:"is_warlord" gorm:"default:false"`

	// Per-war-cycle counters
	WarPoints int64 `json:"war_points" gorm:"default:0"`
	WarKills  int64 `json:"war_kills" gorm:"default:0"`
	WarDeaths int64 `json:"war_deaths" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Player mirrors the slice of player state the engine reads and debits:
// level gates, mission resources, and cash/xp credit targets.
type Player struct {
	ID      string `json:"id" gorm:"primaryKey"`
	Name    string `json:"name"`
	Level   int    `json:"level" gorm:"default:1"`
	Cash    int64  `json:"cash" gorm:"default:0"`
	XP      int64  `json:"xp" gorm:"default:0"`
	Stamina int    `json:"stamina" gorm:"default:100"`
	Focus   int    `json:"focus" gorm:"default:100"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
