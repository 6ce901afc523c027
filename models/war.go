package models

import (
	"encoding/json"
	"time"
)

// War phases. A war is created Preparing, flipped to Active by the scheduler,
// and moved to exactly one terminal phase by resolution. Rows are never
// deleted; resolved wars are the historical record.
const (
	WarPhasePreparing   = "preparing"
	WarPhaseActive      = "active"
	WarPhaseAttackerWon = "attacker_won"
	WarPhaseDefenderWon = "defender_won"
	WarPhaseStalemate   = "stalemate"
)

// Score ledger sides and sources.
const (
	WarSideAttacker = "attacker"
	WarSideDefender = "defender"

	ScoreSourceMission     = "mission"
	ScoreSourceCapture     = "capture"
	ScoreSourceControlTick = "control_tick"
)

// War is a time-boxed contest between two crews over one territory.
//
// Open backs the "at most one preparing/active war" invariants: it is true
// while the war is preparing or active and NULL once terminal, so the two
// composite unique indexes only ever see open wars (NULLs never collide).
// CrewPairKey is the unordered crew pair, lexicographically sorted.
type War struct {
	ID          string `json:"id" gorm:"primaryKey"`
	TerritoryID string `json:"territory_id" gorm:"not null;uniqueIndex:idx_wars_open_territory"`
	AttackerID  string `json:"attacker_id" gorm:"not null;index"`
	DefenderID  string `json:"defender_id" gorm:"not null;index"`
	CrewPairKey string `json:"-" gorm:"not null;uniqueIndex:idx_wars_open_pair"`
	Open        *bool  `json:"-" gorm:"uniqueIndex:idx_wars_open_territory;uniqueIndex:idx_wars_open_pair"`

	Phase   string    `json:"phase" gorm:"not null;index;default:'preparing'"`
	PrepEnd time.Time `json:"prep_end" gorm:"not null"`
	WarEnd  time.Time `json:"war_end" gorm:"not null"`

	// Materialized aggregates over WarScoreEntry; monotonically non-decreasing.
	AttackerScore int64 `json:"attacker_score" gorm:"default:0"`
	DefenderScore int64 `json:"defender_score" gorm:"default:0"`

	PrizePool int64  `json:"prize_pool" gorm:"default:0"`
	Config    string `json:"config" gorm:"type:text"`

	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	POIControls []POIControl `json:"poi_controls,omitempty" gorm:"foreignKey:WarID"`
	Events      []WarEvent   `json:"events,omitempty" gorm:"foreignKey:WarID"`
}

// WarConfig is the free-form configuration snapshotted at declaration time.
// The revenge bonus is captured here so a bonus that expires mid-war keeps
// applying to this war's math.
type WarConfig struct {
	DeclarationCost    int64   `json:"declaration_cost"`
	AttackerRevengePct float64 `json:"attacker_revenge_pct"`
}

func (w *War) ParseConfig() WarConfig {
	var cfg WarConfig
	if w.Config != "" {
		_ = json.Unmarshal([]byte(w.Config), &cfg)
	}
	return cfg
}

func (w *War) SetConfig(cfg WarConfig) {
	raw, _ := json.Marshal(cfg)
	w.Config = string(raw)
}

// IsTerminal reports whether the war has been resolved.
func (w *War) IsTerminal() bool {
	return w.Phase == WarPhaseAttackerWon || w.Phase == WarPhaseDefenderWon || w.Phase == WarPhaseStalemate
}

// SideOf returns which side of the war a crew fights on, or "" if neither.
func (w *War) SideOf(crewID string) string {
	switch crewID {
	case w.AttackerID:
		return WarSideAttacker
	case w.DefenderID:
		return WarSideDefender
	}
	return ""
}

// WarScoreEntry is the append-only ledger of score deltas per war side. The
// stored War score fields are recomputable aggregates of these rows.
type WarScoreEntry struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	WarID     string    `json:"war_id" gorm:"not null;index"`
	Side      string    `json:"side" gorm:"not null"`
	Points    int64     `json:"points" gorm:"not null"`
	Source    string    `json:"source" gorm:"not null"`
	RefID     string    `json:"ref_id"` // POI, mission attempt, etc.
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// POIControl tracks one point of interest for the duration of one war.
// Progress only advances while Contested and resets to 0 the instant control
// changes hands. Rows are archived and removed when the war resolves.
type POIControl struct {
	ID                string     `json:"id" gorm:"primaryKey"`
	WarID             string     `json:"war_id" gorm:"not null;uniqueIndex:idx_poi_controls_war_poi"`
	POIID             string     `json:"poi_id" gorm:"not null;uniqueIndex:idx_poi_controls_war_poi"`
	ControllingCrewID string     `json:"controlling_crew_id" gorm:"not null"`
	Contested         bool       `json:"contested" gorm:"default:false"`
	Progress          int        `json:"progress" gorm:"default:0"`
	StrategicValue    int        `json:"strategic_value" gorm:"default:1"`
	PointsGenerated   int64      `json:"points_generated" gorm:"default:0"`
	LastTickAt        *time.Time `json:"last_tick_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	POI POI `json:"poi,omitempty" gorm:"foreignKey:POIID"`
}

// PlayerWarParticipation accumulates per-player points within one war, for
// score attribution and the war leaderboard.
type PlayerWarParticipation struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	WarID     string    `json:"war_id" gorm:"not null;uniqueIndex:idx_participations_war_player"`
	PlayerID  string    `json:"player_id" gorm:"not null;uniqueIndex:idx_participations_war_player"`
	CrewID    string    `json:"crew_id" gorm:"not null;index"`
	Role      string    `json:"role"`
	Points    int64     `json:"points" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// RevengeBonus grants a crew a temporary reward multiplier against the crew
// that beat it. At most one live row per ordered pair; upserted on loss.
type RevengeBonus struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	CrewID        string    `json:"crew_id" gorm:"not null;uniqueIndex:idx_revenge_pair"`
	AgainstCrewID string    `json:"against_crew_id" gorm:"not null;uniqueIndex:idx_revenge_pair"`
	BonusPct      float64   `json:"bonus_pct" gorm:"not null"`
	ExpiresAt     time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// WarEvent is the append-only audit log shown on the war detail view.
// Writes are fire-and-forget; a failed append never rolls back the
// operation that produced it.
type WarEvent struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	WarID     string    `json:"war_id" gorm:"not null;index"`
	Type      string    `json:"type" gorm:"not null"` // declared, promoted, capture, mission, control_tick, resolved
	Message   string    `json:"message"`
	Meta      string    `json:"meta,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
