package models

import (
	"time"
)

// Territory is a contestable zone controlled by at most one crew.
// ControlPercent is 100 for any territory at rest; split values (e.g. 50)
// occur only right after a stalemate.
type Territory struct {
	ID                string     `json:"id" gorm:"primaryKey"`
	Name              string     `json:"name" gorm:"not null"`
	Slug              string     `json:"slug" gorm:"uniqueIndex"`
	District          string     `json:"district"`
	ControllingCrewID *string    `json:"controlling_crew_id,omitempty" gorm:"index"`
	ControlPercent    int        `json:"control_percent" gorm:"default:100"`
	Contested         bool       `json:"contested" gorm:"default:false"`
	TreatyUntil       *time.Time `json:"treaty_until,omitempty"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	POIs  []POI           `json:"pois,omitempty" gorm:"foreignKey:TerritoryID"`
	Links []TerritoryLink `json:"links,omitempty" gorm:"foreignKey:TerritoryID"`
}

// TerritoryLink is one directed edge of the adjacency set. Edges are stored
// in both directions so adjacency lookups are a single indexed query.
type TerritoryLink struct {
	ID          string `json:"id" gorm:"primaryKey"`
	TerritoryID string `json:"territory_id" gorm:"not null;uniqueIndex:idx_territory_links_pair"`
	AdjacentID  string `json:"adjacent_id" gorm:"not null;uniqueIndex:idx_territory_links_pair"`
}

// POI is a static point of interest inside a territory. StrategicValue is the
// weight multiplier applied to everything the POI generates during a war.
type POI struct {
	ID             string `json:"id" gorm:"primaryKey"`
	TerritoryID    string `json:"territory_id" gorm:"not null;index"`
	Name           string `json:"name" gorm:"not null"`
	Kind           string `json:"kind"` // e.g. "warehouse", "dock", "club"
	StrategicValue int    `json:"strategic_value" gorm:"default:1"`
}

// PeaceTreaty blocks new war declarations over a territory by either crew of
// the pair until it expires. Created on every resolution, decisive or not.
type PeaceTreaty struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	TerritoryID string    `json:"territory_id" gorm:"not null;uniqueIndex:idx_treaties_pair_territory"`
	CrewAID     string    `json:"crew_a_id" gorm:"not null;uniqueIndex:idx_treaties_pair_territory"`
	CrewBID     string    `json:"crew_b_id" gorm:"not null;uniqueIndex:idx_treaties_pair_territory"`
	WarID       string    `json:"war_id" gorm:"not null"`
	ExpiresAt   time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}
