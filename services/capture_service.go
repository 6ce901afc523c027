package services

import (
	"errors"
	"fmt"
	"time"

	"turf-war-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CaptureService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewCaptureService(db *gorm.DB) *CaptureService {
	return &CaptureService{DB: db, Now: time.Now}
}

// CaptureResult reports what a capture attempt did.
type CaptureResult struct {
	WarID    string `json:"war_id"`
	POIID    string `json:"poi_id"`
	Progress int    `json:"progress"`
	Captured bool   `json:"captured"`
	Points   int64  `json:"points,omitempty"`
}

// RecordCaptureAttempt advances capture progress on a POI for the acting
// player's crew. The POIControl row is locked for the whole read-modify-write
// so concurrent attempts from both sides serialize: increments are never lost
// and control cannot flip-flop mid-transaction. Progress crossing 100
// transfers control exactly once, whatever the overshoot.
func (s *CaptureService) RecordCaptureAttempt(warID, poiID, playerID string) (*CaptureResult, error) {
	var result *CaptureResult
	err := withRetry(func() error {
		result = nil
		return s.DB.Transaction(func(tx *gorm.DB) error {
			r, err := s.recordCaptureAttempt(tx, warID, poiID, playerID)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if result.Captured {
		appendWarEvent(s.DB, warID, "capture",
			fmt.Sprintf("point of interest %s captured", poiID),
			fiber.Map{"poi_id": poiID, "player_id": playerID, "points": result.Points})
	}
	return result, nil
}

func (s *CaptureService) recordCaptureAttempt(tx *gorm.DB, warID, poiID, playerID string) (*CaptureResult, error) {
	var war models.War
	if err := lockForUpdate(tx).
		First(&war, "id = ?", warID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if war.Phase != models.WarPhaseActive {
		return nil, ErrWarNotActive
	}

	member, err := findWarMember(tx, &war, playerID)
	if err != nil {
		return nil, err
	}
	side := war.SideOf(member.CrewID)

	var control models.POIControl
	if err := lockForUpdate(tx).
		Where("war_id = ? AND poi_id = ?", warID, poiID).
		First(&control).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if control.ControllingCrewID == member.CrewID {
		return nil, ErrAlreadyControlled
	}

	// Policy hook: engineers push harder
	increment := CaptureIncrement
	if member.WarRole == models.RoleEngineer {
		increment = CaptureEngineerIncrement
	}

	control.Contested = true
	control.Progress += increment

	result := &CaptureResult{WarID: warID, POIID: poiID}
	if control.Progress >= 100 {
		// Single-shot transfer: control flips, contested clears, progress
		// resets to 0 regardless of overshoot.
		control.ControllingCrewID = member.CrewID
		control.Contested = false
		control.Progress = 0
		result.Captured = true
		result.Points = int64(CapturePointsPerValue * control.StrategicValue)
	}
	if err := tx.Save(&control).Error; err != nil {
		return nil, err
	}
	result.Progress = control.Progress

	if result.Captured {
		if err := addScore(tx, &war, side, result.Points, models.ScoreSourceCapture, control.POIID); err != nil {
			return nil, err
		}
		if err := creditParticipant(tx, &war, member, result.Points); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// AccrueControlPoints adds strategicValue × rate points per uncontested POI to
// the score of the side controlling it. Each POI carries its own last-tick
// timestamp, so running this more often than once per hour is a no-op for
// POIs already ticked inside the window.
func (s *CaptureService) AccrueControlPoints(warID string) error {
	return withRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			var war models.War
			if err := lockForUpdate(tx).
				First(&war, "id = ?", warID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			if war.Phase != models.WarPhaseActive {
				return nil
			}

			var controls []models.POIControl
			if err := tx.Where("war_id = ? AND contested = ?", warID, false).
				Find(&controls).Error; err != nil {
				return err
			}

			now := s.Now()
			for i := range controls {
				control := &controls[i]
				side := war.SideOf(control.ControllingCrewID)
				if side == "" {
					continue
				}
				if control.LastTickAt != nil && now.Sub(*control.LastTickAt) < ControlTickInterval {
					continue
				}
				points := ControlPointRate * int64(control.StrategicValue)
				if err := addScore(tx, &war, side, points, models.ScoreSourceControlTick, control.POIID); err != nil {
					return err
				}
				if err := tx.Model(control).Updates(map[string]interface{}{
					"points_generated": gorm.Expr("points_generated + ?", points),
					"last_tick_at":     now,
				}).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// HandleCaptureAttempt is the HTTP entry point for RecordCaptureAttempt.
func (s *CaptureService) HandleCaptureAttempt(c *fiber.Ctx) error {
	warID := c.Params("id")
	poiID := c.Params("poi_id")
	playerID, _ := c.Locals("user_id").(string)
	if playerID == "" {
		return c.Status(401).JSON(fiber.Map{"error": "missing user context"})
	}
	result, err := s.RecordCaptureAttempt(warID, poiID, playerID)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(result)
}

// addScore appends a ledger entry for one side and bumps the materialized
// aggregate on the locked war row with an atomic SQL increment. Scores only
// ever grow.
func addScore(tx *gorm.DB, war *models.War, side string, points int64, source, refID string) error {
	if points <= 0 {
		return nil
	}
	entry := models.WarScoreEntry{
		ID:     uuid.NewString(),
		WarID:  war.ID,
		Side:   side,
		Points: points,
		Source: source,
		RefID:  refID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	column := "attacker_score"
	if side == models.WarSideDefender {
		column = "defender_score"
	}
	return tx.Model(war).Update(column, gorm.Expr(column+" + ?", points)).Error
}

// creditParticipant attributes points to the player's war participation row
// and the crew member's per-cycle counter.
func creditParticipant(tx *gorm.DB, war *models.War, member *models.CrewMember, points int64) error {
	if points <= 0 {
		return nil
	}
	part := models.PlayerWarParticipation{
		ID:       uuid.NewString(),
		WarID:    war.ID,
		PlayerID: member.PlayerID,
		CrewID:   member.CrewID,
		Role:     member.WarRole,
		Points:   points,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "war_id"}, {Name: "player_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"points": gorm.Expr("player_war_participations.points + ?", points),
		}),
	}).Create(&part).Error
	if err != nil {
		return err
	}
	return tx.Model(member).Update("war_points", gorm.Expr("war_points + ?", points)).Error
}

// findWarMember resolves the acting player's crew membership and validates
// that the crew is a side of the war.
func findWarMember(tx *gorm.DB, war *models.War, playerID string) (*models.CrewMember, error) {
	var member models.CrewMember
	err := tx.Where("player_id = ? AND crew_id IN ?", playerID, []string{war.AttackerID, war.DefenderID}).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotAWarParty
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}
