package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"turf-war-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// missionCatalog is the static mission template set, seeded at boot. Catalog
// content is fixed; balance lives in the template fields.
var missionCatalog = []models.Mission{
	{
		Code: "raid_stash", Name: "Raid a Stash", Category: models.MissionCategoryAssault,
		MinLevel: 1, BasePoints: 20, CashReward: 5_000, XPReward: 25,
		StaminaCost: 20, SuccessProb: 0.75, CooldownMins: 30,
	},
	{
		Code: "street_ambush", Name: "Street Ambush", Category: models.MissionCategoryAssault,
		MinLevel: 5, RequiredRole: models.RoleSoldier, BasePoints: 45, CashReward: 12_000, XPReward: 60,
		StaminaCost: 35, SuccessProb: 0.6, CooldownMins: 60,
	},
	{
		Code: "tap_phones", Name: "Tap Their Phones", Category: models.MissionCategoryIntel,
		MinLevel: 3, RequiredRole: models.RoleSpy, BasePoints: 35, CashReward: 8_000, XPReward: 40,
		FocusCost: 30, SuccessProb: 0.65, CooldownMins: 45,
	},
	{
		Code: "scout_defenses", Name: "Scout Defenses", Category: models.MissionCategoryIntel,
		MinLevel: 1, BasePoints: 15, CashReward: 3_000, XPReward: 20,
		FocusCost: 15, SuccessProb: 0.8, CooldownMins: 30,
	},
	{
		Code: "patch_up_crew", Name: "Patch Up the Crew", Category: models.MissionCategorySupport,
		MinLevel: 2, RequiredRole: models.RoleMedic, BasePoints: 25, CashReward: 6_000, XPReward: 35,
		FocusCost: 25, SuccessProb: 0.7, CooldownMins: 45,
	},
	{
		Code: "rig_supply_lines", Name: "Rig the Supply Lines", Category: models.MissionCategorySupply,
		MinLevel: 8, RequiredRole: models.RoleEngineer, BasePoints: 60, CashReward: 20_000, XPReward: 90,
		StaminaCost: 25, FocusCost: 25, SuccessProb: 0.5, CooldownMins: 120,
	},
}

type MissionService struct {
	DB  *gorm.DB
	Now func() time.Time
	// Roll returns a uniform [0,1) sample for the success coin flip.
	Roll func() float64
}

func NewMissionService(db *gorm.DB) *MissionService {
	return &MissionService{DB: db, Now: time.Now, Roll: rand.Float64}
}

// SeedMissionCatalog upserts the static templates so boot is idempotent.
func (s *MissionService) SeedMissionCatalog() error {
	for _, m := range missionCatalog {
		if err := s.DB.Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
			return fmt.Errorf("failed to seed mission %s: %w", m.Code, err)
		}
	}
	return nil
}

// MissionResult reports one attempt's outcome.
type MissionResult struct {
	AttemptID string `json:"attempt_id"`
	Success   bool   `json:"success"`
	Points    int64  `json:"points"`
	Cash      int64  `json:"cash"`
	XP        int64  `json:"xp"`
}

// AttemptMission runs one role-gated task for a participant of an active war.
// Success is a weighted coin flip; the base probability gets the role-synergy
// bonus when the player's war role matches the mission category. Points on
// success are scaled by the war's snapshotted revenge bonus (attacker side
// only) plus a flat engineer bonus. Failure still costs resources, and every
// attempt starts the cooldown.
func (s *MissionService) AttemptMission(warID, missionCode, playerID string) (*MissionResult, error) {
	var result *MissionResult
	err := withRetry(func() error {
		result = nil
		return s.DB.Transaction(func(tx *gorm.DB) error {
			r, err := s.attemptMission(tx, warID, missionCode, playerID)
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
	appendWarEvent(s.DB, warID, "mission",
		fmt.Sprintf("mission %s attempted (success=%t)", missionCode, result.Success),
		fiber.Map{"player_id": playerID, "points": result.Points})
	return result, nil
}

func (s *MissionService) attemptMission(tx *gorm.DB, warID, missionCode, playerID string) (*MissionResult, error) {
	var mission models.Mission
	if err := tx.First(&mission, "code = ?", missionCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMissionNotFound
		}
		return nil, err
	}

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

	var player models.Player
	if err := lockForUpdate(tx).
		First(&player, "id = ?", playerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if player.Level < mission.MinLevel {
		return nil, ErrLevelTooLow
	}
	if mission.RequiredRole != "" && member.WarRole != mission.RequiredRole {
		return nil, ErrWrongRole
	}
	if player.Stamina < mission.StaminaCost {
		return nil, ErrInsufficientStamina
	}
	if player.Focus < mission.FocusCost {
		return nil, ErrInsufficientFocus
	}

	// Cooldown: newest attempt row, success or failure, is the clock
	now := s.Now()
	cooldownStart := now.Add(-time.Duration(mission.CooldownMins) * time.Minute)
	var recent int64
	if err := tx.Model(&models.MissionAttempt{}).
		Where("player_id = ? AND mission_code = ? AND created_at > ?", playerID, missionCode, cooldownStart).
		Count(&recent).Error; err != nil {
		return nil, err
	}
	if recent > 0 {
		return nil, ErrMissionCooldown
	}

	prob := mission.SuccessProb
	if member.WarRole != "" && member.WarRole == roleForCategory(mission.Category) {
		prob += RoleSynergyBonus
	}
	success := s.Roll() < prob

	attempt := models.MissionAttempt{
		ID:          uuid.NewString(),
		WarID:       warID,
		MissionCode: missionCode,
		PlayerID:    playerID,
		CrewID:      member.CrewID,
		Success:     success,
		CreatedAt:   now,
	}

	// Resource costs apply to both outcomes
	updates := map[string]interface{}{
		"stamina": gorm.Expr("stamina - ?", mission.StaminaCost),
		"focus":   gorm.Expr("focus - ?", mission.FocusCost),
	}

	result := &MissionResult{AttemptID: attempt.ID, Success: success}
	if success {
		points := mission.BasePoints
		if side == models.WarSideAttacker {
			cfg := war.ParseConfig()
			if cfg.AttackerRevengePct > 0 {
				points = int64(float64(points) * (1 + cfg.AttackerRevengePct/100))
			}
		}
		if member.WarRole == models.RoleEngineer {
			points += EngineerFlatBonus
		}
		attempt.PointsAwarded = points
		attempt.CashAwarded = mission.CashReward
		attempt.XPAwarded = mission.XPReward
		result.Points = points
		result.Cash = mission.CashReward
		result.XP = mission.XPReward

		updates["cash"] = gorm.Expr("cash + ?", mission.CashReward)
		updates["xp"] = gorm.Expr("xp + ?", mission.XPReward)

		if err := addScore(tx, &war, side, points, models.ScoreSourceMission, attempt.ID); err != nil {
			return nil, err
		}
		if err := creditParticipant(tx, &war, member, points); err != nil {
			return nil, err
		}
	}

	if err := tx.Model(&player).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&attempt).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// roleForCategory maps a mission category to the war role that synergizes
// with it.
func roleForCategory(category string) string {
	switch category {
	case models.MissionCategoryAssault:
		return models.RoleSoldier
	case models.MissionCategoryIntel:
		return models.RoleSpy
	case models.MissionCategorySupport:
		return models.RoleMedic
	case models.MissionCategorySupply:
		return models.RoleEngineer
	}
	return ""
}

// HandleAttemptMission is the HTTP entry point for AttemptMission.
func (s *MissionService) HandleAttemptMission(c *fiber.Ctx) error {
	warID := c.Params("id")
	missionCode := c.Params("code")
	playerID, _ := c.Locals("user_id").(string)
	if playerID == "" {
		return c.Status(401).JSON(fiber.Map{"error": "missing user context"})
	}
	result, err := s.AttemptMission(warID, missionCode, playerID)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(result)
}

// GetMissions lists the catalog for the war-detail UI.
func (s *MissionService) GetMissions(c *fiber.Ctx) error {
	var missions []models.Mission
	if err := s.DB.Order("min_level, code").Find(&missions).Error; err != nil {
		log.Printf("ERROR fetching missions: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch missions"})
	}
	return c.JSON(missions)
}
