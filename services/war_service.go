package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"turf-war-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WarService struct {
	DB        *gorm.DB
	Territory *TerritoryService
	Now       func() time.Time
}

func NewWarService(db *gorm.DB, territory *TerritoryService) *WarService {
	return &WarService{DB: db, Territory: territory, Now: time.Now}
}

// DeclareWar opens a war by attackerCrew over a territory. Every precondition
// is a distinct rejectable error; on success the declaration cost debit, the
// war insert, the territory flag and the POI seeding are one atomic unit.
// The open-war unique indexes are the correctness guarantee for the duplicate
// checks; the pre-checks inside the transaction are fast-fail only.
func (s *WarService) DeclareWar(attackerCrewID, actorPlayerID, territoryID string) (*models.War, error) {
	var war *models.War
	err := withRetry(func() error {
		war = nil
		return s.DB.Transaction(func(tx *gorm.DB) error {
			w, err := s.declareWar(tx, attackerCrewID, actorPlayerID, territoryID)
			if err != nil {
				return err
			}
			war = w
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	appendWarEvent(s.DB, war.ID, "declared",
		fmt.Sprintf("war declared over territory %s for %s", war.TerritoryID, formatCash(WarDeclarationCost)),
		fiber.Map{"attacker_id": war.AttackerID, "defender_id": war.DefenderID})
	notifyCrewService("war_declared", war)
	log.Printf("⚔️  War %s declared: crew %s attacks territory %s", war.ID, attackerCrewID, territoryID)
	return war, nil
}

func (s *WarService) declareWar(tx *gorm.DB, attackerCrewID, actorPlayerID, territoryID string) (*models.War, error) {
	// Authority: crew leader or a designated warlord
	var attacker models.Crew
	if err := lockForUpdate(tx).
		First(&attacker, "id = ?", attackerCrewID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if attacker.LeaderID != actorPlayerID {
		var member models.CrewMember
		err := tx.Where("crew_id = ? AND player_id = ? AND is_warlord = ?", attackerCrewID, actorPlayerID, true).
			First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotAuthorized
		}
		if err != nil {
			return nil, err
		}
	}

	if attacker.Funds < WarDeclarationCost {
		return nil, ErrInsufficientFunds
	}

	var territory models.Territory
	if err := lockForUpdate(tx).
		First(&territory, "id = ?", territoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if territory.ControllingCrewID == nil {
		return nil, ErrUnclaimedTarget
	}
	defenderID := *territory.ControllingCrewID
	if defenderID == attackerCrewID {
		return nil, ErrOwnTerritory
	}

	adjacent, err := s.Territory.AdjacentControlled(tx, territoryID, attackerCrewID)
	if err != nil {
		return nil, err
	}
	if !adjacent {
		return nil, ErrNotAdjacent
	}

	now := s.Now()

	// Peace treaty between the attacker and anyone over this territory
	var treatyCount int64
	if err := tx.Model(&models.PeaceTreaty{}).
		Where("territory_id = ? AND expires_at > ? AND (crew_a_id = ? OR crew_b_id = ?)",
			territoryID, now, attackerCrewID, attackerCrewID).
		Count(&treatyCount).Error; err != nil {
		return nil, err
	}
	if treatyCount > 0 {
		return nil, ErrTreatyActive
	}

	// Fast-fail duplicate check; the unique indexes below are the real gate.
	pairKey := crewPairKey(attackerCrewID, defenderID)
	var openCount int64
	if err := tx.Model(&models.War{}).
		Where("open = ? AND (territory_id = ? OR crew_pair_key = ?)", true, territoryID, pairKey).
		Count(&openCount).Error; err != nil {
		return nil, err
	}
	if openCount > 0 {
		return nil, ErrWarExists
	}

	// Snapshot the attacker's revenge bonus against the defender so a bonus
	// expiring mid-war does not change this war's math.
	var revengePct float64
	var revenge models.RevengeBonus
	err = tx.Where("crew_id = ? AND against_crew_id = ? AND expires_at > ?", attackerCrewID, defenderID, now).
		First(&revenge).Error
	if err == nil {
		revengePct = revenge.BonusPct
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Debit the declaration cost from the locked crew row
	if err := tx.Model(&attacker).Update("funds", gorm.Expr("funds - ?", WarDeclarationCost)).Error; err != nil {
		return nil, err
	}

	open := true
	prepEnd := now.Add(WarPrepWindow)
	war := &models.War{
		ID:          uuid.NewString(),
		TerritoryID: territoryID,
		AttackerID:  attackerCrewID,
		DefenderID:  defenderID,
		CrewPairKey: pairKey,
		Open:        &open,
		Phase:       models.WarPhasePreparing,
		PrepEnd:     prepEnd,
		WarEnd:      prepEnd.Add(WarActiveWindow),
		PrizePool:   WarPrizePool,
	}
	war.SetConfig(models.WarConfig{
		DeclarationCost:    WarDeclarationCost,
		AttackerRevengePct: revengePct,
	})
	if err := tx.Create(war).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrWarExists
		}
		return nil, err
	}

	if err := tx.Model(&territory).Update("contested", true).Error; err != nil {
		return nil, err
	}

	// One POIControl row per point of interest, owned by the defender
	var pois []models.POI
	if err := tx.Where("territory_id = ?", territoryID).Find(&pois).Error; err != nil {
		return nil, err
	}
	for _, poi := range pois {
		pc := models.POIControl{
			ID:                uuid.NewString(),
			WarID:             war.ID,
			POIID:             poi.ID,
			ControllingCrewID: defenderID,
			Contested:         false,
			Progress:          0,
			StrategicValue:    poi.StrategicValue,
		}
		if err := tx.Create(&pc).Error; err != nil {
			return nil, err
		}
	}
	return war, nil
}

// HandleDeclareWar is the HTTP entry point for DeclareWar.
func (s *WarService) HandleDeclareWar(c *fiber.Ctx) error {
	type Req struct {
		CrewID string `json:"crew_id" validate:"required,uuid"`
	}
	territoryID := c.Params("id")
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.CrewID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "crew_id is required"})
	}
	actorID, _ := c.Locals("user_id").(string)
	if actorID == "" {
		return c.Status(401).JSON(fiber.Map{"error": "missing user context"})
	}

	war, err := s.DeclareWar(req.CrewID, actorID, territoryID)
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(201).JSON(war)
}

// WarView is the war-detail read model: phase, scores, remaining time and
// POI ownership.
type WarView struct {
	models.War
	RemainingSecs int64               `json:"remaining_secs"`
	POIs          []models.POIControl `json:"pois"`
}

func (s *WarService) GetWarByID(c *fiber.Ctx) error {
	id := c.Params("id")
	var war models.War
	if err := s.DB.Preload("Events", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC").Limit(50)
	}).First(&war, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "war not found"})
		}
		log.Printf("ERROR fetching war %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	var controls []models.POIControl
	s.DB.Preload("POI").Where("war_id = ?", id).Find(&controls)

	now := s.Now()
	var remaining time.Duration
	switch war.Phase {
	case models.WarPhasePreparing:
		remaining = war.PrepEnd.Sub(now)
	case models.WarPhaseActive:
		remaining = war.WarEnd.Sub(now)
	}
	if remaining < 0 {
		remaining = 0
	}

	return c.JSON(WarView{
		War:           war,
		RemainingSecs: int64(remaining.Seconds()),
		POIs:          controls,
	})
}

func (s *WarService) GetWars(c *fiber.Ctx) error {
	query := s.DB.Order("created_at DESC")
	switch c.Query("state") {
	case "open":
		query = query.Where("open = ?", true)
	case "resolved":
		query = query.Where("open IS NULL")
	}
	var wars []models.War
	if err := query.Limit(100).Find(&wars).Error; err != nil {
		log.Printf("ERROR fetching wars: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch wars"})
	}
	return c.JSON(wars)
}

// GetWarLeaderboard lists participants of a war ordered by contributed points.
func (s *WarService) GetWarLeaderboard(c *fiber.Ctx) error {
	id := c.Params("id")
	var parts []models.PlayerWarParticipation
	if err := s.DB.Where("war_id = ?", id).
		Order("points DESC").
		Limit(100).
		Find(&parts).Error; err != nil {
		log.Printf("ERROR fetching leaderboard for war %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch leaderboard"})
	}
	return c.JSON(parts)
}

func crewPairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}
