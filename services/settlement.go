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
	"gorm.io/gorm/clause"
)

type SettlementService struct {
	DB      *gorm.DB
	Archive *WarArchiver
	Now     func() time.Time
}

func NewSettlementService(db *gorm.DB, archive *WarArchiver) *SettlementService {
	return &SettlementService{DB: db, Archive: archive, Now: time.Now}
}

// DetermineOutcome is a pure function of the two scores. A side wins only
// when its score exceeds the other's by more than the margin ratio; anything
// closer is a stalemate.
func DetermineOutcome(attackerScore, defenderScore int64) string {
	if float64(attackerScore) > float64(defenderScore)*WinMarginRatio {
		return models.WarPhaseAttackerWon
	}
	if float64(defenderScore) > float64(attackerScore)*WinMarginRatio {
		return models.WarPhaseDefenderWon
	}
	return models.WarPhaseStalemate
}

// ResolveWar moves an active war to its terminal phase and applies the
// economic settlement atomically. The phase transition itself is the mutual
// exclusion gate: a war already terminal resolves as a silent no-op, so
// calling this twice never double-applies fund transfers.
func (s *SettlementService) ResolveWar(warID string) error {
	var resolved *models.War
	err := withRetry(func() error {
		resolved = nil
		return s.DB.Transaction(func(tx *gorm.DB) error {
			w, err := s.resolveWar(tx, warID)
			if err != nil {
				return err
			}
			resolved = w
			return nil
		})
	})
	if err != nil {
		return err
	}
	if resolved == nil {
		return nil // already terminal
	}

	appendWarEvent(s.DB, resolved.ID, "resolved",
		fmt.Sprintf("war resolved: %s (%d vs %d)", resolved.Phase, resolved.AttackerScore, resolved.DefenderScore),
		fiber.Map{"phase": resolved.Phase})
	notifyCrewService("war_resolved", resolved)
	log.Printf("🏁 War %s resolved: %s (attacker %d, defender %d)",
		resolved.ID, resolved.Phase, resolved.AttackerScore, resolved.DefenderScore)
	return nil
}

// resolveWar returns (nil, nil) when the war was already terminal.
func (s *SettlementService) resolveWar(tx *gorm.DB, warID string) (*models.War, error) {
	var war models.War
	if err := lockForUpdate(tx).
		First(&war, "id = ?", warID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if war.IsTerminal() {
		return nil, nil
	}

	var attacker, defender models.Crew
	if err := lockForUpdate(tx).
		First(&attacker, "id = ?", war.AttackerID).Error; err != nil {
		return nil, err
	}
	if err := lockForUpdate(tx).
		First(&defender, "id = ?", war.DefenderID).Error; err != nil {
		return nil, err
	}

	var territory models.Territory
	if err := lockForUpdate(tx).
		First(&territory, "id = ?", war.TerritoryID).Error; err != nil {
		return nil, err
	}

	now := s.Now()
	outcome := DetermineOutcome(war.AttackerScore, war.DefenderScore)
	treatyDuration := TreatyDuration

	switch outcome {
	case models.WarPhaseStalemate:
		treatyDuration = StalemateTreatyDuration
		if err := s.applyStalemate(tx, &war, &attacker, &defender, &territory); err != nil {
			return nil, err
		}
	default:
		winner, loser := &attacker, &defender
		if outcome == models.WarPhaseDefenderWon {
			winner, loser = &defender, &attacker
		}
		if err := s.applyDecisive(tx, &war, winner, loser, &territory, now); err != nil {
			return nil, err
		}
	}

	// Peace treaty on every outcome, upserted over the pair+territory key
	crewA, crewB := war.AttackerID, war.DefenderID
	if crewB < crewA {
		crewA, crewB = crewB, crewA
	}
	treaty := models.PeaceTreaty{
		ID:          uuid.NewString(),
		TerritoryID: war.TerritoryID,
		CrewAID:     crewA,
		CrewBID:     crewB,
		WarID:       war.ID,
		ExpiresAt:   now.Add(treatyDuration),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "territory_id"}, {Name: "crew_a_id"}, {Name: "crew_b_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"war_id", "expires_at"}),
	}).Create(&treaty).Error
	if err != nil {
		return nil, err
	}
	if err := tx.Model(&territory).Update("treaty_until", treaty.ExpiresAt).Error; err != nil {
		return nil, err
	}

	// Archive the POI state and event log before the rows go away
	s.archiveWar(tx, &war)
	if err := tx.Where("war_id = ?", war.ID).Delete(&models.POIControl{}).Error; err != nil {
		return nil, err
	}

	// Reset the per-cycle member counters of both crews for the next conflict
	if err := tx.Model(&models.CrewMember{}).
		Where("crew_id IN ?", []string{war.AttackerID, war.DefenderID}).
		Updates(map[string]interface{}{"war_points": 0, "war_kills": 0, "war_deaths": 0}).Error; err != nil {
		return nil, err
	}

	war.Phase = outcome
	war.Open = nil
	war.ResolvedAt = &now
	if err := tx.Model(&models.War{}).Where("id = ?", war.ID).
		Updates(map[string]interface{}{"phase": outcome, "open": nil, "resolved_at": now}).Error; err != nil {
		return nil, err
	}
	return &war, nil
}

func (s *SettlementService) applyDecisive(tx *gorm.DB, war *models.War, winner, loser *models.Crew, territory *models.Territory, now time.Time) error {
	seizure := int64(float64(loser.Funds) * FundSeizurePct)
	if seizure < 0 {
		seizure = 0
	}
	prize := seizure + war.PrizePool

	if err := tx.Model(loser).Updates(map[string]interface{}{
		"funds":        gorm.Expr("funds - ?", seizure),
		"losses":       gorm.Expr("losses + ?", 1),
		"wars":         gorm.Expr("wars + ?", 1),
		"win_streak":   0,
		"debuff_until": now.Add(LoserDebuffDuration),
	}).Error; err != nil {
		return err
	}

	newStreak := winner.WinStreak + 1
	winnerUpdates := map[string]interface{}{
		"funds":      gorm.Expr("funds + ?", prize),
		"wins":       gorm.Expr("wins + ?", 1),
		"wars":       gorm.Expr("wars + ?", 1),
		"win_streak": newStreak,
	}
	if newStreak > winner.BestWinStreak {
		winnerUpdates["best_win_streak"] = newStreak
	}
	if err := tx.Model(winner).Updates(winnerUpdates).Error; err != nil {
		return err
	}

	// Ownership transfer
	if err := tx.Model(territory).Updates(map[string]interface{}{
		"controlling_crew_id": winner.ID,
		"control_percent":     100,
		"contested":           false,
	}).Error; err != nil {
		return err
	}

	// Revenge bonus for the loser against this winner; one live row per
	// ordered pair, refreshed rather than duplicated.
	bonus := models.RevengeBonus{
		ID:            uuid.NewString(),
		CrewID:        loser.ID,
		AgainstCrewID: winner.ID,
		BonusPct:      RevengeBonusPct,
		ExpiresAt:     now.Add(RevengeBonusDuration),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "crew_id"}, {Name: "against_crew_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"bonus_pct", "expires_at"}),
	}).Create(&bonus).Error; err != nil {
		return err
	}

	log.Printf("💰 War %s: crew %s seized %s from crew %s (total prize %s)",
		war.ID, winner.ID, formatCash(seizure), loser.ID, formatCash(prize))
	return nil
}

func (s *SettlementService) applyStalemate(tx *gorm.DB, war *models.War, attacker, defender *models.Crew, territory *models.Territory) error {
	for _, crew := range []*models.Crew{attacker, defender} {
		penalty := StalematePenalty
		if crew.Funds < penalty {
			penalty = crew.Funds // floored at zero, never negative
		}
		if penalty < 0 {
			penalty = 0
		}
		if err := tx.Model(crew).Updates(map[string]interface{}{
			"funds":      gorm.Expr("funds - ?", penalty),
			"stalemates": gorm.Expr("stalemates + ?", 1),
			"wars":       gorm.Expr("wars + ?", 1),
		}).Error; err != nil {
			return err
		}
	}
	// Split control, no ownership change
	return tx.Model(territory).Updates(map[string]interface{}{
		"control_percent": StalemateControlSplit,
		"contested":       false,
	}).Error
}

// archiveWar snapshots the war's POI state and event log to object storage.
// Fire-and-forget: archival failure never blocks resolution.
func (s *SettlementService) archiveWar(tx *gorm.DB, war *models.War) {
	if s.Archive == nil {
		return
	}
	var controls []models.POIControl
	if err := tx.Where("war_id = ?", war.ID).Find(&controls).Error; err != nil {
		log.Printf("⚠️  [SETTLEMENT] failed to read POI state for archive of war %s: %v", war.ID, err)
		return
	}
	var events []models.WarEvent
	s.DB.Where("war_id = ?", war.ID).Order("created_at").Find(&events)

	go s.Archive.ArchiveWar(war, controls, events)
}
