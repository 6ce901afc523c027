package services

import (
	"errors"
	"testing"
	"time"

	"turf-war-system/models"
)

func TestDetermineOutcome(t *testing.T) {
	cases := []struct {
		attacker, defender int64
		want               string
	}{
		{1101, 1000, models.WarPhaseAttackerWon}, // just over the 10% margin
		{1100, 1000, models.WarPhaseStalemate},   // exactly 10% ahead is not enough
		{1000, 1099, models.WarPhaseStalemate},
		{1000, 1101, models.WarPhaseDefenderWon},
		{1000, 1100, models.WarPhaseStalemate},
		{500, 500, models.WarPhaseStalemate},
		{0, 0, models.WarPhaseStalemate},
		{1, 0, models.WarPhaseAttackerWon},
		{0, 1, models.WarPhaseDefenderWon},
	}
	for _, tc := range cases {
		if got := DetermineOutcome(tc.attacker, tc.defender); got != tc.want {
			t.Errorf("DetermineOutcome(%d, %d) = %q, want %q", tc.attacker, tc.defender, got, tc.want)
		}
	}
}

// setScores writes materialized scores directly; the ledger path is covered by
// the capture and mission tests.
func (w *warWorld) setScores(t *testing.T, warID string, attacker, defender int64) {
	t.Helper()
	err := w.db.Model(&models.War{}).Where("id = ?", warID).
		Updates(map[string]interface{}{"attacker_score": attacker, "defender_score": defender}).Error
	if err != nil {
		t.Fatal(err)
	}
}

func TestResolveWarAttackerVictory(t *testing.T) {
	w := newWarWorld(t)
	war := w.declareWar(t)
	w.activateWar(t, war.ID)
	w.setScores(t, war.ID, 500, 100)

	attackerFundsBefore := w.reloadCrew(t, crewAID).Funds // 1.5M after the declaration debit
	now := w.clock.Now()

	if err := w.settlement.ResolveWar(war.ID); err != nil {
		t.Fatalf("ResolveWar: %v", err)
	}

	resolved := w.reloadWar(t, war.ID)
	if resolved.Phase != models.WarPhaseAttackerWon {
		t.Fatalf("phase = %q, want %q", resolved.Phase, models.WarPhaseAttackerWon)
	}
	if resolved.Open != nil {
		t.Error("resolved war still marked open")
	}
	if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(now) {
		t.Errorf("ResolvedAt = %v, want %v", resolved.ResolvedAt, now)
	}

	// 20% of the loser's 1M funds, plus the 250k prize pool
	seizure := int64(float64(1_000_000) * FundSeizurePct)
	winner := w.reloadCrew(t, crewAID)
	loser := w.reloadCrew(t, crewBID)
	if winner.Funds != attackerFundsBefore+seizure+WarPrizePool {
		t.Errorf("winner funds = %d, want %d", winner.Funds, attackerFundsBefore+seizure+WarPrizePool)
	}
	if loser.Funds != 1_000_000-seizure {
		t.Errorf("loser funds = %d, want %d", loser.Funds, 1_000_000-seizure)
	}

	if winner.Wins != 1 || winner.Wars != 1 || winner.WinStreak != 1 || winner.BestWinStreak != 1 {
		t.Errorf("winner standing = wins %d wars %d streak %d best %d, want all 1",
			winner.Wins, winner.Wars, winner.WinStreak, winner.BestWinStreak)
	}
	if loser.Losses != 1 || loser.Wars != 1 || loser.WinStreak != 0 {
		t.Errorf("loser standing = losses %d wars %d streak %d, want 1/1/0",
			loser.Losses, loser.Wars, loser.WinStreak)
	}
	if loser.DebuffUntil == nil || !loser.DebuffUntil.Equal(now.Add(LoserDebuffDuration)) {
		t.Errorf("loser DebuffUntil = %v, want %v", loser.DebuffUntil, now.Add(LoserDebuffDuration))
	}

	// Territory changes hands outright
	territory := w.reloadTerritory(t, targetID)
	if territory.ControllingCrewID == nil || *territory.ControllingCrewID != crewAID {
		t.Errorf("territory controller = %v, want %s", territory.ControllingCrewID, crewAID)
	}
	if territory.ControlPercent != 100 || territory.Contested {
		t.Errorf("territory control=%d contested=%t, want 100/false", territory.ControlPercent, territory.Contested)
	}
	if territory.TreatyUntil == nil || !territory.TreatyUntil.Equal(now.Add(TreatyDuration)) {
		t.Errorf("territory TreatyUntil = %v, want %v", territory.TreatyUntil, now.Add(TreatyDuration))
	}

	// Treaty row for the pair, revenge bonus for the loser
	var treaty models.PeaceTreaty
	if err := w.db.Where("territory_id = ?", targetID).First(&treaty).Error; err != nil {
		t.Fatalf("treaty row missing: %v", err)
	}
	if !treaty.ExpiresAt.Equal(now.Add(TreatyDuration)) {
		t.Errorf("treaty expires %v, want %v", treaty.ExpiresAt, now.Add(TreatyDuration))
	}
	var bonus models.RevengeBonus
	if err := w.db.Where("crew_id = ? AND against_crew_id = ?", crewBID, crewAID).First(&bonus).Error; err != nil {
		t.Fatalf("revenge bonus missing: %v", err)
	}
	if bonus.BonusPct != RevengeBonusPct || !bonus.ExpiresAt.Equal(now.Add(RevengeBonusDuration)) {
		t.Errorf("revenge bonus = %v%% until %v, want %v%% until %v",
			bonus.BonusPct, bonus.ExpiresAt, RevengeBonusPct, now.Add(RevengeBonusDuration))
	}

	// POI state is cleared, member counters reset
	var controls int64
	w.db.Model(&models.POIControl{}).Where("war_id = ?", war.ID).Count(&controls)
	if controls != 0 {
		t.Errorf("POI control rows after resolution = %d, want 0", controls)
	}
	var dirty int64
	w.db.Model(&models.CrewMember{}).Where("war_points > 0").Count(&dirty)
	if dirty != 0 {
		t.Errorf("members with unreset war points = %d, want 0", dirty)
	}
}

func TestResolveWarDefenderVictory(t *testing.T) {
	w := newWarWorld(t)
	war := w.declareWar(t)
	w.activateWar(t, war.ID)
	w.setScores(t, war.ID, 100, 500)

	if err := w.settlement.ResolveWar(war.ID); err != nil {
		t.Fatalf("ResolveWar: %v", err)
	}

	if phase := w.reloadWar(t, war.ID).Phase; phase != models.WarPhaseDefenderWon {
		t.Fatalf("phase = %q, want %q", phase, models.WarPhaseDefenderWon)
	}

	// The defender keeps the turf and takes 20% of the attacker's 1.5M
	territory := w.reloadTerritory(t, targetID)
	if territory.ControllingCrewID == nil || *territory.ControllingCrewID != crewBID {
		t.Errorf("territory controller = %v, want defender %s", territory.ControllingCrewID, crewBID)
	}
	seizure := int64(float64(1_500_000) * FundSeizurePct)
	if funds := w.reloadCrew(t, crewBID).Funds; funds != 1_000_000+seizure+WarPrizePool {
		t.Errorf("defender funds = %d, want %d", funds, 1_000_000+seizure+WarPrizePool)
	}
}

func TestResolveWarStalemate(t *testing.T) {
	w := newWarWorld(t)
	war := w.declareWar(t)
	w.activateWar(t, war.ID)
	w.setScores(t, war.ID, 300, 300)
	now := w.clock.Now()

	if err := w.settlement.ResolveWar(war.ID); err != nil {
		t.Fatalf("ResolveWar: %v", err)
	}

	if phase := w.reloadWar(t, war.ID).Phase; phase != models.WarPhaseStalemate {
		t.Fatalf("phase = %q, want %q", phase, models.WarPhaseStalemate)
	}

	// Flat penalty on both sides, no seizure, no transfer
	if funds := w.reloadCrew(t, crewAID).Funds; funds != 1_500_000-StalematePenalty {
		t.Errorf("attacker funds = %d, want %d", funds, 1_500_000-StalematePenalty)
	}
	crewB := w.reloadCrew(t, crewBID)
	if crewB.Funds != 1_000_000-StalematePenalty {
		t.Errorf("defender funds = %d, want %d", crewB.Funds, 1_000_000-StalematePenalty)
	}
	if crewB.Stalemates != 1 || crewB.Wars != 1 {
		t.Errorf("defender standing = stalemates %d wars %d, want 1/1", crewB.Stalemates, crewB.Wars)
	}

	territory := w.reloadTerritory(t, targetID)
	if territory.ControllingCrewID == nil || *territory.ControllingCrewID != crewBID {
		t.Errorf("territory controller = %v, want unchanged %s", territory.ControllingCrewID, crewBID)
	}
	if territory.ControlPercent != StalemateControlSplit {
		t.Errorf("control percent = %d, want %d", territory.ControlPercent, StalemateControlSplit)
	}

	// Stalemates carry the shorter treaty
	var treaty models.PeaceTreaty
	if err := w.db.Where("territory_id = ?", targetID).First(&treaty).Error; err != nil {
		t.Fatalf("treaty row missing: %v", err)
	}
	if !treaty.ExpiresAt.Equal(now.Add(StalemateTreatyDuration)) {
		t.Errorf("treaty expires %v, want %v", treaty.ExpiresAt, now.Add(StalemateTreatyDuration))
	}

	// No revenge bonus on a draw
	var bonuses int64
	w.db.Model(&models.RevengeBonus{}).Count(&bonuses)
	if bonuses != 0 {
		t.Errorf("revenge bonus rows = %d, want 0", bonuses)
	}
}

func TestResolveWarStalematePenaltyFloorsAtZero(t *testing.T) {
	w := newWarWorld(t)
	war := w.declareWar(t)
	w.activateWar(t, war.ID)
	w.setScores(t, war.ID, 300, 300)

	// Defender can't cover the full penalty
	if err := w.db.Model(&models.Crew{}).Where("id = ?", crewBID).
		Update("funds", 40_000).Error; err != nil {
		t.Fatal(err)
	}

	if err := w.settlement.ResolveWar(war.ID); err != nil {
		t.Fatalf("ResolveWar: %v", err)
	}
	if funds := w.reloadCrew(t, crewBID).Funds; funds != 0 {
		t.Errorf("defender funds = %d, want 0 (never negative)", funds)
	}
}

func TestResolveWarTwiceIsNoOp(t *testing.T) {
	w := newWarWorld(t)
	war := w.declareWar(t)
	w.activateWar(t, war.ID)
	w.setScores(t, war.ID, 500, 100)

	if err := w.settlement.ResolveWar(war.ID); err != nil {
		t.Fatalf("first ResolveWar: %v", err)
	}
	fundsAfterFirst := w.reloadCrew(t, crewAID).Funds

	if err := w.settlement.ResolveWar(war.ID); err != nil {
		t.Fatalf("second ResolveWar: %v", err)
	}
	if funds := w.reloadCrew(t, crewAID).Funds; funds != fundsAfterFirst {
		t.Errorf("second resolution moved funds: %d -> %d", fundsAfterFirst, funds)
	}
	if wars := w.reloadCrew(t, crewAID).Wars; wars != 1 {
		t.Errorf("wars counted = %d after double resolution, want 1", wars)
	}
}

func TestResolveWarTreatyBlocksRedeclaration(t *testing.T) {
	w := newWarWorld(t)
	war := w.declareWar(t)
	w.activateWar(t, war.ID)
	w.setScores(t, war.ID, 300, 300) // stalemate keeps B the owner, A adjacent

	if err := w.settlement.ResolveWar(war.ID); err != nil {
		t.Fatalf("ResolveWar: %v", err)
	}

	if _, err := w.wars.DeclareWar(crewAID, leaderAID, targetID); !errors.Is(err, ErrTreatyActive) {
		t.Errorf("redeclaration error = %v, want ErrTreatyActive", err)
	}

	// After the treaty lapses the turf is contestable again
	w.clock.Advance(StalemateTreatyDuration + time.Minute)
	if _, err := w.wars.DeclareWar(crewAID, leaderAID, targetID); err != nil {
		t.Errorf("declaration after treaty expiry: %v", err)
	}
}

func TestResolveWarBestWinStreakTracksHighWaterMark(t *testing.T) {
	w := newWarWorld(t)
	if err := w.db.Model(&models.Crew{}).Where("id = ?", crewAID).
		Updates(map[string]interface{}{"win_streak": 4, "best_win_streak": 6}).Error; err != nil {
		t.Fatal(err)
	}

	war := w.declareWar(t)
	w.activateWar(t, war.ID)
	w.setScores(t, war.ID, 500, 100)
	if err := w.settlement.ResolveWar(war.ID); err != nil {
		t.Fatal(err)
	}

	crew := w.reloadCrew(t, crewAID)
	if crew.WinStreak != 5 {
		t.Errorf("win streak = %d, want 5", crew.WinStreak)
	}
	if crew.BestWinStreak != 6 {
		t.Errorf("best win streak = %d, want untouched 6", crew.BestWinStreak)
	}
}
