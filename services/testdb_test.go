package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"turf-war-system/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:enginetest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	err = db.AutoMigrate(
		&models.Crew{},
		&models.CrewMember{},
		&models.Player{},
		&models.Territory{},
		&models.TerritoryLink{},
		&models.POI{},
		&models.PeaceTreaty{},
		&models.War{},
		&models.WarScoreEntry{},
		&models.POIControl{},
		&models.PlayerWarParticipation{},
		&models.RevengeBonus{},
		&models.WarEvent{},
		&models.Mission{},
		&models.MissionAttempt{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}
	return db
}

// testClock is an injectable Now() whose time only moves when a test says so.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// Fixture IDs, readable on test failure.
const (
	crewAID = "crew-a"
	crewBID = "crew-b"

	leaderAID   = "player-leader-a"
	leaderBID   = "player-leader-b"
	engineerAID = "player-engineer-a"
	warlordAID  = "player-warlord-a"
	soldierBID  = "player-soldier-b"
	outsiderID  = "player-outsider"

	homeID   = "territory-home"
	targetID = "territory-target"
	islandID = "territory-island"

	dockPOIID = "poi-dock"
	clubPOIID = "poi-club"
)

// warWorld is the standard two-crew fixture: crew A holds "home", crew B holds
// the adjacent "target" with two POIs, and "island" sits unconnected. All
// services share one clock.
type warWorld struct {
	db    *gorm.DB
	clock *testClock

	territories *TerritoryService
	wars        *WarService
	capture     *CaptureService
	missions    *MissionService
	settlement  *SettlementService
	scheduler   *Scheduler
}

func newWarWorld(t *testing.T) *warWorld {
	t.Helper()
	db := newTestDB(t)
	clock := newTestClock()

	w := &warWorld{db: db, clock: clock}
	w.territories = &TerritoryService{DB: db, Now: clock.Now}
	w.wars = &WarService{DB: db, Territory: w.territories, Now: clock.Now}
	w.capture = &CaptureService{DB: db, Now: clock.Now}
	w.missions = &MissionService{DB: db, Now: clock.Now, Roll: func() float64 { return 0 }}
	w.settlement = &SettlementService{DB: db, Now: clock.Now}
	w.scheduler = &Scheduler{DB: db, Capture: w.capture, Settlement: w.settlement, Now: clock.Now}

	crews := []models.Crew{
		{ID: crewAID, Name: "Ashford Syndicate", LeaderID: leaderAID, Funds: 2_000_000},
		{ID: crewBID, Name: "Bayside Kings", LeaderID: leaderBID, Funds: 1_000_000},
	}
	players := []models.Player{
		{ID: leaderAID, Name: "Vic", Level: 10, Stamina: 100, Focus: 100},
		{ID: leaderBID, Name: "Sal", Level: 10, Stamina: 100, Focus: 100},
		{ID: engineerAID, Name: "Wrench", Level: 10, Stamina: 100, Focus: 100},
		{ID: warlordAID, Name: "Bruno", Level: 10, Stamina: 100, Focus: 100},
		{ID: soldierBID, Name: "Knuckles", Level: 10, Stamina: 100, Focus: 100},
		{ID: outsiderID, Name: "Nobody", Level: 10, Stamina: 100, Focus: 100},
	}
	members := []models.CrewMember{
		{ID: "m-leader-a", CrewID: crewAID, PlayerID: leaderAID, WarRole: models.RoleSoldier},
		{ID: "m-engineer-a", CrewID: crewAID, PlayerID: engineerAID, WarRole: models.RoleEngineer},
		{ID: "m-warlord-a", CrewID: crewAID, PlayerID: warlordAID, WarRole: models.RoleSoldier, IsWarlord: true},
		{ID: "m-leader-b", CrewID: crewBID, PlayerID: leaderBID, WarRole: models.RoleSoldier},
		{ID: "m-soldier-b", CrewID: crewBID, PlayerID: soldierBID, WarRole: models.RoleSoldier},
	}

	aOwner, bOwner := crewAID, crewBID
	territories := []models.Territory{
		{ID: homeID, Name: "Home Turf", Slug: "home-turf", District: "docks", ControllingCrewID: &aOwner, ControlPercent: 100},
		{ID: targetID, Name: "Target Turf", Slug: "target-turf", District: "docks", ControllingCrewID: &bOwner, ControlPercent: 100},
		{ID: islandID, Name: "The Island", Slug: "the-island", District: "bay", ControllingCrewID: &bOwner, ControlPercent: 100},
	}
	links := []models.TerritoryLink{
		{ID: "link-1", TerritoryID: homeID, AdjacentID: targetID},
		{ID: "link-2", TerritoryID: targetID, AdjacentID: homeID},
	}
	pois := []models.POI{
		{ID: dockPOIID, TerritoryID: targetID, Name: "Shipping Dock", Kind: "dock", StrategicValue: 3},
		{ID: clubPOIID, TerritoryID: targetID, Name: "Night Club", Kind: "club", StrategicValue: 1},
	}

	for _, c := range crews {
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed crew: %v", err)
		}
	}
	for _, p := range players {
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("seed player: %v", err)
		}
	}
	for _, m := range members {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	for _, tr := range territories {
		if err := db.Create(&tr).Error; err != nil {
			t.Fatalf("seed territory: %v", err)
		}
	}
	for _, l := range links {
		if err := db.Create(&l).Error; err != nil {
			t.Fatalf("seed link: %v", err)
		}
	}
	for _, p := range pois {
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("seed poi: %v", err)
		}
	}
	return w
}

// declareWar declares the standard war: crew A attacks crew B's target turf.
func (w *warWorld) declareWar(t *testing.T) *models.War {
	t.Helper()
	war, err := w.wars.DeclareWar(crewAID, leaderAID, targetID)
	if err != nil {
		t.Fatalf("DeclareWar: %v", err)
	}
	return war
}

// activateWar forces a war into its active phase without waiting out the prep
// window.
func (w *warWorld) activateWar(t *testing.T, warID string) {
	t.Helper()
	err := w.db.Model(&models.War{}).Where("id = ?", warID).
		Update("phase", models.WarPhaseActive).Error
	if err != nil {
		t.Fatalf("activate war: %v", err)
	}
}

func (w *warWorld) reloadWar(t *testing.T, warID string) models.War {
	t.Helper()
	var war models.War
	if err := w.db.First(&war, "id = ?", warID).Error; err != nil {
		t.Fatalf("reload war: %v", err)
	}
	return war
}

func (w *warWorld) reloadCrew(t *testing.T, crewID string) models.Crew {
	t.Helper()
	var crew models.Crew
	if err := w.db.First(&crew, "id = ?", crewID).Error; err != nil {
		t.Fatalf("reload crew: %v", err)
	}
	return crew
}

func (w *warWorld) reloadTerritory(t *testing.T, territoryID string) models.Territory {
	t.Helper()
	var territory models.Territory
	if err := w.db.First(&territory, "id = ?", territoryID).Error; err != nil {
		t.Fatalf("reload territory: %v", err)
	}
	return territory
}

func (w *warWorld) reloadPlayer(t *testing.T, playerID string) models.Player {
	t.Helper()
	var player models.Player
	if err := w.db.First(&player, "id = ?", playerID).Error; err != nil {
		t.Fatalf("reload player: %v", err)
	}
	return player
}
