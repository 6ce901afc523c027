package services

import (
	"log"
	"time"

	"turf-war-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// Scheduler runs the periodic settlement passes. Each pass is independent,
// order-insensitive and idempotent, so the tick can run them together or a
// caller can invoke any one of them alone.
type Scheduler struct {
	DB         *gorm.DB
	Capture    *CaptureService
	Settlement *SettlementService
	Now        func() time.Time
}

func NewScheduler(db *gorm.DB, capture *CaptureService, settlement *SettlementService) *Scheduler {
	return &Scheduler{DB: db, Capture: capture, Settlement: settlement, Now: time.Now}
}

// Start schedules the tick once per minute.
func (s *Scheduler) Start() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			s.Tick()
		}),
	)
	log.Println("✅ War settlement scheduler running (every 1m)")
}

// Tick runs all three passes.
func (s *Scheduler) Tick() {
	s.PromoteDueWars()
	s.AccrueActiveWars()
	s.ResolveDueWars()
}

// PromoteDueWars flips preparing wars past their prep deadline to active.
// Pure state flip, no side effects.
func (s *Scheduler) PromoteDueWars() {
	var wars []models.War
	err := s.DB.Where("phase = ? AND prep_end <= ?", models.WarPhasePreparing, s.Now()).
		Find(&wars).Error
	if err != nil {
		log.Printf("[Scheduler] promote pass DB error: %v", err)
		return
	}
	for _, w := range wars {
		result := s.DB.Model(&models.War{}).
			Where("id = ? AND phase = ?", w.ID, models.WarPhasePreparing).
			Update("phase", models.WarPhaseActive)
		if result.Error != nil {
			log.Printf("[Scheduler] failed to promote war %s: %v", w.ID, result.Error)
			continue
		}
		if result.RowsAffected > 0 {
			appendWarEvent(s.DB, w.ID, "promoted", "war is now active", nil)
			log.Printf("⚔️  War %s promoted to active", w.ID)
		}
	}
}

// AccrueActiveWars runs the hourly control point accrual for every active
// war. The per-POI last-tick guard inside AccrueControlPoints makes repeated
// runs within the window no-ops.
func (s *Scheduler) AccrueActiveWars() {
	var wars []models.War
	if err := s.DB.Where("phase = ?", models.WarPhaseActive).Find(&wars).Error; err != nil {
		log.Printf("[Scheduler] accrue pass DB error: %v", err)
		return
	}
	for _, w := range wars {
		if err := s.Capture.AccrueControlPoints(w.ID); err != nil {
			log.Printf("[Scheduler] failed to accrue points for war %s: %v", w.ID, err)
		}
	}
}

// ResolveDueWars resolves active wars past their end deadline. Each war is
// isolated: one failure is logged and skipped, the rest proceed, and the
// failed war is retried on the next tick.
func (s *Scheduler) ResolveDueWars() {
	var wars []models.War
	err := s.DB.Where("phase = ? AND war_end <= ?", models.WarPhaseActive, s.Now()).
		Find(&wars).Error
	if err != nil {
		log.Printf("[Scheduler] resolve pass DB error: %v", err)
		return
	}
	for _, w := range wars {
		if err := s.Settlement.ResolveWar(w.ID); err != nil {
			log.Printf("[Scheduler] failed to resolve war %s: %v", w.ID, err)
		}
	}
}
