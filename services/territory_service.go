package services

import (
	"errors"
	"log"
	"time"

	"turf-war-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type TerritoryService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewTerritoryService(db *gorm.DB) *TerritoryService {
	return &TerritoryService{DB: db, Now: time.Now}
}

// TerritoryView is the map read model: ownership, control strength, and
// treaty status per territory.
type TerritoryView struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Slug              string     `json:"slug"`
	District          string     `json:"district"`
	ControllingCrewID *string    `json:"controlling_crew_id,omitempty"`
	ControllingCrew   string     `json:"controlling_crew,omitempty"`
	ControlPercent    int        `json:"control_percent"`
	Contested         bool       `json:"contested"`
	UnderTreaty       bool       `json:"under_treaty"`
	TreatyUntil       *time.Time `json:"treaty_until,omitempty"`
	Adjacent          []string   `json:"adjacent,omitempty"`
}

func (s *TerritoryService) GetTerritoryMap(c *fiber.Ctx) error {
	var territories []models.Territory
	if err := s.DB.Preload("Links").Order("district, name").Find(&territories).Error; err != nil {
		log.Printf("ERROR fetching territories: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch territories"})
	}

	crewNames := map[string]string{}
	var crews []models.Crew
	if err := s.DB.Find(&crews).Error; err == nil {
		for _, cr := range crews {
			crewNames[cr.ID] = cr.Name
		}
	}

	now := s.Now()
	views := make([]TerritoryView, 0, len(territories))
	for _, t := range territories {
		v := TerritoryView{
			ID:                t.ID,
			Name:              t.Name,
			Slug:              t.Slug,
			District:          t.District,
			ControllingCrewID: t.ControllingCrewID,
			ControlPercent:    t.ControlPercent,
			Contested:         t.Contested,
			UnderTreaty:       t.TreatyUntil != nil && t.TreatyUntil.After(now),
			TreatyUntil:       t.TreatyUntil,
		}
		if t.ControllingCrewID != nil {
			v.ControllingCrew = crewNames[*t.ControllingCrewID]
		}
		for _, l := range t.Links {
			v.Adjacent = append(v.Adjacent, l.AdjacentID)
		}
		views = append(views, v)
	}
	return c.JSON(views)
}

func (s *TerritoryService) GetTerritoryByID(c *fiber.Ctx) error {
	id := c.Params("id")
	var t models.Territory
	err := s.DB.Preload("POIs").Preload("Links").First(&t, "id = ? OR slug = ?", id, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "territory not found"})
		}
		log.Printf("ERROR fetching territory %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	// Active treaties for the detail view
	var treaties []models.PeaceTreaty
	s.DB.Where("territory_id = ? AND expires_at > ?", t.ID, s.Now()).Find(&treaties)

	return c.JSON(fiber.Map{
		"territory": t,
		"treaties":  treaties,
	})
}

// AdjacentControlled reports whether crewID controls at least one territory
// adjacent to the target.
func (s *TerritoryService) AdjacentControlled(tx *gorm.DB, territoryID, crewID string) (bool, error) {
	var count int64
	err := tx.Model(&models.TerritoryLink{}).
		Joins("JOIN territories ON territories.id = territory_links.adjacent_id").
		Where("territory_links.territory_id = ? AND territories.controlling_crew_id = ?", territoryID, crewID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateTerritory registers a territory with its POIs and adjacency edges.
// Used by the seeding/admin surface; slugs are derived from the name.
func (s *TerritoryService) CreateTerritory(c *fiber.Ctx) error {
	type POIReq struct {
		Name           string `json:"name"`
		Kind           string `json:"kind"`
		StrategicValue int    `json:"strategic_value"`
	}
	type Req struct {
		Name     string   `json:"name"`
		District string   `json:"district"`
		OwnerID  string   `json:"owner_id,omitempty"`
		Adjacent []string `json:"adjacent,omitempty"`
		POIs     []POIReq `json:"pois"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}

	territory := &models.Territory{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Slug:           slug.Make(req.Name),
		District:       req.District,
		ControlPercent: 100,
	}
	if req.OwnerID != "" {
		territory.ControllingCrewID = &req.OwnerID
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(territory).Error; err != nil {
			return err
		}
		for _, p := range req.POIs {
			value := p.StrategicValue
			if value < 1 {
				value = 1
			}
			poi := models.POI{
				ID:             uuid.NewString(),
				TerritoryID:    territory.ID,
				Name:           p.Name,
				Kind:           p.Kind,
				StrategicValue: value,
			}
			if err := tx.Create(&poi).Error; err != nil {
				return err
			}
		}
		// Adjacency edges are stored both ways
		for _, adj := range req.Adjacent {
			links := []models.TerritoryLink{
				{ID: uuid.NewString(), TerritoryID: territory.ID, AdjacentID: adj},
				{ID: uuid.NewString(), TerritoryID: adj, AdjacentID: territory.ID},
			}
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("ERROR creating territory: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create territory"})
	}

	s.DB.Preload("POIs").Preload("Links").First(territory, "id = ?", territory.ID)
	return c.Status(201).JSON(territory)
}
