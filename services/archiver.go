package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"turf-war-system/models"
	"turf-war-system/utils"
)

// WarArchiver writes a JSON snapshot of a resolved war's POI state and event
// log to object storage before the POIControl rows are removed.
type WarArchiver struct{}

func NewWarArchiver() *WarArchiver {
	if !utils.R2Enabled() {
		log.Println("⚠️  War archiving disabled: R2 not configured")
		return nil
	}
	return &WarArchiver{}
}

type warArchive struct {
	War        *models.War         `json:"war"`
	POIs       []models.POIControl `json:"pois"`
	Events     []models.WarEvent   `json:"events"`
	ArchivedAt time.Time           `json:"archived_at"`
}

func (a *WarArchiver) ArchiveWar(war *models.War, controls []models.POIControl, events []models.WarEvent) {
	payload, err := json.Marshal(warArchive{
		War:        war,
		POIs:       controls,
		Events:     events,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("⚠️  [ARCHIVE] failed to marshal archive for war %s: %v", war.ID, err)
		return
	}
	key := fmt.Sprintf("wars/%s/%s.json", war.TerritoryID, war.ID)
	if err := utils.UploadBytesToR2(key, "application/json", payload); err != nil {
		log.Printf("⚠️  [ARCHIVE] failed to upload archive for war %s: %v", war.ID, err)
		return
	}
	log.Printf("🗄️  Archived war %s to %s", war.ID, key)
}
