package services

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"turf-war-system/models"
	"turf-war-system/utils"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

// cashPrinter formats cash amounts with thousands separators for event and
// notification text.
var cashPrinter = message.NewPrinter(language.English)

// appendWarEvent writes a war event row outside the caller's transaction.
// Fire-and-forget: a failed append is logged and never fails or rolls back
// the operation that produced it.
func appendWarEvent(db *gorm.DB, warID, eventType, msg string, meta interface{}) {
	ev := models.WarEvent{
		ID:      uuid.NewString(),
		WarID:   warID,
		Type:    eventType,
		Message: msg,
	}
	if meta != nil {
		if raw, err := json.Marshal(meta); err == nil {
			ev.Meta = string(raw)
		}
	}
	if err := db.Create(&ev).Error; err != nil {
		log.Printf("⚠️  [EVENTS] failed to append %s event for war %s: %v", eventType, warID, err)
	}
}

// notifyCrewService pushes a notification payload to the external crew
// service. Fire-and-forget; failures are logged and swallowed.
func notifyCrewService(eventType string, payload interface{}) {
	baseURL := os.Getenv("CREW_SERVICE_URL")
	if baseURL == "" {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		return
	}
	go func() {
		req, err := http.NewRequest("POST", baseURL+"/api/v1/internal/notifications", bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Service-Token", os.Getenv("WAR_SERVICE_TOKEN"))
		resp, err := utils.HTTPClient.Do(req)
		if err != nil {
			log.Printf("⚠️  [EVENTS] notification %s failed: %v", eventType, err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Printf("⚠️  [EVENTS] notification %s returned status %d", eventType, resp.StatusCode)
		}
	}()
}

func formatCash(amount int64) string {
	return cashPrinter.Sprintf("$%d", amount)
}
