package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"turf-war-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CrewSyncClient mirrors crew rosters and player state from the external
// crew/player service into the engine's local tables. The engine mutates
// funds and resources on the mirror inside its own transactions; this worker
// reconciles everything the crew service owns (membership, roles, levels).
type CrewSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewCrewSyncClient(db *gorm.DB) *CrewSyncClient {
	baseURL := os.Getenv("CREW_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("CREW_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("WAR_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("WAR_SERVICE_TOKEN environment variable is required for crew sync")
	}

	return &CrewSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type crewSyncResponse struct {
	Crews   []models.Crew       `json:"crews"`
	Members []models.CrewMember `json:"members"`
	Players []models.Player     `json:"players"`
}

func (c *CrewSyncClient) GetChangedCrews(ctx context.Context, since time.Time) (*crewSyncResponse, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/internal/crews/changed", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call crew service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("crew service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response crewSyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode crew service response: %w", err)
	}

	return &response, nil
}

// PollCrews mirrors changed crews, members and players on a fixed interval.
// Funds are deliberately left out of the crew upsert columns: the engine is
// the writer of record for the mirror's funds between reconciliations, so a
// sync must not clobber a debit/credit applied since the remote snapshot.
func PollCrews(ctx context.Context, client *CrewSyncClient, pollInterval time.Duration) {
	log.Println("Starting crew mirror polling...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Crew polling stopped.")
			return
		case <-ticker.C:
			logTime := time.Now().UTC()

			changes, err := client.GetChangedCrews(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling crews: %v", err)
				continue
			}

			if len(changes.Crews) == 0 && len(changes.Members) == 0 && len(changes.Players) == 0 {
				continue
			}

			ok := true
			if len(changes.Crews) > 0 {
				if err := client.DB.Clauses(clause.OnConflict{
					Columns: []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"name", "leader_id", "debuff_until", "updated_at",
					}),
				}).Create(&changes.Crews).Error; err != nil {
					log.Printf("❌ Failed to upsert %d crew(s): %v", len(changes.Crews), err)
					ok = false
				}
			}
			if ok && len(changes.Members) > 0 {
				if err := client.DB.Clauses(clause.OnConflict{
					Columns: []clause.Column{{Name: "crew_id"}, {Name: "player_id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"war_role", "is_warlord", "updated_at",
					}),
				}).Create(&changes.Members).Error; err != nil {
					log.Printf("❌ Failed to upsert %d member(s): %v", len(changes.Members), err)
					ok = false
				}
			}
			if ok && len(changes.Players) > 0 {
				if err := client.DB.Clauses(clause.OnConflict{
					Columns: []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"name", "level", "updated_at",
					}),
				}).Create(&changes.Players).Error; err != nil {
					log.Printf("❌ Failed to upsert %d player(s): %v", len(changes.Players), err)
					ok = false
				}
			}

			if !ok {
				// Do NOT advance lastSyncTime on failure — retry same window next tick
				continue
			}

			lastSyncTime = logTime
			log.Printf("✅ Mirrored %d crew(s), %d member(s), %d player(s).",
				len(changes.Crews), len(changes.Members), len(changes.Players))
		}
	}
}
