package services

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Validation errors — rejected synchronously with no partial state change.
var (
	ErrNotAuthorized     = errors.New("caller is not the crew leader or a warlord")
	ErrInsufficientFunds = errors.New("crew funds below the declaration cost")
	ErrOwnTerritory      = errors.New("crew already controls this territory")
	ErrUnclaimedTarget   = errors.New("territory has no controlling crew")
	ErrNotAdjacent       = errors.New("crew controls no territory adjacent to the target")
	ErrTreatyActive      = errors.New("territory is under an unexpired peace treaty")
	ErrWarExists         = errors.New("a war is already open for this territory or crew pair")

	ErrWarNotActive      = errors.New("war is not in its active phase")
	ErrNotAWarParty      = errors.New("crew is not a side of this war")
	ErrAlreadyControlled = errors.New("point of interest is already controlled by this crew")

	ErrLevelTooLow          = errors.New("player level below mission requirement")
	ErrWrongRole            = errors.New("player war role does not match mission requirement")
	ErrInsufficientStamina  = errors.New("not enough stamina")
	ErrInsufficientFocus    = errors.New("not enough focus")
	ErrMissionCooldown      = errors.New("mission is on cooldown for this player")
	ErrMissionNotFound      = errors.New("unknown mission")
	ErrNotFound             = errors.New("record not found")
	ErrConflict             = errors.New("concurrent update conflict, retry later")
)

var validationErrors = []error{
	ErrNotAuthorized, ErrInsufficientFunds, ErrOwnTerritory, ErrUnclaimedTarget,
	ErrNotAdjacent, ErrTreatyActive, ErrWarExists, ErrWarNotActive,
	ErrNotAWarParty, ErrAlreadyControlled, ErrLevelTooLow, ErrWrongRole,
	ErrInsufficientStamina, ErrInsufficientFocus, ErrMissionCooldown,
	ErrMissionNotFound,
}

// RespondError maps engine errors onto HTTP responses: validation errors are
// 4xx with the reason, lock conflicts that survived retries are 503, anything
// else is a 500.
func RespondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrWarExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrConflict):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	for _, ve := range validationErrors {
		if errors.Is(err, ve) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	log.Printf("❌ [ENGINE] unexpected error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

const txRetries = 3

// withRetry runs fn up to txRetries times, retrying only on lock/serialization
// conflicts. Exhausted retries surface as ErrConflict (transient, not
// permanent).
func withRetry(fn func() error) error {
	var err error
	for i := 0; i < txRetries; i++ {
		err = fn()
		if err == nil || !isLockConflict(err) {
			return err
		}
		log.Printf("[ENGINE] write conflict, retry %d/%d: %v", i+1, txRetries, err)
	}
	return ErrConflict
}

// isUniqueViolation detects the unique-index backstop firing on a duplicate
// open war, across the postgres and sqlite drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func isLockConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "lock") && strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "database is locked")
}
