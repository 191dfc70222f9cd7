package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// AwardResult mirrors the JSON returned by POST /users/{id}/xp.
type AwardResult struct {
	TotalXP   int64    `json:"total_xp"`
	Level     int64    `json:"level"`
	LevelUp   bool     `json:"level_up"`
	NewBadges []string `json:"new_badges,omitempty"`
}

// UserStats mirrors the JSON returned by GET /users/{id}/stats.
type UserStats struct {
	UserID      string   `json:"user_id"`
	TotalXP     int64    `json:"total_xp"`
	Level       int64    `json:"level"`
	Badges      []string `json:"badges"`
	Achievement string   `json:"achievement"`
	XPToNext    int64    `json:"xp_to_next"`
}

// LevelInfo mirrors the JSON returned by GET /levels/{level}.
type LevelInfo struct {
	Level         int64  `json:"level"`
	Threshold     int64  `json:"threshold"`
	NextThreshold int64  `json:"next_threshold"`
	Achievement   string `json:"achievement"`
	Milestone     bool   `json:"milestone"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// APIError carries the structured error payload returned by the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			return fmt.Errorf("request failed: status %d", resp.StatusCode)
		}
		return apiErr
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
