package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeClaimSubmitted = "claim.submitted"
	EventTypeClaimApproved  = "claim.approved"
	EventTypeClaimRejected  = "claim.rejected"
)

var ClaimEventTypes = []string{
	EventTypeClaimSubmitted,
	EventTypeClaimApproved,
	EventTypeClaimRejected,
}

// ClaimEvent announces a claim status change. ActorID is the submitting
// staff member for claim.submitted and the reviewer otherwise.
type ClaimEvent struct {
	BaseEvent
	ClaimID int64  `json:"claim_id"`
	ActorID int64  `json:"actor_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

func NewClaimEvent(eventType string, claimID, actorID int64, status, reason string) *ClaimEvent {
	data := map[string]interface{}{
		"claim_id": claimID,
		"actor_id": actorID,
		"status":   status,
	}
	if reason != "" {
		data["reason"] = reason
	}

	return &ClaimEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data:      data,
		},
		ClaimID: claimID,
		ActorID: actorID,
		Status:  status,
		Reason:  reason,
	}
}
