package domain

import (
	"strings"
	"time"
)

// DedupPolicy decides when two messages for the same number are the same SMS.
// The sync path and the webhook path intentionally use different policies.
type DedupPolicy int

const (
	// DedupSenderText matches on (sender, message). Used by provider sync.
	DedupSenderText DedupPolicy = iota
	// DedupSenderTextTime also requires the same received_at second. Used by
	// webhooks when WEBHOOK_DEDUP_WITH_TIMESTAMP is on.
	DedupSenderTextTime
)

func (p DedupPolicy) String() string {
	switch p {
	case DedupSenderTextTime:
		return "sender_text_time"
	default:
		return "sender_text"
	}
}

// Key is the comparison key for a message under p.
func (p DedupPolicy) Key(sender, text string, receivedAt time.Time) string {
	key := strings.TrimSpace(sender) + "\x00" + strings.TrimSpace(text)
	if p == DedupSenderTextTime {
		key += "\x00" + receivedAt.UTC().Truncate(time.Second).Format(time.RFC3339)
	}
	return key
}
