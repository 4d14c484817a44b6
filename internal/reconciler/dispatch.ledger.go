package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tamosreddi/orders-sub001/pkg/logger"
	"github.com/tamosreddi/orders-sub001/pkg/redis"
)

var (
	ErrAlreadyDispatched = errors.New("message already dispatched")
	ErrLockHeld          = errors.New("dispatch lock held by another consumer")
	ErrAttemptsExhausted = errors.New("dispatch attempts exhausted")
)

// Everything the ledger writes lives under ai: so dispatch state is
// easy to inspect and flush as a group.
const (
	lockKeyPrefix     = "ai:lock:"
	attemptsKeyPrefix = "ai:attempts:"
	doneKeyPrefix     = "ai:done:"
)

type LedgerConfig struct {
	// LockTTL bounds how long a crashed consumer can hold a message.
	LockTTL time.Duration

	// DoneTTL is how long an accepted handover stays remembered. The
	// marker only has to outlive the gap between acceptance and the
	// annotation write-back flipping ai_processed.
	DoneTTL time.Duration

	// MaxAttempts caps dispatches per message within one DoneTTL window.
	MaxAttempts int
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		LockTTL:     30 * time.Second,
		DoneTTL:     24 * time.Hour,
		MaxAttempts: 3,
	}
}

// DispatchLedger keeps the repair loop honest across consumers and
// restarts. ai_processed in Postgres only flips once the AI service
// writes annotations back, so the ledger records the intermediate
// truth: which messages were already handed over, which are mid-flight
// and which burned through their attempt budget.
type DispatchLedger struct {
	redis  redis.RedisAdapter
	config LedgerConfig
}

func NewDispatchLedger(redisAdapter redis.RedisAdapter, config LedgerConfig) *DispatchLedger {
	return &DispatchLedger{
		redis:  redisAdapter,
		config: config,
	}
}

// DispatchAttempt is the per-message handle Begin returns. It carries
// the attempt count so callers can log retries, and tracks the lock so
// Release stays idempotent.
type DispatchAttempt struct {
	MessageID string
	Attempt   int
	IsRetry   bool
	lockHeld  bool
}

// Begin claims a message for one dispatch attempt. It refuses messages
// whose handover was already accepted, messages out of attempts, and
// messages another consumer is working on right now.
func (l *DispatchLedger) Begin(ctx context.Context, messageID string) (*DispatchAttempt, error) {
	// 1. Already handed over within the DoneTTL window?
	exists, err := l.redis.Exist(doneKeyPrefix + messageID)
	if err != nil {
		// A flaky marker read must not stall the repair loop; worst
		// case the AI service sees the message twice.
		logger.Warn("could not check dispatch marker", "message_id", messageID, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadyDispatched
	}

	// 2. How many attempts so far?
	attempts, err := l.Attempts(ctx, messageID)
	if err != nil {
		logger.Warn("could not read attempt counter", "message_id", messageID, "error", err)
		attempts = 0
	}

	// 3. Budget check.
	if attempts >= l.config.MaxAttempts {
		return nil, fmt.Errorf("%w: message_id=%s attempts=%d", ErrAttemptsExhausted, messageID, attempts)
	}

	// 4. Short lock so concurrent consumers never double-dispatch.
	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := l.redis.SetNX(lockKeyPrefix+messageID, lockValue, l.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockHeld, err)
	}
	if !acquired {
		return nil, ErrLockHeld
	}

	return &DispatchAttempt{
		MessageID: messageID,
		Attempt:   attempts,
		IsRetry:   attempts > 0,
		lockHeld:  true,
	}, nil
}

// MarkSuccess records the handover and clears the working keys. The
// done marker is what keeps rescans quiet until the annotation lands.
func (l *DispatchLedger) MarkSuccess(ctx context.Context, attempt *DispatchAttempt) error {
	messageID := attempt.MessageID

	if err := l.redis.Set(doneKeyPrefix+messageID, []byte("1"), l.config.DoneTTL); err != nil {
		return fmt.Errorf("mark dispatched: %w", err)
	}

	if err := l.redis.Del(lockKeyPrefix + messageID); err != nil {
		logger.Warn("could not clear dispatch lock", "message_id", messageID, "error", err)
	}
	if err := l.redis.Del(attemptsKeyPrefix + messageID); err != nil {
		logger.Warn("could not clear attempt counter", "message_id", messageID, "error", err)
	}
	attempt.lockHeld = false

	return nil
}

// MarkFailure burns one attempt and frees the lock so a later pass can
// try again.
func (l *DispatchLedger) MarkFailure(ctx context.Context, attempt *DispatchAttempt, reason error) error {
	messageID := attempt.MessageID
	next := attempt.Attempt + 1

	if err := l.redis.Set(attemptsKeyPrefix+messageID, []byte(strconv.Itoa(next)), l.config.DoneTTL); err != nil {
		logger.Error("could not persist attempt counter", "message_id", messageID, "error", err)
	}

	if err := l.redis.Del(lockKeyPrefix + messageID); err != nil {
		logger.Warn("could not clear dispatch lock", "message_id", messageID, "error", err)
	}
	attempt.lockHeld = false

	logger.Warn("dispatch attempt failed",
		"message_id", messageID,
		"attempt", next,
		"max_attempts", l.config.MaxAttempts,
		"reason", reason)

	return nil
}

// Release frees the lock without touching the attempt counter. Used on
// paths that neither succeeded nor failed, like finding the annotation
// already applied.
func (l *DispatchLedger) Release(ctx context.Context, attempt *DispatchAttempt) error {
	if attempt == nil || !attempt.lockHeld {
		return nil
	}

	if err := l.redis.Del(lockKeyPrefix + attempt.MessageID); err != nil {
		logger.Warn("could not release dispatch lock", "message_id", attempt.MessageID, "error", err)
		return err
	}

	attempt.lockHeld = false
	return nil
}

func (l *DispatchLedger) Attempts(ctx context.Context, messageID string) (int, error) {
	raw, err := l.redis.Get(attemptsKeyPrefix + messageID)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// IsDispatched reports whether a handover was accepted recently enough
// that its done marker is still alive.
func (l *DispatchLedger) IsDispatched(ctx context.Context, messageID string) (bool, error) {
	exists, err := l.redis.Exist(doneKeyPrefix + messageID)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
