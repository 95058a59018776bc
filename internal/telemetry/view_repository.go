package telemetry

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mokanichokani/ledger-service/internal/logger"
	"github.com/mokanichokani/ledger-service/internal/redis"
)

const (
	activityViewKeyPrefix = "account:activity:"
	processedKeyPrefix    = "processed:"
)

// AccountActivity is the per-account read view the recorder maintains in
// Redis: a rolling digest of how busy an account is and how its last
// settlement ended. Derived from the event stream, recomputable by replay.
type AccountActivity struct {
	AccountNumber     string          `json:"accountNumber"`
	TransactionCount  int             `json:"transactionCount"`
	CompletedCount    int             `json:"completedCount"`
	FailedCount       int             `json:"failedCount"`
	LastTransactionID string          `json:"lastTransactionId"`
	LastType          string          `json:"lastType"`
	LastStatus        string          `json:"lastStatus"`
	LastAmount        decimal.Decimal `json:"lastAmount"`
	UpdatedAt         time.Time       `json:"updatedTimestamp"`
}

// ActivityRepository stores the recorder's derived views in Redis: activity
// digests per account plus the processed-event index that makes replayed
// deliveries harmless.
type ActivityRepository struct {
	redis *goredis.Client
	cache *redis.ViewCache[AccountActivity]
	log   *logger.Logger
}

func NewActivityRepository(client *goredis.Client, log *logger.Logger) *ActivityRepository {
	if log == nil {
		log = logger.NewNop()
	}
	return &ActivityRepository{
		redis: client,
		cache: redis.NewViewCache[AccountActivity](client, 0, log),
		log:   log,
	}
}

// GetActivity returns the stored activity view for an account, or false if
// none exists yet.
func (r *ActivityRepository) GetActivity(ctx context.Context, accountNumber string) (*AccountActivity, bool) {
	return r.cache.Get(ctx, activityViewKeyPrefix+accountNumber)
}

// SaveActivity stores or refreshes an account's activity view.
func (r *ActivityRepository) SaveActivity(ctx context.Context, activity *AccountActivity) {
	r.cache.Set(ctx, activityViewKeyPrefix+activity.AccountNumber, activity)
}

// IsEventProcessed returns true if an event with this ID has already been
// applied under the given namespace. Guards against duplicate delivery under
// at-least-once Redis Streams semantics. Namespaces keep event kinds apart:
// a failed transfer can raise both a settlement and a violation for the same
// transaction ID.
func (r *ActivityRepository) IsEventProcessed(ctx context.Context, namespace, eventID string) bool {
	val, err := r.redis.Exists(ctx, processedKeyPrefix+namespace+":"+eventID).Result()
	return err == nil && val > 0
}

// MarkEventProcessed records that an event has been applied. The key expires
// after 72 hours, long enough to cover any realistic redelivery window from
// a consumer group.
func (r *ActivityRepository) MarkEventProcessed(ctx context.Context, namespace, eventID string) {
	key := processedKeyPrefix + namespace + ":" + eventID
	if err := r.redis.Set(ctx, key, "1", 72*time.Hour).Err(); err != nil {
		r.log.Warn("failed to mark event processed", "key", key, "error", err)
	}
}
