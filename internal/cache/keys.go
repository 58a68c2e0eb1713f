package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func BatchProgressKey(batchID uuid.UUID) string {
	return fmt.Sprintf("batch:progress:%s", batchID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
