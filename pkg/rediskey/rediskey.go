package rediskey

import "fmt"

const (
	SeatLockPrefix    = "lock:seats"
	PractitionerCache = "practitioner:names"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSeatLockKey returns "lock:seats:{tenantID}:{subscriptionItemID}", using "*" for the tenant-wide pool.
func BuildSeatLockKey(tenantID, subscriptionItemID string) string {
	if subscriptionItemID == "" {
		subscriptionItemID = "*"
	}
	return NamespaceKey(SeatLockPrefix, fmt.Sprintf("%s:%s", tenantID, subscriptionItemID))
}
