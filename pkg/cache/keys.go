package cache

import "fmt"

// DeviceListKey is the collection marker invalidated on every device mutation.
const DeviceListKey = "devices:all"

// DeviceKeyPrefix prefixes every single-device cache key.
const DeviceKeyPrefix = "device:"

// DeviceKey builds the cache key for a single device snapshot.
func DeviceKey(id int64) string {
	return fmt.Sprintf("%s%d", DeviceKeyPrefix, id)
}
