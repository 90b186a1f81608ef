package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NamespaceDevices seeds deterministic device UDNs.
var NamespaceDevices = uuid.MustParse("6ba7b814-9dad-11d1-80b4-00c04fd430c8")

// IsValidUUID checks if a string is a valid UUID.
func IsValidUUID(uuidStr string) bool {
	_, err := uuid.Parse(uuidStr)
	return err == nil
}

// DeviceUDN formats a device UDN from a configured uuid. Values that are not
// UUIDs are hashed into one so the same name always yields the same UDN.
func DeviceUDN(id string) string {
	id = strings.TrimPrefix(id, "uuid:")
	if !IsValidUUID(id) {
		id = uuid.NewSHA1(NamespaceDevices, []byte(id)).String()
	}
	return "uuid:" + id
}
