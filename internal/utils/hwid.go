package utils

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

// HWID identifies this device to the distribution server.
// Falls back to a random id when the platform id can't be read.
var HWID = deviceID()

func deviceID() string {
	id, err := machineid.ProtectedID("bundlesync")
	if err != nil || id == "" {
		return uuid.NewString()
	}
	return id
}
