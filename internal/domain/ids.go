package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newID returns a sortable, human readable identifier like MV-20240102150405-1a2b3c4d
func newID(prefix string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102150405"), uuid.New().String()[:8])
}

// NewTransferID returns an id shared by the two legs of a transfer
func NewTransferID() string {
	return newID("TR")
}
