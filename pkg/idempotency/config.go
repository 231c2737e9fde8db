package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

const (
	// HeaderIdempotencyKey is the HTTP header carrying the client key
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderReplayed marks a response served from storage
	HeaderReplayed = "Idempotent-Replayed"

	DefaultMaxKeyLength    = 255
	DefaultLockTimeout     = 30 * time.Second
	DefaultRetentionPeriod = 24 * time.Hour
	DefaultMaxResponseSize = 256 * 1024
)

// ReplayRecorder counts replays (e.g. a metrics sink)
type ReplayRecorder interface {
	RecordIdempotentReplay(path string)
}

// Config holds configuration for the idempotency middleware
type Config struct {
	ServiceName     string
	Repository      KeyRepository
	Logger          *logging.Logger
	Metrics         ReplayRecorder
	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration
	MaxResponseSize int
}

// DefaultConfig returns defaults for serviceName backed by repo
func DefaultConfig(serviceName string, repo KeyRepository, logger *logging.Logger) *Config {
	return &Config{
		ServiceName:     serviceName,
		Repository:      repo,
		Logger:          logger,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
	}
}

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateKey checks key length and alphabet
func ValidateKey(key string, maxLength int) error {
	if len(key) > maxLength {
		return ErrKeyTooLong
	}
	if !keyPattern.MatchString(key) {
		return ErrKeyInvalid
	}
	return nil
}

// ComputeFingerprint hashes the request body so a reused key with a
// different payload can be detected
func ComputeFingerprint(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// NormalizeKey trims surrounding whitespace
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}
