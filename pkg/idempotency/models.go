package idempotency

import "time"

// Record is a stored Idempotency-Key and, once the request finished, its response
type Record struct {
	ID                 string `bson:"_id"` // serviceID:method:path:key
	Key                string `bson:"key"`
	ServiceID          string `bson:"serviceId"`
	RequestPath        string `bson:"requestPath"`
	RequestMethod      string `bson:"requestMethod"`
	RequestFingerprint string `bson:"requestFingerprint"`

	LockedAt  *time.Time `bson:"lockedAt,omitempty"`
	LockToken string     `bson:"lockToken,omitempty"`

	ResponseCode    int               `bson:"responseCode,omitempty"`
	ResponseBody    []byte            `bson:"responseBody,omitempty"`
	ResponseHeaders map[string]string `bson:"responseHeaders,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	ExpiresAt   time.Time  `bson:"expiresAt"`
}

// RecordID builds the storage id. Keys are scoped to one endpoint so the same
// client key reused on another route is a different request.
func RecordID(serviceID, method, path, key string) string {
	return serviceID + ":" + method + ":" + path + ":" + key
}

// IsCompleted reports whether a response has been stored
func (r *Record) IsCompleted() bool {
	return r.CompletedAt != nil
}

// IsLocked reports whether a request is in flight
func (r *Record) IsLocked() bool {
	return r.LockedAt != nil && r.CompletedAt == nil
}

func (r *Record) clone() *Record {
	cp := *r
	if r.ResponseBody != nil {
		cp.ResponseBody = append([]byte(nil), r.ResponseBody...)
	}
	if r.ResponseHeaders != nil {
		cp.ResponseHeaders = make(map[string]string, len(r.ResponseHeaders))
		for k, v := range r.ResponseHeaders {
			cp.ResponseHeaders[k] = v
		}
	}
	return &cp
}
