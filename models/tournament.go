package models

import "time"

// ValidImageCounts are the accepted tournament sizes. Non-powers-of-two
// (6) are allowed for historical reasons; the engine has no bye rule for
// the odd intermediate round they produce.
var ValidImageCounts = []int{2, 4, 6, 8, 16, 32, 64, 128, 256}

// Tournament is an immutable image set created once by the upload flow.
// Rooms reference it by ID; the images themselves live on the object store
// and are referenced by public URL only.
type Tournament struct {
	ID          string      `json:"id" db:"id"`
	Title       string      `json:"title" db:"title"`
	Description *string     `json:"description,omitempty" db:"description"`
	CreatorID   string      `json:"creator_id" db:"creator_id"`
	Images      []ImageItem `json:"images" db:"-"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// ValidImageCount reports whether n is an accepted tournament size.
func ValidImageCount(n int) bool {
	for _, v := range ValidImageCounts {
		if v == n {
			return true
		}
	}
	return false
}
