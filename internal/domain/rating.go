package domain

import "time"

// Rating is the stored aggregate of a title's review scores.
type Rating struct {
	TitleID   int64
	Value     *int
	UpdatedAt time.Time
}
