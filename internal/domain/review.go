package domain

import "time"

const (
	MinScore = 1
	MaxScore = 10
)

// Review is a scored opinion of one user about one title.
type Review struct {
	ID       int64
	TitleID  int64
	AuthorID int64
	Author   string
	Text     string
	Score    int
	PubDate  time.Time
}

// Comment belongs to a review and is removed together with it.
type Comment struct {
	ID       int64
	ReviewID int64
	AuthorID int64
	Author   string
	Text     string
	PubDate  time.Time
}

// ValidScore reports whether score lies within [MinScore, MaxScore].
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}
