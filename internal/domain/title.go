package domain

import "time"

// Category groups titles by kind of work (film, book, music).
type Category struct {
	ID   int64
	Name string
	Slug string
}

// Genre is reference data linked to titles through genre_title.
type Genre struct {
	ID   int64
	Name string
	Slug string
}

// Title represents a reviewable work in the catalog.
type Title struct {
	ID          int64
	Name        string
	Year        int
	Description *string
	Category    *Category
	Genres      []Genre
	// Rating is derived from the title's reviews and is nil until at least one
	// review exists.
	Rating    *int
	CreatedAt time.Time
}
