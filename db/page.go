package db

import "math"

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// keeps Offset within int range
	maxPageNumber = math.MaxInt / maxPageSize
)

// Page selects one slice of an ordered listing. Numbers start at 1.
type Page struct {
	Number int
	Size   int
}

// Normalize fills defaults and clamps the page number and size.
func (p Page) Normalize() Page {
	if p.Number <= 0 {
		p.Number = 1
	}
	if p.Number > maxPageNumber {
		p.Number = maxPageNumber
	}
	if p.Size <= 0 || p.Size > maxPageSize {
		p.Size = defaultPageSize
	}
	return p
}

// Offset is the number of rows to skip.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}
