package repositories

import "errors"

var (
	// ErrNotFound is wrapped by every lookup that finds no row.
	ErrNotFound = errors.New("not found")
	// ErrForeignItem is returned when a reorder names an item of another
	// collection.
	ErrForeignItem = errors.New("item does not belong to the collection")
)
