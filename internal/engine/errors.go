package engine

import "errors"

// Sentinel errors returned by Repository implementations. The dispatcher
// branches on these by value (errors.Is), never by message matching.
var (
	ErrListNotFound     = errors.New("list not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrCategoryNotFound = errors.New("memory category not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrEventNotFound    = errors.New("event not found")
)
