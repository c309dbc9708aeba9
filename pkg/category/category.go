// Package category defines the code sets that open and close intervals for
// each kind of activity (driving, resting, waiting).
package category

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalid is returned when a category definition cannot be used.
var ErrInvalid = errors.New("invalid category")

// Default category names.
const (
	Driving = "driving"
	Resting = "resting"
	Waiting = "waiting"
)

// Category is a read-only description of which event codes start an
// interval and which ones stop it.
type Category struct {
	Name  string
	Label string
	start []int
	stop  []int
	// stopComplement makes every non-start code a stop code.
	stopComplement bool
}

// New builds a category whose stop codes are every code that is not a start code.
func New(name, label string, start ...int) (Category, error) {
	c := Category{
		Name:           name,
		Label:          label,
		start:          sortedUnique(start),
		stopComplement: true,
	}
	return c, c.Validate()
}

// NewExplicit builds a category with an explicit stop code set. Codes in
// neither set are ignored while an interval is open.
func NewExplicit(name, label string, start, stop []int) (Category, error) {
	c := Category{
		Name:  name,
		Label: label,
		start: sortedUnique(start),
		stop:  sortedUnique(stop),
	}
	return c, c.Validate()
}

// MustNew is like New but panics on invalid input. Intended for package-level defaults.
func MustNew(name, label string, start ...int) Category {
	c, err := New(name, label, start...)
	if err != nil {
		panic(err)
	}
	return c
}

// Defaults returns the driving, resting and waiting categories.
func Defaults() []Category {
	return []Category{
		MustNew(Driving, "Driving Hours", 1, 6),
		MustNew(Resting, "Rest Hours", 2, 7),
		MustNew(Waiting, "Waiting Hours", 3),
	}
}

// Validate checks that the category has a name, at least one start code and
// that no code is both a start and a stop.
func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if len(c.start) == 0 {
		return fmt.Errorf("%w: %s has no start codes", ErrInvalid, c.Name)
	}
	if c.stopComplement {
		return nil
	}
	if len(c.stop) == 0 {
		return fmt.Errorf("%w: %s has no stop codes", ErrInvalid, c.Name)
	}
	for _, code := range c.stop {
		if c.IsStart(code) {
			return fmt.Errorf("%w: %s uses code %d as both start and stop", ErrInvalid, c.Name, code)
		}
	}
	return nil
}

// IsStart reports whether code opens an interval.
func (c Category) IsStart(code int) bool {
	_, found := slices.BinarySearch(c.start, code)
	return found
}

// IsStop reports whether code closes an interval.
func (c Category) IsStop(code int) bool {
	if c.IsStart(code) {
		return false
	}
	if c.stopComplement {
		return true
	}
	_, found := slices.BinarySearch(c.stop, code)
	return found
}

// StartCodes returns a copy of the start codes in ascending order.
func (c Category) StartCodes() []int {
	return slices.Clone(c.start)
}

// StopCodes returns a copy of the explicit stop codes, or nil when every
// non-start code stops an interval.
func (c Category) StopCodes() []int {
	if c.stopComplement {
		return nil
	}
	return slices.Clone(c.stop)
}

// StopComplement reports whether every non-start code closes an interval.
func (c Category) StopComplement() bool {
	return c.stopComplement
}

// DisplayName returns the label, falling back to the name.
func (c Category) DisplayName() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

func sortedUnique(codes []int) []int {
	out := slices.Clone(codes)
	slices.Sort(out)
	return slices.Compact(out)
}
