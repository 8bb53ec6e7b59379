package philosopher

import "strconv"

// DefaultNames seats the classic table of five.
var DefaultNames = []string{
	"Judith Butler",
	"Gilles Deleuze",
	"Karl Marx",
	"Emma Goldman",
	"Michel Foucault",
}

// Names returns display names for a table of count philosophers.
// Seats beyond the default five are numbered.
func Names(count int) []string {
	if count < 0 {
		count = 0
	}
	names := make([]string, count)
	for i := range names {
		if i < len(DefaultNames) {
			names[i] = DefaultNames[i]
		} else {
			names[i] = "Philosopher " + strconv.Itoa(i+1)
		}
	}
	return names
}

// LeftFork returns the index of the fork on the left of seat i.
func LeftFork(i, count int) int { return i }

// RightFork returns the index of the fork on the right of seat i,
// which is the left fork of the next seat around the table.
func RightFork(i, count int) int { return (i + 1) % count }
