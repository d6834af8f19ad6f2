package gsequencer

// Direction tells whether a channel carries audio out of a track or into it.
type Direction int

const (
	Output Direction = iota
	Input
)

func (d Direction) Valid() bool { return d == Output || d == Input }

// Opposite returns Input for Output and vice versa.
func (d Direction) Opposite() Direction {
	if d == Output {
		return Input
	}
	return Output
}

func (d Direction) String() string {
	switch d {
	case Output:
		return "output"
	case Input:
		return "input"
	}
	return "invalid"
}
