package remix

// Kind identifies the effect node.
type Kind int

// Effect node kinds.
const (
	Gain Kind = iota + 1
	Delay
	Filter
	Convolver
)

// Insert is the effect placed between gain and output. Only one insert
// can be active at a time.
type Insert int

// Insert slot values.
const (
	None Insert = iota
	DelayInsert
	FilterInsert
	ConvolverInsert
)

func (k Kind) String() string {
	switch k {
	case Gain:
		return "gain"
	case Delay:
		return "delay"
	case Filter:
		return "filter"
	case Convolver:
		return "convolver"
	}
	return "unknown"
}

// Kind returns node kind of the insert. False is returned for None.
func (i Insert) Kind() (Kind, bool) {
	switch i {
	case DelayInsert:
		return Delay, true
	case FilterInsert:
		return Filter, true
	case ConvolverInsert:
		return Convolver, true
	}
	return 0, false
}

func (i Insert) String() string {
	if k, ok := i.Kind(); ok {
		return k.String()
	}
	return "none"
}
