package protocol

// Kind tells the framework whether a protocol carries a correlation tag.
type Kind int

const (
	KindDefault Kind = iota
	KindRoundtrip
)

func (k Kind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindRoundtrip:
		return "roundtrip"
	default:
		return "unknown"
	}
}
