package slot

// Kind identifies one of the two fixed supervised service roles.
type Kind int

const (
	Frontend Kind = iota
	Backend
)

func (k Kind) String() string {
	if k == Backend {
		return "backend"
	}
	return "frontend"
}

// Kinds returns both slots in launch order (frontend first).
func Kinds() []Kind { return []Kind{Frontend, Backend} }
