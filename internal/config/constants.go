package config

// Builtin method names of the reference runtime.
const (
	ItselfMethodName  = "itself"
	InspectMethodName = "inspect"
	UpcaseMethodName  = "upcase"
	ConcatMethodName  = "concat"
	LengthMethodName  = "length"
	SuccMethodName    = "succ"
	ToSMethodName     = "to_s"
)

// Heap tuning defaults.
const (
	// DefaultGCInterval is the number of allocations between automatic
	// collection passes.
	DefaultGCInterval = 8

	// DefaultInitialCapacity is the starting cell capacity of the heap.
	DefaultInitialCapacity = 64
)
