package debugger

// Source View Context Constants
const (
	// SourceContextLinesBefore is the number of lines to show before PC.
	SourceContextLinesBefore = 5

	// SourceContextLinesAfter is the number of lines to show after PC.
	SourceContextLinesAfter = 10
)

// Memory Display Constants
const (
	// MemoryDisplayRows is the number of bytes per row of the memory hex
	// dump, and the dump length when none is given.
	MemoryDisplayRows = 16
)

// Register Display Constants
const (
	// RegisterGroupSize is the number of registers displayed per row.
	RegisterGroupSize = 4
)
