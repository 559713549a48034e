package spirv

import "fmt"

// Version represents a SPIR-V version.
type Version struct {
	Major uint8
	Minor uint8
}

// Common SPIR-V versions
var (
	Version1_0 = Version{1, 0}
	Version1_3 = Version{1, 3}
	Version1_4 = Version{1, 4}
	Version1_5 = Version{1, 5}
	Version1_6 = Version{1, 6}
)

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// DefaultMaxID is the largest result id a module may allocate. It is the
// minimum id bound every SPIR-V consumer must accept.
const DefaultMaxID = 0x3FFFFF

// Options configures SPIR-V generation.
type Options struct {
	// Version is the SPIR-V version to target
	Version Version

	// Capabilities are additional capabilities to declare
	Capabilities []Capability

	// Debug emits OpName and OpMemberName for declarations
	Debug bool

	// MaxID bounds id allocation. Zero means DefaultMaxID.
	MaxID uint32
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		Version: Version1_3,
		Debug:   true,
		MaxID:   DefaultMaxID,
	}
}

// SPIR-V magic number and constants
const (
	MagicNumber = 0x07230203
	GeneratorID = 0x00000000 // Unregistered generator
)

// Value is the result of one instruction.
type Value struct {
	ID     uint32
	TypeID uint32
	Name   string
}

// EmissionError reports a module that cannot be encoded.
type EmissionError struct {
	Message string
}

func (e *EmissionError) Error() string {
	return "spirv: " + e.Message
}

func emissionErrorf(format string, args ...any) *EmissionError {
	return &EmissionError{Message: fmt.Sprintf(format, args...)}
}
