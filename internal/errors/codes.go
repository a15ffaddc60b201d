package errors

// Error codes for the stackprot toolchain
// These codes are used in diagnostics so that problems in textual IR input
// and configuration can be identified consistently.
//
// Error code ranges:
// E0100-E0199: Textual IR syntax errors
// E0200-E0299: IR construction errors
// E0300-E0399: Configuration errors
// W0800-W0899: Warning codes

const (
	// E0100: The textual IR could not be parsed
	ErrorSyntax = "E0100"

	// E0201: A %value is used but never defined in the function
	ErrorUndefinedValue = "E0201"

	// E0202: A %value is defined twice in the same function
	ErrorDuplicateValue = "E0202"

	// E0203: An @symbol does not name a function or global of the module
	ErrorUndefinedSymbol = "E0203"

	// E0204: A branch target does not name a block of the function
	ErrorUndefinedBlock = "E0204"

	// E0205: The opcode is not part of the instruction set
	ErrorUnknownOpcode = "E0205"

	// E0206: Wrong number or kind of operands
	ErrorInvalidOperands = "E0206"

	// E0207: A block does not end with a terminator, or a terminator is
	// followed by more instructions
	ErrorMissingTerminator = "E0207"

	// E0208: Duplicate function, global or block
	ErrorDuplicateDeclaration = "E0208"

	// E0209: An instruction requires an address operand
	ErrorExpectedAddress = "E0209"

	// E0301: The configuration file is invalid
	ErrorInvalidConfig = "E0301"

	// W0801: A flag on an instruction has no meaning for its opcode
	WarningUnknownFlag = "W0801"
)
