package errors

// Exit codes for the dosa CLI.
const (
	ExitSuccess    = 0
	ExitUsage      = 1
	ExitInputError = 2
	ExitIOError    = 3
)

// ExitCode maps an error to the CLI exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch KindOf(err) {
	case KindNotFound, KindMalformedInput:
		return ExitInputError
	case KindIO:
		return ExitIOError
	default:
		return ExitUsage
	}
}
