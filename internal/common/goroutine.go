package common

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/ternarybob/arbor"
)

// SafeGo starts fn in a goroutine. A panic is logged under name and the
// process keeps running.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover must be deferred directly; recover() only works one frame deep.
func Recover(logger arbor.ILogger, name string) {
	r := recover()
	if r == nil {
		return
	}

	stack := string(debug.Stack())
	if logger == nil {
		fmt.Fprintf(os.Stderr, "panic in %s: %v\n%s\n", name, r, stack)
		return
	}
	logger.Error().
		Str("goroutine", name).
		Str("panic", fmt.Sprint(r)).
		Str("stack", stack).
		Msg("Recovered from panic")
}
