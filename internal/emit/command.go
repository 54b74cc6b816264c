package emit

import (
	"fmt"
	"strings"

	"github.com/cuenv/cuenv/internal/ir"
)

// BuildCommand renders a task's argv into a single shell line, wrapping it
// in the task's runtime bootstrap when one is attached. A task with
// Shell: true and a single-element argv is emitted as that element
// verbatim; any other argv is joined with maybeShellQuote, which quotes
// only tokens containing shell-special characters.
func BuildCommand(task ir.Task, doc *ir.IR) (string, error) {
	if len(task.Command) == 0 {
		// A matrix aggregation task has no command of its own: render a
		// portable no-op so the emitted step still has something to run.
		return "true", nil
	}

	inner := joinArgv(task)

	if task.Runtime == "" {
		return inner, nil
	}

	rt, ok := doc.RuntimeByID(task.Runtime)
	if !ok {
		return "", fmt.Errorf("task %q references unknown runtime %q", task.ID, task.Runtime)
	}

	return fmt.Sprintf(
		"nix develop %s#%s --command %s",
		rt.Flake, rt.Output, wrapShellC(inner),
	), nil
}

func joinArgv(task ir.Task) string {
	if task.Shell && len(task.Command) == 1 {
		return task.Command[0]
	}
	parts := make([]string, len(task.Command))
	for i, a := range task.Command {
		parts[i] = maybeShellQuote(a)
	}
	return strings.Join(parts, " ")
}

// wrapShellC wraps an already-built command line in `/bin/sh -c '...'` so a
// multi-token inner command survives being passed as one argument to
// `nix develop --command`.
func wrapShellC(inner string) string {
	return fmt.Sprintf("/bin/sh -c %s", shellQuote(inner))
}

// shellQuote wraps s in single quotes, escaping any embedded single quote
// the POSIX-shell way: close the quote, emit an escaped quote, reopen.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// shellSpecial is the set of characters that force an argv token to be
// quoted; a token built only from ordinary path/flag characters is left
// bare so emitted commands stay readable.
const shellSpecial = " \t\n'\"$`\\|&;<>()[]{}*?#~!"

func maybeShellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, shellSpecial) {
		return s
	}
	return shellQuote(s)
}

// NixBootstrapPreamble is a shell snippet that installs Nix so a
// `nix develop` invocation can run. No emitter in this package adds it to
// a job: BuildCommand wraps runtime-bound tasks in `nix develop` only.
const NixBootstrapPreamble = `curl -L https://nixos.org/nix/install | sh -s -- --daemon
. /etc/profile.d/nix.sh`

// HasRuntime reports whether any task in tasks references a runtime. No
// emitter in this package calls it.
func HasRuntime(tasks []ir.Task) bool {
	for _, t := range tasks {
		if t.Runtime != "" {
			return true
		}
	}
	return false
}
