/*
Package session runs each worker's AI coding agent as a detachable
terminal subprocess: started with its own session id, surviving an
orchestrator restart, and rediscoverable by scanning a runtime
directory of session metadata files. No pty or terminal-multiplexer
library exists anywhere in the reference corpus this orchestrator was
built alongside, so this package is the one place that talks directly
to os/exec and the process table rather than through a third-party
wrapper — see DESIGN.md.

A session is "detached" in the os/exec sense (Setsid, so closing the
orchestrator's own terminal or a SIGHUP to the orchestrator does not
propagate to it), not in the pty sense: there is no virtual terminal
to reattach a new controlling process to. Re-attaching after a restart
is therefore best-effort — liveness and process metadata always
recover from the session directory, but live output capture only
resumes if the new orchestrator process can still read the
subprocess's stdout (Linux: via /proc/<pid>/fd); where it cannot, the
session is re-attached without output capture and nothing marks it as
such.
*/
package session
