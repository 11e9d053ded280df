package process

import (
	"errors"
	"os/exec"
	"testing"
)

func TestExitCodeFromError(t *testing.T) {
	if got := exitCodeFromError(nil); got != 0 {
		t.Errorf("nil error = %d, want 0", got)
	}
	if got := exitCodeFromError(errors.New("boom")); got != 1 {
		t.Errorf("generic error = %d, want 1", got)
	}

	err := exec.Command("sh", "-c", "exit 7").Run()
	if got := exitCodeFromError(err); got != 7 {
		t.Errorf("exit 7 = %d, want 7", got)
	}

	err = exec.Command("sh", "-c", "kill -KILL $$").Run()
	if got := exitCodeFromError(err); got != 137 {
		t.Errorf("SIGKILL = %d, want 137", got)
	}
}
