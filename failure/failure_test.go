package failure

import (
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestKindOf(t *testing.T) {
	c := qt.New(t)

	err := New(Validation, "bad payload: %s", "empty")
	c.Assert(KindOf(err), qt.Equals, Validation)
	c.Assert(err, qt.ErrorMatches, "bad payload: empty")

	wrapped := fmt.Errorf("handler: %w", err)
	c.Assert(KindOf(wrapped), qt.Equals, Validation)
	c.Assert(Is(wrapped, Validation), qt.IsTrue)
	c.Assert(Is(wrapped, Conflict), qt.IsFalse)

	c.Assert(KindOf(errors.New("plain")), qt.Equals, Fatal)
	c.Assert(Is(nil, Fatal), qt.IsFalse)
	c.Assert(Wrap(Transient, nil), qt.IsNil)
}

func TestSentinels(t *testing.T) {
	c := qt.New(t)

	err := fmt.Errorf("double check: %w", ErrAlreadyVoted)
	c.Assert(errors.Is(err, ErrAlreadyVoted), qt.IsTrue)
	c.Assert(KindOf(err), qt.Equals, Conflict)

	inner := errors.New("execution reverted")
	lw := New(LedgerWrite, "cast votes: %w", inner)
	c.Assert(errors.Is(lw, inner), qt.IsTrue)
	c.Assert(KindOf(lw).String(), qt.Equals, "ledger_write")
}
