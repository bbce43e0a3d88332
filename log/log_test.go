package log

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

var (
	sampleInt      = 3
	sampleBytes    = []byte("123")
	sampleList     = []int64{10, 0, -10}
	sampleDuration = time.Second
	sampleTime     = time.Unix(12345678, 0)

	errSample = errors.New("some error")
)

func doLogs() {
	Infof("recorded %d ballots for election %x", sampleInt, sampleBytes)
	Debugw("acquired ballot lock", "electionId", "abc123", "userId", "user1")
	Errorf("cannot delete ballot lock: %v", errSample)
	Warnw("various types",
		"list", sampleList,
		"duration", sampleDuration,
		"time", sampleTime,
	)
	Error(errSample)
}

func TestCheckInvalidChars(t *testing.T) {
	t.Cleanup(func() { panicOnInvalidChars = false })

	v := []byte{'h', 'e', 'l', 'l', 'o', 0xff, 'w', 'o', 'r', 'l', 'd'}
	panicOnInvalidChars = false
	Init("debug", "stderr", nil)
	Debugf("%s", v)
	// should not panic since env var is false. if it panics, test will fail

	// now enable panic and try again: should recover() and never reach t.Errorf()
	panicOnInvalidChars = true
	Init("debug", "stderr", nil)
	defer func() { recover() }()
	Debugf("%s", v)
	t.Errorf("Debugf(%s) should have panicked because of invalid char", v)
}

func TestLevelFiltering(t *testing.T) {
	c := qt.New(t)
	buf := &bytes.Buffer{}
	logTestWriter = buf
	t.Cleanup(func() { Init(LogLevelError, "stderr", nil) })

	Init(LogLevelWarn, logTestWriterName, nil)
	c.Assert(Level(), qt.Equals, LogLevelWarn)
	Infow("hidden message")
	Warnw("visible message", "electionId", "e1")
	c.Assert(strings.Contains(buf.String(), "hidden message"), qt.IsFalse)
	c.Assert(strings.Contains(buf.String(), "visible message"), qt.IsTrue)
	c.Assert(strings.Contains(buf.String(), "e1"), qt.IsTrue)
}

func TestErrorOutput(t *testing.T) {
	c := qt.New(t)
	logTestWriter = io.Discard
	errBuf := &bytes.Buffer{}
	t.Cleanup(func() { Init(LogLevelError, "stderr", nil) })

	Init(LogLevelDebug, logTestWriterName, errBuf)
	Infow("only on main output")
	Errorw(errSample, "ledger write failed")
	c.Assert(strings.Contains(errBuf.String(), "only on main output"), qt.IsFalse)
	c.Assert(strings.Contains(errBuf.String(), "ledger write failed"), qt.IsTrue)
}

func TestInvalidLevel(t *testing.T) {
	c := qt.New(t)
	t.Cleanup(func() { Init(LogLevelError, "stderr", nil) })
	c.Assert(func() { Init("verbose", "stderr", nil) }, qt.PanicMatches, `invalid log level: "verbose"`)
}

func BenchmarkLogger(b *testing.B) {
	logTestWriter = io.Discard // to not grow a buffer
	Init("debug", logTestWriterName, nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		doLogs()
	}
}
