package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogKeepsRecent(t *testing.T) {
	l := NewLog(2)
	l.Push(Diagnostic{Code: "A"})
	l.Push(Diagnostic{Code: "B"})
	l.Push(Diagnostic{Code: "C"})

	got := l.Recent()
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Code)
	assert.Equal(t, "C", got[1].Code)
	assert.False(t, got[1].Time.IsZero())
}

func TestListenAndCancel(t *testing.T) {
	l := NewLog(0)
	var seen []string
	cancel := l.Listen(func(d Diagnostic) { seen = append(seen, d.Code) })
	l.Push(Diagnostic{Severity: Info, Code: TestDone})
	cancel()
	l.Push(Diagnostic{Severity: Warn, Code: SerialStreamEnded})
	assert.Equal(t, []string{TestDone}, seen)
}
