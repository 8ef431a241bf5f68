package ipc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "mailboxes"))
	require.NoError(t, err)

	doc := Document{
		Header: Header{NextPhase: "debugging", Files: []string{"a.go", "b.go"}, Reason: "build is red"},
		Body:   "please look at the build failure",
	}
	require.NoError(t, m.WriteWrite("qa", doc))

	got, err := m.ReadWrite("qa")
	require.NoError(t, err)
	require.Equal(t, "debugging", got.Header.NextPhase)
	require.Equal(t, []string{"a.go", "b.go"}, got.Header.Files)
	require.Equal(t, "please look at the build failure", got.Body)
}

func TestReadMissingMailboxReturnsEmptyDocument(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "mailboxes"))
	require.NoError(t, err)

	doc, err := m.ReadRead("coding")
	require.NoError(t, err)
	require.Equal(t, Document{}, doc)
}

func TestDistributeAggregatesOtherPhasesWritesExcludingSelf(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "mailboxes"))
	require.NoError(t, err)

	require.NoError(t, m.WriteWrite("qa", Document{
		Header: Header{NextPhase: "debugging"},
		Body:   "tests are failing",
	}))
	require.NoError(t, m.WriteWrite("debugging", Document{
		Body: "investigated the stack trace",
	}))
	// coding never writes anything; its READ mailbox should still
	// aggregate qa and debugging's output, but debugging's own READ
	// mailbox must never include its own WRITE content.
	require.NoError(t, m.Distribute([]string{"coding", "qa", "debugging"}))

	codingRead, err := m.ReadRead("coding")
	require.NoError(t, err)
	require.Contains(t, codingRead.Body, "tests are failing")
	require.Contains(t, codingRead.Body, "investigated the stack trace")
	require.Equal(t, "debugging", codingRead.Header.NextPhase)

	debuggingRead, err := m.ReadRead("debugging")
	require.NoError(t, err)
	require.Contains(t, debuggingRead.Body, "tests are failing")
	require.NotContains(t, debuggingRead.Body, "investigated the stack trace")
}

func TestDistributeSkipsPhasesWithNothingToReport(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "mailboxes"))
	require.NoError(t, err)

	require.NoError(t, m.Distribute([]string{"coding", "qa"}))

	doc, err := m.ReadRead("coding")
	require.NoError(t, err)
	require.Empty(t, doc.Body)
	require.Empty(t, doc.Header.NextPhase)
}
