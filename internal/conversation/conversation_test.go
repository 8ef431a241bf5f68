package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndMessages(t *testing.T) {
	th := NewThread("t1")
	th.Append(Message{Role: RoleSystem, Content: "you are an orchestrator"})
	th.Append(Message{Role: RoleUser, Content: "start"})
	require.Equal(t, 2, th.Len())
	require.Equal(t, RoleUser, th.Messages()[1].Role)
}

func TestMessagesReturnsCopyNotAlias(t *testing.T) {
	th := NewThread("t1")
	th.Append(Message{Role: RoleUser, Content: "hello"})
	msgs := th.Messages()
	msgs[0].Content = "mutated"
	require.Equal(t, "hello", th.Messages()[0].Content)
}

func TestTrimNeverDropsSystemOrLastMessage(t *testing.T) {
	th := NewThread("t1")
	th.Append(Message{Role: RoleSystem, Content: strings.Repeat("sys ", 200)})
	for i := 0; i < 10; i++ {
		th.Append(Message{Role: RoleUser, Content: strings.Repeat("filler ", 200)})
	}
	th.Append(Message{Role: RoleTool, Content: "final tool response", ToolCallID: "abc"})

	th.Trim(50)

	msgs := th.Messages()
	require.Equal(t, RoleSystem, msgs[0].Role)
	require.Equal(t, RoleTool, msgs[len(msgs)-1].Role)
	require.Equal(t, "final tool response", msgs[len(msgs)-1].Content)
}

func TestTrimNoopUnderBudget(t *testing.T) {
	th := NewThread("t1")
	th.Append(Message{Role: RoleUser, Content: "short"})
	th.Trim(10000)
	require.Equal(t, 1, th.Len())
}

func TestSnapshotThreadCapturesID(t *testing.T) {
	th := NewThread("abc")
	th.Append(Message{Role: RoleUser, Content: "hi"})
	snap := th.SnapshotThread()
	require.Equal(t, "abc", snap.ThreadID)
	require.Len(t, snap.Messages, 1)
}
