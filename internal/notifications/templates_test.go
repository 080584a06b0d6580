package notifications

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	parsed, err := ParseType("task_assigned")
	require.NoError(t, err)
	require.Equal(t, TypeTaskAssigned, parsed)

	_, err = ParseType("reminder")
	require.Error(t, err)

	_, err = ParseType("")
	require.Error(t, err)
}

func TestRenderTitles(t *testing.T) {
	cases := []struct {
		name  string
		input TemplateInput
		title string
		body  string
	}{
		{
			name:  "task assigned",
			input: TaskAssigned{Actor: "Alice", TaskTitle: "Write docs"},
			title: "Alice assigned you a task",
			body:  "Write docs",
		},
		{
			name:  "task completed",
			input: TaskCompleted{Actor: "Bob", TaskTitle: "Deploy"},
			title: "Bob completed a task",
			body:  "Deploy",
		},
		{
			name:  "workspace invite",
			input: WorkspaceInvite{Actor: "Carol", Workspace: "Acme"},
			title: "You were invited to Acme",
			body:  "Carol invited you to join",
		},
		{
			name:  "member joined",
			input: MemberJoined{Member: "Dana", Workspace: "Acme"},
			title: "Dana joined Acme",
		},
		{
			name:  "new message",
			input: NewMessage{Actor: "Eve", Preview: "lunch?"},
			title: "Eve sent a new message",
			body:  "lunch?",
		},
		{
			name:  "project created",
			input: ProjectCreated{Actor: "Frank", Project: "Atlas"},
			title: "Frank created project Atlas",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			title, body := Render(tc.input)
			require.Equal(t, tc.title, title)
			require.Equal(t, tc.body, body)
		})
	}
}

func TestRenderFallbacks(t *testing.T) {
	title, _ := Render(TaskAssigned{})
	require.Equal(t, "Someone assigned you a task", title)

	title, _ = Render(WorkspaceInvite{})
	require.Equal(t, "You were invited to a workspace", title)

	title, _ = Render(ProjectCreated{})
	require.Equal(t, "Someone created project a project", title)
}

func TestRenderIsDeterministic(t *testing.T) {
	input := NewMessage{Actor: "Grace", Thread: "general", Preview: "hi"}
	first, _ := Render(input)
	second, _ := Render(input)
	require.Equal(t, first, second)
}

func TestDecodeMeta(t *testing.T) {
	input, err := DecodeMeta(TypeTaskAssigned, map[string]any{
		"actor_name": "Alice",
		"task_title": "Write docs",
		"extra":      42,
	})
	require.NoError(t, err)
	require.Equal(t, TaskAssigned{Actor: "Alice", TaskTitle: "Write docs"}, input)

	input, err = DecodeMeta(TypeMemberJoined, map[string]any{"actor_name": "Dana"})
	require.NoError(t, err)
	require.Equal(t, MemberJoined{Member: "Dana"}, input)

	// Non-string values degrade to the neutral fallback instead of failing.
	input, err = DecodeMeta(TypeNewMessage, map[string]any{"preview": 7})
	require.NoError(t, err)
	require.Equal(t, NewMessage{}, input)

	_, err = DecodeMeta(Type("bogus"), nil)
	require.Error(t, err)
}
