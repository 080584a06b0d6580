// Package notifications defines the closed set of notification event kinds and
// the rendering of their user-facing titles and bodies.
package notifications

import (
	"fmt"
)

// Type identifies a notification event kind. The set is closed; unknown values
// are rejected at the API boundary.
type Type string

const (
	TypeTaskAssigned    Type = "task_assigned"
	TypeTaskCompleted   Type = "task_completed"
	TypeWorkspaceInvite Type = "workspace_invite"
	TypeMemberJoined    Type = "member_joined"
	TypeNewMessage      Type = "new_message"
	TypeProjectCreated  Type = "project_created"
)

var knownTypes = map[Type]struct{}{
	TypeTaskAssigned:    {},
	TypeTaskCompleted:   {},
	TypeWorkspaceInvite: {},
	TypeMemberJoined:    {},
	TypeNewMessage:      {},
	TypeProjectCreated:  {},
}

// ParseType validates that the supplied string names a known notification type.
func ParseType(value string) (Type, error) {
	t := Type(value)
	if _, ok := knownTypes[t]; !ok {
		return "", fmt.Errorf("notifications: unknown type %q", value)
	}
	return t, nil
}

// TemplateInput is the sealed set of per-type template payloads. Each
// notification type has exactly one variant carrying the fields its title and
// body interpolate.
type TemplateInput interface {
	templateType() Type
}

// TaskAssigned renders "Actor assigned you a task".
type TaskAssigned struct {
	Actor     string
	TaskTitle string
}

// TaskCompleted renders a completion notice for the task creator.
type TaskCompleted struct {
	Actor     string
	TaskTitle string
}

// WorkspaceInvite renders an invitation to join a workspace.
type WorkspaceInvite struct {
	Actor     string
	Workspace string
}

// MemberJoined announces a new workspace member to existing members.
type MemberJoined struct {
	Member    string
	Workspace string
}

// NewMessage announces a thread post to its participants.
type NewMessage struct {
	Actor   string
	Thread  string
	Preview string
}

// ProjectCreated announces a new project to workspace members.
type ProjectCreated struct {
	Actor   string
	Project string
}

func (TaskAssigned) templateType() Type    { return TypeTaskAssigned }
func (TaskCompleted) templateType() Type   { return TypeTaskCompleted }
func (WorkspaceInvite) templateType() Type { return TypeWorkspaceInvite }
func (MemberJoined) templateType() Type    { return TypeMemberJoined }
func (NewMessage) templateType() Type      { return TypeNewMessage }
func (ProjectCreated) templateType() Type  { return TypeProjectCreated }

// Render produces the title and body for a template input. The title is a pure
// function of (type, input); dedup compares rendered titles verbatim, so two
// logically identical events always render to the same string.
func Render(input TemplateInput) (title, body string) {
	switch in := input.(type) {
	case TaskAssigned:
		return fmt.Sprintf("%s assigned you a task", orSomeone(in.Actor)),
			in.TaskTitle
	case TaskCompleted:
		return fmt.Sprintf("%s completed a task", orSomeone(in.Actor)),
			in.TaskTitle
	case WorkspaceInvite:
		return fmt.Sprintf("You were invited to %s", orFallback(in.Workspace, "a workspace")),
			fmt.Sprintf("%s invited you to join", orSomeone(in.Actor))
	case MemberJoined:
		return fmt.Sprintf("%s joined %s", orSomeone(in.Member), orFallback(in.Workspace, "your workspace")),
			""
	case NewMessage:
		return fmt.Sprintf("%s sent a new message", orSomeone(in.Actor)),
			in.Preview
	case ProjectCreated:
		return fmt.Sprintf("%s created project %s", orSomeone(in.Actor), orFallback(in.Project, "a project")),
			""
	default:
		return "", ""
	}
}

// DecodeMeta converts the wire-level metadata bag into the typed template
// variant for the given notification type. Missing fields degrade to neutral
// fallbacks; unknown keys are ignored.
func DecodeMeta(t Type, meta map[string]any) (TemplateInput, error) {
	get := func(keys ...string) string {
		for _, key := range keys {
			if v, ok := meta[key]; ok {
				if s, ok := v.(string); ok {
					return s
				}
			}
		}
		return ""
	}

	switch t {
	case TypeTaskAssigned:
		return TaskAssigned{Actor: get("actor_name"), TaskTitle: get("task_title")}, nil
	case TypeTaskCompleted:
		return TaskCompleted{Actor: get("actor_name"), TaskTitle: get("task_title")}, nil
	case TypeWorkspaceInvite:
		return WorkspaceInvite{Actor: get("actor_name"), Workspace: get("workspace_name")}, nil
	case TypeMemberJoined:
		return MemberJoined{Member: get("member_name", "actor_name"), Workspace: get("workspace_name")}, nil
	case TypeNewMessage:
		return NewMessage{Actor: get("actor_name"), Thread: get("thread_title"), Preview: get("preview")}, nil
	case TypeProjectCreated:
		return ProjectCreated{Actor: get("actor_name"), Project: get("project_name")}, nil
	default:
		return nil, fmt.Errorf("notifications: unknown type %q", t)
	}
}

func orSomeone(name string) string {
	return orFallback(name, "Someone")
}

func orFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
