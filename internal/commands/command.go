package commands

import (
	"fmt"
	"strings"

	"github.com/sandeepkv93/dayplan/internal/model"
)

type Type string

const (
	TypeAdd        Type = "add"
	TypeEdit       Type = "edit"
	TypeRemove     Type = "rm"
	TypeDone       Type = "done"
	TypeReschedule Type = "reschedule"
	TypePlan       Type = "plan"
	TypeAccept     Type = "accept"
	TypeRegen      Type = "regen"
	TypeRepeat     Type = "repeat"
	TypeExpand     Type = "expand"
	TypeShow       Type = "show"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(format string, args ...any) error {
	return &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

type AddArgs struct {
	Title  string
	Fields TaskFields
}

type EditArgs struct {
	Target string
	Title  string
	Fields TaskFields
}

type TargetArgs struct {
	Target string
}

type RescheduleArgs struct {
	Target string
	Queue  model.QueueKind
}

type PlanArgs struct {
	Date          string
	Group         string
	TransportMode string
	Notes         string
}

type RegenArgs struct {
	Note string
}

type RepeatArgs struct {
	Title    string
	Interval model.Interval
	Fields   TaskFields
}

type ExpandArgs struct {
	Text string
}

type ShowArgs struct {
	Subject string
	Date    string
}

type Command struct {
	Type       Type
	Raw        string
	Add        *AddArgs
	Edit       *EditArgs
	Remove     *TargetArgs
	Done       *TargetArgs
	Reschedule *RescheduleArgs
	Plan       *PlanArgs
	Regen      *RegenArgs
	Repeat     *RepeatArgs
	Expand     *ExpandArgs
	Show       *ShowArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeEdit:
		return parseEdit(input, args)
	case TypeRemove, "delete":
		target, err := parseTarget("rm", args)
		return Command{Type: TypeRemove, Raw: input, Remove: target}, err
	case TypeDone:
		target, err := parseTarget("done", args)
		return Command{Type: TypeDone, Raw: input, Done: target}, err
	case TypeReschedule:
		return parseReschedule(input, args)
	case TypePlan:
		return parsePlan(input, args)
	case TypeAccept:
		return Command{Type: TypeAccept, Raw: input}, nil
	case TypeRegen:
		return Command{Type: TypeRegen, Raw: input, Regen: &RegenArgs{Note: strings.Join(args, " ")}}, nil
	case TypeRepeat:
		return parseRepeat(input, args)
	case TypeExpand:
		return parseExpand(input, args)
	case TypeShow:
		return parseShow(input, args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseAdd(raw string, args []string) (Command, error) {
	words, fields, err := splitOptions(args)
	if err != nil {
		return Command{}, err
	}
	title := strings.TrimSpace(strings.Join(words, " "))
	if title == "" {
		return Command{}, invalid("add requires a title")
	}
	return Command{Type: TypeAdd, Raw: raw, Add: &AddArgs{Title: title, Fields: fields}}, nil
}

func parseEdit(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, invalid("edit requires a task id")
	}
	words, fields, err := splitOptions(args[1:])
	if err != nil {
		return Command{}, err
	}
	title := strings.TrimSpace(strings.Join(words, " "))
	if title == "" && fields.IsZero() {
		return Command{}, invalid("edit requires a new title or at least one option")
	}
	return Command{Type: TypeEdit, Raw: raw, Edit: &EditArgs{Target: args[0], Title: title, Fields: fields}}, nil
}

func parseTarget(name string, args []string) (*TargetArgs, error) {
	if len(args) != 1 {
		return nil, invalid("%s requires exactly one task id", name)
	}
	return &TargetArgs{Target: args[0]}, nil
}

func parseReschedule(raw string, args []string) (Command, error) {
	if len(args) == 0 || len(args) > 2 {
		return Command{}, invalid("reschedule requires a task id and an optional queue")
	}
	queue := model.QueueManual
	if len(args) == 2 {
		switch strings.ToLower(args[1]) {
		case "manual":
		case "auto", "automatic":
			queue = model.QueueAutomatic
		default:
			return Command{}, invalid("unknown queue %q", args[1])
		}
	}
	return Command{Type: TypeReschedule, Raw: raw, Reschedule: &RescheduleArgs{Target: args[0], Queue: queue}}, nil
}

func parsePlan(raw string, args []string) (Command, error) {
	out := &PlanArgs{}
	var notes []string
	for i, arg := range args {
		key, value, ok := option(arg)
		switch {
		case ok && key == "group":
			out.Group = strings.ReplaceAll(value, "_", " ")
		case ok && key == "mode":
			out.TransportMode = strings.ToLower(value)
		case ok && key == "date":
			out.Date = value
		case i == 0 && isDateWord(arg):
			out.Date = arg
		default:
			notes = append(notes, arg)
		}
	}
	out.Notes = strings.Join(notes, " ")
	return Command{Type: TypePlan, Raw: raw, Plan: out}, nil
}

func parseRepeat(raw string, args []string) (Command, error) {
	var rest []string
	var interval model.Interval
	for _, arg := range args {
		if key, value, ok := option(arg); ok && key == "every" {
			iv, err := model.ParseInterval(value)
			if err != nil {
				return Command{}, invalid("%v", err)
			}
			interval = iv
			continue
		}
		rest = append(rest, arg)
	}
	if interval == "" {
		return Command{}, invalid("repeat requires every:<daily|weekly|monthly|yearly>")
	}
	words, fields, err := splitOptions(rest)
	if err != nil {
		return Command{}, err
	}
	title := strings.TrimSpace(strings.Join(words, " "))
	if title == "" {
		return Command{}, invalid("repeat requires a title")
	}
	return Command{Type: TypeRepeat, Raw: raw, Repeat: &RepeatArgs{Title: title, Interval: interval, Fields: fields}}, nil
}

func parseExpand(raw string, args []string) (Command, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return Command{}, invalid("expand requires some text")
	}
	return Command{Type: TypeExpand, Raw: raw, Expand: &ExpandArgs{Text: text}}, nil
}

var showSubjects = map[string]string{
	"today": "today",
	"day":   "today",
	"tasks": "tasks",
	"queue": "queue",
	"plan":  "plan",
}

func parseShow(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, invalid("show requires a subject")
	}
	subject, ok := showSubjects[strings.ToLower(args[0])]
	if !ok {
		return Command{}, invalid("unknown show subject %q", args[0])
	}
	date := ""
	for _, arg := range args[1:] {
		if key, value, ok := option(arg); ok && key == "date" {
			date = value
		} else if isDateWord(arg) {
			date = arg
		}
	}
	return Command{Type: TypeShow, Raw: raw, Show: &ShowArgs{Subject: subject, Date: date}}, nil
}
