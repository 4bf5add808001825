package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Add        func(AddArgs) (Result, error)
	Edit       func(EditArgs) (Result, error)
	Remove     func(TargetArgs) (Result, error)
	Done       func(TargetArgs) (Result, error)
	Reschedule func(RescheduleArgs) (Result, error)
	Plan       func(PlanArgs) (Result, error)
	Accept     func() (Result, error)
	Regen      func(RegenArgs) (Result, error)
	Repeat     func(RepeatArgs) (Result, error)
	Expand     func(ExpandArgs) (Result, error)
	Show       func(ShowArgs) (Result, error)
}

func missing(name string) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: name + " handler not configured"}
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeAdd:
		if handlers.Add == nil {
			return Result{}, missing("add")
		}
		return handlers.Add(*cmd.Add)
	case TypeEdit:
		if handlers.Edit == nil {
			return Result{}, missing("edit")
		}
		return handlers.Edit(*cmd.Edit)
	case TypeRemove:
		if handlers.Remove == nil {
			return Result{}, missing("rm")
		}
		return handlers.Remove(*cmd.Remove)
	case TypeDone:
		if handlers.Done == nil {
			return Result{}, missing("done")
		}
		return handlers.Done(*cmd.Done)
	case TypeReschedule:
		if handlers.Reschedule == nil {
			return Result{}, missing("reschedule")
		}
		return handlers.Reschedule(*cmd.Reschedule)
	case TypePlan:
		if handlers.Plan == nil {
			return Result{}, missing("plan")
		}
		return handlers.Plan(*cmd.Plan)
	case TypeAccept:
		if handlers.Accept == nil {
			return Result{}, missing("accept")
		}
		return handlers.Accept()
	case TypeRegen:
		if handlers.Regen == nil {
			return Result{}, missing("regen")
		}
		return handlers.Regen(*cmd.Regen)
	case TypeRepeat:
		if handlers.Repeat == nil {
			return Result{}, missing("repeat")
		}
		return handlers.Repeat(*cmd.Repeat)
	case TypeExpand:
		if handlers.Expand == nil {
			return Result{}, missing("expand")
		}
		return handlers.Expand(*cmd.Expand)
	case TypeShow:
		if handlers.Show == nil {
			return Result{}, missing("show")
		}
		return handlers.Show(*cmd.Show)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}
