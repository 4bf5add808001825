package update

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/sandeepkv93/dayplan/internal/app"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

type View string

const (
	ViewToday    View = "Today"
	ViewTasks    View = "Tasks"
	ViewQueue    View = "Queue"
	ViewProposal View = "Proposal"
)

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Today    string
	Tasks    string
	Queue    string
	Proposal string
	Help     string
	Quit     string
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

// Model is the terminal UI over an *app.App. All state lives in the app;
// the model only keeps cursors and widgets.
type Model struct {
	App         *app.App
	CurrentView View
	Day         time.Time
	Cursor      int
	SelectedID  string
	Palette     CommandPaletteState
	HelpVisible bool
	Status      StatusBar
	LastResult  string
	Keys        GlobalKeyMap
	Quitting    bool
	LastError   error
	Busy        bool
	Width       int

	ctx           context.Context
	commandInput  textinput.Model
	planSpinner   spinner.Model
	dayProgress   progress.Model
	helpModel     help.Model
	proposalView  viewport.Model
	proposalToken uint64
	proposal      app.Proposal
}

func defaultKeys() GlobalKeyMap {
	return GlobalKeyMap{
		Today:    "1",
		Tasks:    "2",
		Queue:    "3",
		Proposal: "4",
		Help:     "?",
		Quit:     "q",
	}
}

// NewModel builds the UI for a. Work started from the UI runs under ctx.
func NewModel(ctx context.Context, a *app.App) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	input := textinput.New()
	input.Prompt = "/"
	input.Placeholder = "plan today mode:walking"
	input.CharLimit = 512
	input.Cursor.SetMode(cursor.CursorStatic)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 20

	return Model{
		App:          a,
		CurrentView:  ViewToday,
		Day:          timemath.StartOfDay(a.Now()),
		Keys:         defaultKeys(),
		ctx:          ctx,
		commandInput: input,
		planSpinner:  spin,
		dayProgress:  bar,
		helpModel:    help.New(),
		proposalView: viewport.New(56, 18),
	}
}
