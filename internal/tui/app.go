package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/zpw/internal/api"
	"github.com/matheus3301/zpw/internal/store"
	"github.com/matheus3301/zpw/internal/tui/keys"
	"github.com/matheus3301/zpw/internal/tui/model"
	"github.com/matheus3301/zpw/internal/tui/ui"
	"github.com/matheus3301/zpw/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageMessages = "messages"
	pageConfirm  = "confirm"
)

// Watcher streams daemon events.
type Watcher interface {
	WatchEvents(ctx context.Context, prefix string, fn func(api.Event) error) error
}

// App is the TUI shell: a message table, a ':' prompt and a status bar.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	watcher   Watcher
	registry  *keys.Registry
	theme     *ui.Theme
	list      *views.MessageList
	statusBar *views.StatusBar
	prompt    *tview.InputField
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI for a daemon connection.
func NewApp(d model.Daemon, w Watcher) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	theme.Apply()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(d),
		watcher:   w,
		registry:  keys.NewRegistry(),
		theme:     theme,
		list:      views.NewMessageList(theme),
		statusBar: views.NewStatusBar(theme),
		prompt:    tview.NewInputField().SetLabel(":"),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.setupBindings()
	a.setupLayout()
	a.statusBar.SetHints(a.registry.Hints(pageMessages))
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q',
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddPage(pageMessages, &keys.Action{
		Key: tcell.KeyRune, Rune: 'u',
		Description: "u:undo", Visible: true,
		Handler: a.confirmUndo,
	})
	a.registry.AddPage(pageMessages, &keys.Action{
		Key: tcell.KeyRune, Rune: 'U',
		Description: "U:queue", Visible: true,
		Handler: func() { a.run(a.vm.Queue) },
	})
	a.registry.AddPage(pageMessages, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r',
		Description: "r:refresh", Visible: true,
		Handler: func() { go a.refresh() },
	})
	a.registry.AddPage(pageMessages, &keys.Action{
		Key: tcell.KeyRune, Rune: ':',
		Description: ":cmd", Visible: true,
		Handler: func() {
			a.prompt.SetText("")
			a.app.SetFocus(a.prompt)
		},
	})
}

func (a *App) setupLayout() {
	a.prompt.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			a.execute(ParseCommand(a.prompt.GetText()))
		}
		a.prompt.SetText("")
		a.app.SetFocus(a.list)
	})

	a.pages.AddPage(pageMessages, a.list, true, true)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Let the prompt and the modal handle their own keys.
		switch a.app.GetFocus().(type) {
		case *tview.InputField, *tview.Modal, *tview.Button:
			return event
		}
		page, _ := a.pages.GetFrontPage()
		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

// execute runs a ':' command: "thread <id>", "all" or "quit".
func (a *App) execute(cmd Command) {
	switch cmd.Name {
	case "thread":
		a.vm.SetThread(cmd.Args)
		go a.refresh()
	case "all":
		a.vm.SetThread("")
		go a.refresh()
	case "q", "quit":
		a.Stop()
	case "":
	default:
		a.vm.Flash.Set(model.FlashErr, "unknown command: "+cmd.Name, 3*time.Second)
		a.redrawStatus()
	}
}

func (a *App) confirmUndo() {
	m := a.list.Selected()
	if m == nil {
		return
	}
	modal := tview.NewModal().
		SetText("Undo message " + m.GlobalMsgID + " in " + m.ThreadID + "?").
		AddButtons([]string{"Undo", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			a.pages.RemovePage(pageConfirm)
			a.app.SetFocus(a.list)
			if label == "Undo" {
				a.run(a.vm.Undo)
			}
		})
	a.pages.AddPage(pageConfirm, modal, false, true)
	a.app.SetFocus(modal)
}

// run applies op to the selected message off the UI goroutine, then refreshes.
func (a *App) run(op func(context.Context, *store.Message) error) {
	m := a.list.Selected()
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
		defer cancel()
		_ = op(ctx, m)
		a.refresh()
	}()
}

func (a *App) refresh() {
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		a.vm.Flash.Set(model.FlashErr, "Status failed: "+err.Error(), 5*time.Second)
	}
	if err := a.vm.LoadMessages(a.ctx); err != nil {
		a.vm.Flash.Set(model.FlashErr, "Load failed: "+err.Error(), 5*time.Second)
	}
	a.app.QueueUpdateDraw(func() {
		a.list.Update(a.vm.GetMessages(), a.vm.Thread())
		a.statusBar.SetStatus(a.vm.GetStatus())
		a.statusBar.SetFlash(a.vm.Flash.Get())
	})
}

func (a *App) redrawStatus() {
	a.statusBar.SetFlash(a.vm.Flash.Get())
}

// watch refreshes whenever the daemon reports a change, and every few
// seconds so flashes expire.
func (a *App) watch() {
	changes := make(chan struct{}, 1)
	go func() {
		_ = a.watcher.WatchEvents(a.ctx, "", func(api.Event) error {
			select {
			case changes <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-changes:
			a.refresh()
		case <-ticker.C:
			a.refresh()
		case <-a.ctx.Done():
			return
		}
	}
}

// Run starts the TUI and blocks until it exits.
func (a *App) Run() error {
	go func() {
		a.refresh()
		a.watch()
	}()
	return a.app.Run()
}

// Stop shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
