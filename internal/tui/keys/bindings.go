package keys

import (
	"sort"

	"github.com/gdamore/tcell/v2"
)

// Action is a key bound to a handler.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches reports whether ev triggers the action. Rune bindings are case sensitive.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Registry holds global bindings plus per-page bindings.
type Registry struct {
	global []*Action
	pages  map[string][]*Action
}

func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]*Action)}
}

// AddGlobal binds an action on every page.
func (r *Registry) AddGlobal(action *Action) {
	r.global = append(r.global, action)
}

// AddPage binds an action on one page. Page bindings win over global ones.
func (r *Registry) AddPage(page string, action *Action) {
	r.pages[page] = append(r.pages[page], action)
}

// Hints returns the visible descriptions for page, page bindings first, each
// group sorted.
func (r *Registry) Hints(page string) []string {
	collect := func(actions []*Action) []string {
		var out []string
		for _, a := range actions {
			if a.Visible {
				out = append(out, a.Description)
			}
		}
		sort.Strings(out)
		return out
	}
	return append(collect(r.pages[page]), collect(r.global)...)
}

// HandleEvent runs the first action on page matching ev and reports whether
// one matched.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, actions := range [][]*Action{r.pages[page], r.global} {
		for _, a := range actions {
			if a.Matches(ev) {
				a.Handler()
				return true
			}
		}
	}
	return false
}
