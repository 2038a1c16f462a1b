package brackets

import "fmt"

// WinnerAggregator collects the outcome of one stage in resolution order and
// feeds the next stage.
type WinnerAggregator struct {
	names []string
}

func NewWinnerAggregator(names ...string) *WinnerAggregator {
	a := &WinnerAggregator{names: make([]string, 0, len(names))}
	a.names = append(a.names, names...)
	return a
}

func (a *WinnerAggregator) Add(name string) {
	a.names = append(a.names, name)
}

func (a *WinnerAggregator) Len() int {
	if a == nil {
		return 0
	}
	return len(a.names)
}

func (a *WinnerAggregator) At(i int) string {
	return a.names[i]
}

func (a *WinnerAggregator) swap(i, j int) {
	a.names[i], a.names[j] = a.names[j], a.names[i]
}

// Names returns a copy of the collected names.
func (a *WinnerAggregator) Names() []string {
	if a == nil {
		return []string{}
	}
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// distinct returns a copy of a without repeated names. The first entry of a
// name keeps its position; every dropped repeat is reported.
func distinct(a *WinnerAggregator, presenter Presenter, stage string) *WinnerAggregator {
	out := NewWinnerAggregator()
	seen := make(map[string]bool, a.Len())
	for _, name := range a.Names() {
		if seen[name] {
			presenter.Present(Event{
				Type:    EventDuplicatePlayer,
				Stage:   stage,
				Player:  name,
				Message: fmt.Sprintf("Player %s is already entered; duplicate entry dropped.", name),
			})
			continue
		}
		seen[name] = true
		out.Add(name)
	}
	return out
}
