package components

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/roster/internal/domain"
)

type recorded struct {
	action string
	id     string
}

// recordingActions returns actions whose commands report what ran
func recordingActions() RowActions {
	cmd := func(action, id string) tea.Cmd {
		return func() tea.Msg { return recorded{action, id} }
	}
	return RowActions{
		Select:  func(id string) tea.Cmd { return cmd("select", id) },
		Switch:  func(id string) tea.Cmd { return cmd("switch", id) },
		Refresh: func(id string) tea.Cmd { return cmd("refresh", id) },
		ToggleProxy: func(id string, enable bool) tea.Cmd {
			if enable {
				return cmd("proxy-on", id)
			}
			return cmd("proxy-off", id)
		},
		Delete: func(id string) tea.Cmd { return cmd("delete", id) },
	}
}

func run(t *testing.T, cmd tea.Cmd) recorded {
	t.Helper()
	if cmd == nil {
		t.Fatal("handler returned nil command")
	}
	return cmd().(recorded)
}

func threeAccounts() []domain.Account {
	return []domain.Account{
		{ID: "A", Email: "a@example.com"},
		{ID: "B", Email: "b@example.com", ProxyDisabled: true},
		{ID: "C", Email: "c@example.com"},
	}
}

func TestBuildRowsBindsHandlersPerRow(t *testing.T) {
	rows := BuildRows(TableProps{
		Accounts:  threeAccounts(),
		Selection: NewSelection("C"),
		CurrentID: "A",
		Actions:   recordingActions(),
	})

	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if got := run(t, rows[1].OnRefresh()); got != (recorded{"refresh", "B"}) {
		t.Errorf("row B refresh = %+v", got)
	}
	if got := run(t, rows[2].OnDelete()); got != (recorded{"delete", "C"}) {
		t.Errorf("row C delete = %+v", got)
	}
	if got := run(t, rows[1].OnToggleProxy()); got != (recorded{"proxy-on", "B"}) {
		t.Errorf("row B proxy = %+v, want enable for a disabled account", got)
	}
	if got := run(t, rows[2].OnToggleProxy()); got != (recorded{"proxy-off", "C"}) {
		t.Errorf("row C proxy = %+v", got)
	}
	if !rows[2].Selected || rows[0].Selected {
		t.Error("selection flags wrong")
	}
	if !rows[0].Current {
		t.Error("row A should be current")
	}
}

func TestBuildRowsCurrentCannotSwitch(t *testing.T) {
	rows := BuildRows(TableProps{Accounts: threeAccounts(), CurrentID: "A", Actions: recordingActions()})
	if rows[0].OnSwitch() != nil {
		t.Error("current account offered a switch")
	}
	if got := run(t, rows[1].OnSwitch()); got != (recorded{"switch", "B"}) {
		t.Errorf("row B switch = %+v", got)
	}
}

func TestBuildRowsBusyRowsAreInert(t *testing.T) {
	rows := BuildRows(TableProps{
		Accounts:    threeAccounts(),
		BusyIDs:     map[string]bool{"B": true},
		SwitchingID: "C",
		Actions:     recordingActions(),
	})
	for _, row := range rows[1:] {
		if row.OnSwitch() != nil || row.OnRefresh() != nil || row.OnToggleProxy() != nil || row.OnDelete() != nil {
			t.Errorf("row %s dispatched while busy", row.Account.ID)
		}
		// Selection stays available
		if row.OnSelect() == nil {
			t.Errorf("row %s cannot be selected while busy", row.Account.ID)
		}
	}
	if rows[0].OnRefresh() == nil {
		t.Error("idle row A lost its handlers")
	}
}

func TestBuildRowsNilActions(t *testing.T) {
	rows := BuildRows(TableProps{Accounts: threeAccounts()})
	if rows[0].OnSwitch() != nil || rows[0].OnSelect() != nil {
		t.Error("nil actions produced commands")
	}
}

func TestRenderTableEmptyPlaceholder(t *testing.T) {
	out := RenderTable(TableProps{}, TableView{Width: 80, Height: 10})
	if !strings.Contains(out, EmptyTablePlaceholder) {
		t.Errorf("empty table = %q", out)
	}
}

func TestRenderTableRows(t *testing.T) {
	accounts := threeAccounts()
	accounts[0].Quota = &domain.Quota{Models: []domain.ModelQuota{{Name: "m", Percentage: 42}}}

	out := RenderTable(TableProps{Accounts: accounts, CurrentID: "A"}, TableView{Width: 100, Height: 10})
	for _, want := range []string{"a@example.com", "b@example.com", "c@example.com", "42%", "proxy off", "current"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTableScrolls(t *testing.T) {
	out := RenderTable(TableProps{Accounts: threeAccounts()}, TableView{Offset: 1, Width: 100, Height: 3})
	if strings.Contains(out, "a@example.com") {
		t.Error("row above the offset was rendered")
	}
	if !strings.Contains(out, "b@example.com") || !strings.Contains(out, "c@example.com") {
		t.Errorf("visible rows missing:\n%s", out)
	}
}

func TestTablePropsAllSelected(t *testing.T) {
	p := TableProps{Accounts: threeAccounts(), Selection: NewSelection("A", "B", "C")}
	if !p.AllSelected() {
		t.Error("AllSelected = false with every id selected")
	}
	p.Selection = NewSelection("A")
	if p.AllSelected() {
		t.Error("AllSelected = true with one id selected")
	}
	if (TableProps{}).AllSelected() {
		t.Error("empty table reports all selected")
	}
}
