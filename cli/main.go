package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0a84ff")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)
)

// Model defines the application state
type Model struct {
	recipeList  list.Model
	stepTable   table.Model
	spinner     spinner.Model
	client      *ApiClient
	session     *SessionView
	eventLog    []string
	events      chan EventView
	currentView string
	error       string
}

// item represents a list item
type item struct {
	title, desc, id string
}

// FilterValue implements list.Item interface
func (i item) FilterValue() string { return i.title }

// Title implements list.Item interface
func (i item) Title() string { return i.title }

// Description implements list.Item interface
func (i item) Description() string { return i.desc }

// Initialize the model
func initialModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	recipeList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	recipeList.Title = "Souschef Recipes"

	columns := []table.Column{
		{Title: "Step", Width: 20},
		{Title: "Description", Width: 36},
		{Title: "Type", Width: 10},
		{Title: "State", Width: 12},
	}
	stepTable := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	return Model{
		recipeList:  recipeList,
		stepTable:   stepTable,
		spinner:     s,
		client:      NewApiClient(),
		currentView: "recipes",
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.EnterAltScreen, fetchRecipes(m.client))
}

// Update handles UI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.recipeList.SetSize(msg.Width-h, msg.Height-v)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			if m.currentView == "recipes" {
				if selected, ok := m.recipeList.SelectedItem().(item); ok {
					m.error = ""
					return m, createSession(m.client, selected.id)
				}
			}
		case "esc":
			if m.currentView == "session" {
				m.currentView = "recipes"
				m.session = nil
				m.eventLog = nil
				return m, fetchRecipes(m.client)
			}
		case "g":
			if m.session != nil {
				return m, sessionOp(m.client, m.session.SessionID, "start")
			}
		case "s":
			if step := m.selectedStep(); step != "" {
				return m, sessionOp(m.client, m.session.SessionID, "steps/"+step+"/start")
			}
		case "c":
			if step := m.selectedStep(); step != "" {
				return m, sessionOp(m.client, m.session.SessionID, "steps/"+step+"/confirm")
			}
		case "k":
			if step := m.selectedStep(); step != "" {
				return m, sessionOp(m.client, m.session.SessionID, "steps/"+step+"/skip")
			}
		case "a":
			if m.session != nil {
				return m, sessionOp(m.client, m.session.SessionID, "abort")
			}
		}
	case recipesMsg:
		m.recipeList.SetItems(convertRecipesToItems(msg.recipes))
		return m, nil
	case sessionMsg:
		m.session = msg.session
		m.currentView = "session"
		m.stepTable.SetRows(convertStepsToRows(msg.session.Steps))
		if msg.created {
			m.events = make(chan EventView, 64)
			go m.client.StreamEvents(msg.session.SessionID, m.events)
			return m, waitForEvent(m.events)
		}
		return m, nil
	case eventMsg:
		m.eventLog = append(m.eventLog, formatEvent(msg.event))
		if len(m.eventLog) > 8 {
			m.eventLog = m.eventLog[len(m.eventLog)-8:]
		}
		return m, tea.Batch(refreshSession(m.client, m.session.SessionID), waitForEvent(m.events))
	case errorMsg:
		m.error = msg.err
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.currentView {
	case "recipes":
		m.recipeList, cmd = m.recipeList.Update(msg)
	case "session":
		m.stepTable, cmd = m.stepTable.Update(msg)
	}

	return m, cmd
}

// selectedStep returns the step id under the cursor, if a session view
// is active.
func (m Model) selectedStep() string {
	if m.session == nil {
		return ""
	}
	row := m.stepTable.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

// View renders the UI
func (m Model) View() string {
	switch m.currentView {
	case "recipes":
		help := "\nPress 'enter' to start a session, 'q' to quit\n"
		if m.error != "" {
			help += errorStyle.Render(m.error) + "\n"
		}
		return docStyle.Render(m.recipeList.View() + help)
	case "session":
		header := titleStyle.Render(m.session.Recipe) + " " + infoStyle.Render(m.session.Status)
		if m.session.Status == "completed" {
			header = titleStyle.Render(m.session.Recipe) + " " + successStyle.Render("completed")
		}
		view := header + "\n\n" + m.stepTable.View() + "\n"
		if len(m.eventLog) > 0 {
			view += "\nEvents:\n"
			for _, line := range m.eventLog {
				view += "  " + line + "\n"
			}
		}
		view += "\n'g' start recipe, 's' start step, 'c' confirm, 'k' skip, 'a' abort, 'esc' back\n"
		if m.error != "" {
			view += errorStyle.Render(m.error) + "\n"
		}
		return docStyle.Render(view)
	default:
		return docStyle.Render(m.spinner.View() + " Loading...")
	}
}

// Custom message types for the tea.Model
type recipesMsg struct {
	recipes []RecipeSummary
}

type sessionMsg struct {
	session *SessionView
	created bool
}

type eventMsg struct {
	event EventView
}

type errorMsg struct {
	err string
}

// Commands

func fetchRecipes(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		recipes, err := client.ListRecipes()
		if err != nil {
			return errorMsg{err: err.Error()}
		}
		return recipesMsg{recipes: recipes}
	}
}

func createSession(client *ApiClient, recipeID string) tea.Cmd {
	return func() tea.Msg {
		view, err := client.CreateSession(recipeID)
		if err != nil {
			return errorMsg{err: err.Error()}
		}
		return sessionMsg{session: view, created: true}
	}
}

func refreshSession(client *ApiClient, sessionID string) tea.Cmd {
	return func() tea.Msg {
		view, err := client.GetSession(sessionID)
		if err != nil {
			return errorMsg{err: err.Error()}
		}
		return sessionMsg{session: view}
	}
}

func sessionOp(client *ApiClient, sessionID, op string) tea.Cmd {
	return func() tea.Msg {
		view, err := client.SessionOp(sessionID, op)
		if err != nil {
			return errorMsg{err: err.Error()}
		}
		return sessionMsg{session: view}
	}
}

func waitForEvent(events <-chan EventView) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg{event: ev}
	}
}

// Converters

func convertRecipesToItems(recipes []RecipeSummary) []list.Item {
	items := make([]list.Item, 0, len(recipes))
	for _, r := range recipes {
		desc := r.Difficulty
		if r.Servings > 0 {
			desc = fmt.Sprintf("%s, serves %d", r.Difficulty, r.Servings)
		}
		items = append(items, item{title: r.Title, desc: desc, id: r.RecipeID})
	}
	return items
}

func convertStepsToRows(steps []StepView) []table.Row {
	rows := make([]table.Row, 0, len(steps))
	for _, s := range steps {
		rows = append(rows, table.Row{s.ID, s.Description, s.Type, s.State})
	}
	return rows
}

func formatEvent(ev EventView) string {
	if ev.StepID == "" {
		return fmt.Sprintf("#%d %s", ev.Seq, ev.Type)
	}
	return fmt.Sprintf("#%d %s %s", ev.Seq, ev.Type, ev.StepID)
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
