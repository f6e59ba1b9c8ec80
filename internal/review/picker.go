package review

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/searchradar/internal/model"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

// pickerWindow is how many companies are listed at once.
const pickerWindow = 20

type pickerModel struct {
	companies []model.CompanySummary
	cursor    int
	offset    int
	chosen    int // -1 = no choice yet, -2 = quit
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.companies)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.companies) > 0 {
				m.chosen = m.cursor
				return m, tea.Quit
			}
		}
	}

	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+pickerWindow {
		m.offset = m.cursor - pickerWindow + 1
	}
	return m, nil
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render(fmt.Sprintf("AI-search hiring: %d companies", len(m.companies)))
	s += "\n"

	if len(m.companies) == 0 {
		s += pickerItemStyle.Render("(no companies yet, run ingest first)") + "\n"
	}

	end := min(m.offset+pickerWindow, len(m.companies))
	for i := m.offset; i < end; i++ {
		c := m.companies[i]
		meta := pickerMetaStyle.Render(fmt.Sprintf("  %s · %d roles", orNA(string(c.Classification)), c.AISearchRoles))
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+c.Name) + meta + "\n"
		} else {
			s += pickerItemStyle.Render(c.Name) + meta + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunCompanyPicker shows an interactive company selector.
// Returns the index of the chosen company, or -1 if the user quit.
func RunCompanyPicker(companies []model.CompanySummary) (int, error) {
	m := pickerModel{
		companies: companies,
		chosen:    -1,
	}

	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return -1, err
	}

	final := result.(pickerModel)
	if final.chosen < 0 {
		return -1, nil
	}
	return final.chosen, nil
}
