// Package review is the terminal UI for browsing persisted companies and
// their AI-search jobs.
package review

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/searchradar/internal/model"
)

// Lines per job item in the list (title + subtitle + blank separator).
const jobItemHeight = 3

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39"))

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	jobTitleStyle = lipgloss.NewStyle().
			Bold(true)

	jobSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedJobTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedJobSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailValueStyle = lipgloss.NewStyle()

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

type jobsModel struct {
	company  model.CompanySummary
	jobs     []model.Job
	list     viewport.Model
	detail   viewport.Model
	cursor   int
	pane     int // 0=list, 1=detail
	width    int
	height   int
	ready    bool
	showDesc bool
	wantQuit bool
}

func (m jobsModel) Init() tea.Cmd {
	return nil
}

func (m jobsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.wantQuit = true
			return m, tea.Quit
		case "esc", "b":
			m.wantQuit = false
			return m, tea.Quit
		case "tab", "left", "right":
			m.pane = 1 - m.pane
			m.recalcContent()
			return m, nil
		case "o":
			if j, ok := m.selected(); ok && j.URL != "" {
				openURL(j.URL)
			}
			return m, nil
		case "r":
			m.showDesc = !m.showDesc
			m.recalcContent()
			m.detail.SetYOffset(0)
			return m, nil
		}

		if m.pane == 0 {
			switch msg.String() {
			case "up", "k":
				m.moveCursor(-1)
				return m, nil
			case "down", "j":
				m.moveCursor(1)
				return m, nil
			}
		}

		// Forward other keys (pgup/pgdn/home/end) to the active viewport.
		var cmd tea.Cmd
		if m.pane == 0 {
			m.list, cmd = m.list.Update(msg)
		} else {
			m.detail, cmd = m.detail.Update(msg)
		}
		return m, cmd
	}

	return m, nil
}

func (m jobsModel) selected() (model.Job, bool) {
	if len(m.jobs) == 0 {
		return model.Job{}, false
	}
	return m.jobs[m.cursor], true
}

func (m *jobsModel) moveCursor(delta int) {
	next := clamp(m.cursor+delta, 0, max(len(m.jobs)-1, 0))
	if next == m.cursor {
		return
	}
	m.cursor = next
	m.showDesc = false
	m.recalcContent()
	m.detail.SetYOffset(0)

	top := m.cursor * jobItemHeight
	bottom := top + jobItemHeight - 1
	if top < m.list.YOffset {
		m.list.SetYOffset(top)
	} else if bottom >= m.list.YOffset+m.list.Height {
		m.list.SetYOffset(bottom - m.list.Height + 1)
	}
}

func (m *jobsModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	listWidth := max((m.width-5)*2/5, 24)
	detailWidth := max(m.width-5-listWidth, 30)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	height := max(m.height-4, 5)

	if !m.ready {
		m.list = viewport.New(listWidth, height)
		m.detail = viewport.New(detailWidth, height)
		m.ready = true
	} else {
		m.list.Width, m.list.Height = listWidth, height
		m.detail.Width, m.detail.Height = detailWidth, height
	}
	m.recalcContent()
}

func (m *jobsModel) recalcContent() {
	m.list.SetContent(renderJobs(m.jobs, m.cursor, m.pane == 0))
	if j, ok := m.selected(); ok {
		m.detail.SetContent(renderDetail(j, m.showDesc, max(m.detail.Width-2, 20)))
	} else {
		m.detail.SetContent("  (no AI-search jobs)")
	}
}

func (m jobsModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	listHeader := fmt.Sprintf(" %s · %d jobs", m.company.Name, len(m.jobs))
	detailHeader := " Details"

	listBorder, detailBorder := activeBorderStyle, inactiveBorderStyle
	listHeaderSt, detailHeaderSt := activeHeaderStyle, inactiveHeaderStyle
	if m.pane == 1 {
		listBorder, detailBorder = inactiveBorderStyle, activeBorderStyle
		listHeaderSt, detailHeaderSt = inactiveHeaderStyle, activeHeaderStyle
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(m.list.Width+2).Render(listHeaderSt.Render(listHeader)),
		" ",
		lipgloss.NewStyle().Width(m.detail.Width+2).Render(detailHeaderSt.Render(detailHeader)),
	)
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		listBorder.Width(m.list.Width).Render(m.list.View()),
		" ",
		detailBorder.Width(m.detail.Width).Render(m.detail.View()),
	)

	status := fmt.Sprintf(" %s | %s    ↑/↓ select  Tab switch pane  o open URL  r description  Esc back  q quit",
		orNA(string(m.company.Classification)), orNA(m.company.Category))
	statusBar := statusBarStyle.Width(m.width).Render(status)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func renderJobs(jobs []model.Job, cursor int, isActive bool) string {
	if len(jobs) == 0 {
		return "  (no jobs)"
	}

	var b strings.Builder
	for i, j := range jobs {
		titleSt, subtitleSt, prefix := jobTitleStyle, jobSubtitleStyle, "  "
		if isActive && i == cursor {
			titleSt, subtitleSt, prefix = selectedJobTitleStyle, selectedJobSubtitleStyle, "> "
		} else if i == cursor {
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(j.Title))
		b.WriteByte('\n')

		posted := "n/a"
		if j.PostedAt != nil {
			posted = j.PostedAt.Format("2006-01-02")
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %s", orNA(j.Location), j.RoleTier, posted)))
		b.WriteByte('\n')

		if i < len(jobs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderDetail(j model.Job, showDesc bool, width int) string {
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}
	divider := func(label string) string {
		fill := strings.Repeat("─", max(width-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	addField("Title", j.Title)
	addField("Location", j.Location)
	addField("Source", j.Source)
	if j.PostedAt != nil {
		addField("Posted", j.PostedAt.Format("2006-01-02"))
	}
	if !j.ScrapedAt.IsZero() {
		addField("Last scraped", j.ScrapedAt.Local().Format("2006-01-02 15:04"))
	}
	addField("Relevance", fmt.Sprintf("%.3f (%s)", j.RelevanceScore, j.RoleTier))

	b.WriteByte('\n')
	addField("Remote", j.Flags.Remote)
	addField("Type", j.Flags.EmploymentType)
	addField("Seniority", j.Flags.Seniority)
	if j.Flags.AIForward {
		addField("AI-forward", "yes")
	}

	if o := j.Opportunity; o != nil {
		b.WriteByte('\n')
		b.WriteString(divider("── Opportunity ") + "\n\n")
		addField("View", fmt.Sprintf("%s (%.2f)", o.View, o.Confidence))
		addField("Role type", o.RoleType)
		addField("Buyer/Seller", o.BuyerOrSeller)
		addField("Industry", o.Industry)
		if o.Rationale != "" {
			b.WriteString(bodyStyle.Render(wordWrap(o.Rationale, width)) + "\n")
		}
	}

	b.WriteByte('\n')
	addField("URL", j.URL)

	_, body := splitTags(j.Description)
	b.WriteByte('\n')
	switch {
	case body == "":
		b.WriteString(hintStyle.Render("  no description captured") + "\n")
	case showDesc:
		b.WriteString(divider("── Description ") + "\n\n")
		b.WriteString(bodyStyle.Render(wordWrap(body, width)) + "\n")
	default:
		b.WriteString(hintStyle.Render("  press r to read the description") + "\n")
	}

	return b.String()
}

// splitTags separates the leading machine-readable tag lines from the
// description text.
func splitTags(desc string) (tags []string, body string) {
	body = desc
	for strings.HasPrefix(body, "OPP_META:") || strings.HasPrefix(body, "META: ") {
		tag, rest, found := strings.Cut(body, " || ")
		tags = append(tags, tag)
		if !found {
			return tags, ""
		}
		body = rest
	}
	return tags, body
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// RunJobsView shows the company's jobs beside a detail pane. It returns
// wantQuit=true if the user pressed q/ctrl+c, false if they pressed esc to
// return to the picker.
func RunJobsView(company model.CompanySummary, jobs []model.Job) (bool, error) {
	m := jobsModel{company: company, jobs: jobs}

	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	return result.(jobsModel).wantQuit, nil
}
