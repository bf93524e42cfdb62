package clicmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mailcache/internal/message"
)

type browseView int

const (
	folderListView browseView = iota
	messageListView
	messageReadView
)

type folderItem struct {
	name       string
	isMessages bool
}

func (i folderItem) Title() string {
	if i.isMessages {
		return "[messages]"
	}
	return i.name
}

func (i folderItem) Description() string {
	if i.isMessages {
		return "view messages cached in this folder"
	}
	return "subfolder"
}

func (i folderItem) FilterValue() string { return i.name }

type messageItem struct {
	subject string
	from    string
	date    time.Time
	msg     *message.Message
}

func (i messageItem) Title() string { return i.subject }
func (i messageItem) Description() string {
	return fmt.Sprintf("%s · %s", i.from, i.date.Format("2006-01-02 15:04"))
}
func (i messageItem) FilterValue() string { return i.subject }

type foldersLoadedMsg struct {
	path  string
	items []list.Item
}

type messagesLoadedMsg struct {
	path  string
	items []list.Item
}

type bodyLoadedMsg struct {
	rendered string
}

type browseErrMsg struct{ err error }

type browseModel struct {
	sess *session

	folderList  list.Model
	messageList list.Model
	viewport    viewport.Model
	spinner     spinner.Model

	view     browseView
	path     string
	loading  bool
	err      error
	status   string
	width    int
	height   int
}

func newBrowseModel(s *session) browseModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	fl := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	fl.Title = "Folders"
	ml := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	ml.Title = "Messages"

	return browseModel{
		sess:        s,
		folderList:  fl,
		messageList: ml,
		spinner:     sp,
		view:        folderListView,
		loading:     true,
	}
}

func (m browseModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadFolders(m.sess, m.path))
}

func loadFolders(s *session, path string) tea.Cmd {
	return func() tea.Msg {
		f := s.store.GetFolder(path)
		names, err := f.List()
		if err != nil {
			return browseErrMsg{err: err}
		}
		items := make([]list.Item, 0, len(names)+1)
		items = append(items, folderItem{isMessages: true})
		for _, n := range names {
			items = append(items, folderItem{name: n})
		}
		return foldersLoadedMsg{path: path, items: items}
	}
}

func loadMessages(s *session, path string) tea.Cmd {
	return func() tea.Msg {
		f := s.store.GetFolder(path)
		msgs, err := f.GetMessages()
		if err != nil {
			return browseErrMsg{err: err}
		}
		items := make([]list.Item, 0, len(msgs))
		for _, msg := range msgs {
			subject, _ := msg.GetSubject()
			if subject == "" {
				subject = "(no subject)"
			}
			from, _ := msg.GetCleanFrom()
			date, _ := msg.GetSentDate()
			items = append(items, messageItem{subject: subject, from: from, date: date, msg: msg})
		}
		return messagesLoadedMsg{path: path, items: items}
	}
}

func loadBody(msg *message.Message, width int) tea.Cmd {
	return func() tea.Msg {
		subject, _ := msg.GetSubject()
		from, _ := msg.GetCleanFrom()
		date, _ := msg.GetSentDate()
		body, err := msg.GetBody()
		if err != nil {
			return browseErrMsg{err: err}
		}

		header := lipgloss.JoinVertical(
			lipgloss.Left,
			fmt.Sprintf("From: %s", from),
			fmt.Sprintf("Subject: %s", subject),
			fmt.Sprintf("Date: %s", date.Format("Mon, 02 Jan 2006 15:04:05")),
			strings.Repeat("─", max(width-4, 1)),
		)
		return bodyLoadedMsg{rendered: lipgloss.JoinVertical(lipgloss.Left, header, renderBody(body, width))}
	}
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		listH := msg.Height - 4
		m.folderList.SetSize(msg.Width, listH)
		m.messageList.SetSize(msg.Width, listH)
		m.viewport = viewport.New(msg.Width-4, listH)
		m.viewport.Style = lipgloss.NewStyle().Padding(0, 1)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc", "backspace":
			switch m.view {
			case messageReadView:
				m.view = messageListView
			case messageListView:
				m.view = folderListView
			case folderListView:
				if idx := strings.LastIndex(m.path, "/"); idx >= 0 {
					m.path = m.path[:idx]
				} else {
					m.path = ""
				}
				m.loading = true
				cmds = append(cmds, loadFolders(m.sess, m.path))
			}
		case "enter":
			switch m.view {
			case folderListView:
				if item, ok := m.folderList.SelectedItem().(folderItem); ok {
					if item.isMessages {
						m.view = messageListView
						m.loading = true
						cmds = append(cmds, loadMessages(m.sess, m.path))
					} else {
						if m.path == "" {
							m.path = item.name
						} else {
							m.path = m.path + "/" + item.name
						}
						m.loading = true
						cmds = append(cmds, loadFolders(m.sess, m.path))
					}
				}
			case messageListView:
				if item, ok := m.messageList.SelectedItem().(messageItem); ok {
					m.view = messageReadView
					m.loading = true
					cmds = append(cmds, loadBody(item.msg, m.width-4))
				}
			}
		case "r":
			switch m.view {
			case folderListView:
				m.loading = true
				cmds = append(cmds, loadFolders(m.sess, m.path))
			case messageListView:
				m.loading = true
				cmds = append(cmds, loadMessages(m.sess, m.path))
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case foldersLoadedMsg:
		m.loading = false
		m.folderList.SetItems(msg.items)
		m.status = fmt.Sprintf("%d subfolder(s) under %s", len(msg.items)-1, folderLabel(msg.path))

	case messagesLoadedMsg:
		m.loading = false
		m.messageList.SetItems(msg.items)
		m.status = fmt.Sprintf("%d message(s) in %s", len(msg.items), folderLabel(msg.path))

	case bodyLoadedMsg:
		m.loading = false
		m.viewport.SetContent(msg.rendered)
		m.viewport.GotoTop()

	case browseErrMsg:
		m.loading = false
		m.err = msg.err
	}

	switch m.view {
	case folderListView:
		var cmd tea.Cmd
		m.folderList, cmd = m.folderList.Update(msg)
		cmds = append(cmds, cmd)
	case messageListView:
		var cmd tea.Cmd
		m.messageList, cmd = m.messageList.Update(msg)
		cmds = append(cmds, cmd)
	case messageReadView:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m browseModel) View() string {
	if m.width == 0 {
		return "loading..."
	}

	header := headerStyle.Width(m.width).Render(fmt.Sprintf(" mailcache — %s ", m.sess.store.Username()))

	var content string
	switch {
	case m.err != nil:
		content = errorStyle.Render(fmt.Sprintf("error: %v", m.err))
	case m.loading:
		content = fmt.Sprintf("%s loading...", m.spinner.View())
	default:
		switch m.view {
		case folderListView:
			content = m.folderList.View()
		case messageListView:
			content = m.messageList.View()
		case messageReadView:
			content = m.viewport.View()
		}
	}

	help := helpKeyStyle.Render("enter") + helpDescStyle.Render(" open  ") +
		helpKeyStyle.Render("esc") + helpDescStyle.Render(" back  ") +
		helpKeyStyle.Render("r") + helpDescStyle.Render(" refresh  ") +
		helpKeyStyle.Render("q") + helpDescStyle.Render(" quit")
	status := statusBarStyle.Width(m.width).Render(m.status + "  " + help)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, status)
}
