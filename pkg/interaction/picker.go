package interaction

import (
	"context"
	"fmt"
	"io"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/commitmsg"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// PickerResolver is a FieldResolver drawn as a terminal list. The last
// entry switches to a text box for a value that is not listed.
type PickerResolver struct {
	In  io.Reader
	Out io.Writer
}

// Resolve implements FieldResolver.
func (r PickerResolver) Resolve(ctx context.Context, field commitmsg.Field, options []string) (string, error) {
	logger := otelzap.Ctx(ctx)

	prog := tea.NewProgram(newPickerModel(field, options),
		tea.WithInput(r.In),
		tea.WithOutput(r.Out),
		tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", cerr.Wrap(err, "run picker")
	}

	m, ok := final.(pickerModel)
	if !ok || m.choice == "" {
		return "", cerr.Mark(cerr.Newf("no %s selected", field), ErrInputClosed)
	}
	logger.Info("Field resolved by user", zap.String("field", field.String()), zap.String("value", m.choice))
	return m.choice, nil
}

type pickItem struct {
	value string
	other bool
}

func (i pickItem) Title() string {
	if i.other {
		return "Other..."
	}
	return i.value
}

func (i pickItem) Description() string {
	if i.other {
		return "type a value that is not listed"
	}
	return ""
}

func (i pickItem) FilterValue() string { return i.value }

type pickerModel struct {
	field  commitmsg.Field
	list   list.Model
	input  textinput.Model
	typing bool
	choice string
}

func newPickerModel(field commitmsg.Field, options []string) pickerModel {
	items := make([]list.Item, 0, len(options)+1)
	for _, opt := range options {
		items = append(items, pickItem{value: opt})
	}
	items = append(items, pickItem{other: true})

	delegate := list.NewDefaultDelegate()
	l := list.New(items, delegate, 48, len(items)*3+6)
	l.Title = fmt.Sprintf("Select %s", field)
	l.SetShowStatusBar(false)

	ti := textinput.New()
	ti.Placeholder = field.String()
	ti.CharLimit = 128

	return pickerModel{field: field, list: l, input: ti}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-1)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.typing {
			switch msg.Type {
			case tea.KeyEnter:
				if v, ok := Choose(m.input.Value(), nil); ok {
					m.choice = v
					return m, tea.Quit
				}
				return m, nil
			case tea.KeyEsc:
				m.typing = false
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		if msg.Type == tea.KeyEnter && m.list.FilterState() != list.Filtering {
			item, ok := m.list.SelectedItem().(pickItem)
			if !ok {
				return m, nil
			}
			if item.other {
				m.typing = true
				cmd := m.input.Focus()
				return m, cmd
			}
			m.choice = item.value
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.typing {
		return fmt.Sprintf("Enter %s:\n\n%s\n\n(esc to go back)\n", m.field, m.input.View())
	}
	return m.list.View()
}
