// Package repl implements an interactive "doIt" loop for MiniTalk: each
// line the user enters is compiled as the body of a throwaway method
// and sent to a persistent receiver, so earlier lines' side effects
// (instance variable assignments, Transcript output) are visible to
// later ones.
//
// It uses the Charm libraries (Bubbletea, Bubbles, Lipgloss) for the
// terminal interface: a textinput.Model for the input line and a
// viewport.Model for scrollback, the same split dr8co-kong's Monkey
// REPL uses lipgloss styling for but renders as one growing string —
// here the transcript can outgrow the terminal, so it scrolls through
// an actual viewport instead.
package repl

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/minitalklang/minitalk/pkg/compiler"
	"github.com/minitalklang/minitalk/pkg/heap"
	"github.com/minitalklang/minitalk/pkg/parser"
	"github.com/minitalklang/minitalk/pkg/vm"
)

// Prompt is the input prompt shown at the start of every line.
const Prompt = "mt> "

// Options configures the REPL's appearance.
type Options struct {
	NoColor bool
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
)

type entry struct {
	input   string
	output  string
	isError bool
}

type model struct {
	textInput textinput.Model
	viewport  viewport.Model
	history   []entry
	options   Options
	ready     bool

	machine  *heap.Machine
	interp   *vm.VM
	class    *heap.Class
	receiver heap.ObjPtr

	// transcriptOut collects Transcript show:/showCr: output. It's a
	// pointer so every copy of model Bubbletea's Update loop produces
	// shares the same backing slice as the VM.Out closure captured at
	// construction time.
	transcriptOut *[]string
}

// Start initializes and runs the REPL.
func Start(options Options) error {
	p := tea.NewProgram(initialModel(options), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func initialModel(options Options) model {
	ti := textinput.New()
	ti.Placeholder = "1 + 1"
	ti.Prompt = promptStyle.Render(Prompt)
	ti.Focus()
	ti.Width = 80

	machine := heap.NewMachine()
	machine.DefineGlobal(vm.TranscriptClassName, vm.NewTranscript(machine))
	class := heap.NewClass("DoIt", nil, nil)
	out := &[]string{}

	m := model{
		textInput:     ti,
		options:       options,
		machine:       machine,
		class:         class,
		receiver:      machine.NewInstance(class),
		transcriptOut: out,
	}
	m.interp = vm.New(machine, func(s string) {
		*out = append(*out, s)
	})
	return m
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) applyStyle(style lipgloss.Style, s string) string {
	if m.options.NoColor {
		return s
	}
	return style.Render(s)
}

// eval compiles input as the body of a "doIt" method on m.class and
// sends it to m.receiver, returning the printed result or error text.
func (m *model) eval(input string) (output string, isError bool) {
	p := parser.New("doIt\n"+input, m.class)
	method := p.ParseMethod(-1)
	if errs := p.Errors(); len(errs) != 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return "parse error: " + strings.Join(msgs, "; "), true
	}

	_, association, err := compiler.CodeMethod(m.machine, method, true)
	if err != nil {
		return fmt.Sprintf("compile error: %v", err), true
	}
	m.class.Install(association)

	transcriptStart := len(*m.transcriptOut)
	result, err := m.interp.Send(m.receiver, "doIt", nil)
	printed := strings.Join((*m.transcriptOut)[transcriptStart:], "")

	if err != nil {
		return printed + err.Error(), true
	}
	return printed + vm.DisplayString(result), false
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(m.transcript())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
		}
		m.textInput.Width = msg.Width - len(Prompt) - 1

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			input := m.textInput.Value()
			if strings.TrimSpace(input) == "" {
				return m, nil
			}
			output, isError := m.eval(input)
			m.history = append(m.history, entry{input: input, output: output, isError: isError})
			m.textInput.SetValue("")
			m.viewport.SetContent(m.transcript())
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) transcript() string {
	var b strings.Builder
	for _, e := range m.history {
		if e.input != "" {
			b.WriteString(m.applyStyle(promptStyle, Prompt))
			b.WriteString(e.input)
			b.WriteString("\n")
		}
		if e.isError {
			b.WriteString(m.applyStyle(errorStyle, e.output))
		} else {
			b.WriteString(m.applyStyle(resultStyle, e.output))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) headerView() string {
	return m.applyStyle(titleStyle, " MiniTalk ") + "\n"
}

func (m model) footerView() string {
	help := "Ctrl+C/D or Esc to exit"
	return "\n" + m.textInput.View() + "\n" + m.applyStyle(helpStyle, help)
}

func (m model) View() string {
	if !m.ready {
		return "initializing..."
	}
	return m.headerView() + m.viewport.View() + m.footerView()
}
