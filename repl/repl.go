// Package repl implements the Read-Eval-Print Loop for the Eva programming
// language.
//
// The REPL provides an interactive interface for users to enter Eva
// s-expressions, have them compiled and run on a persistent [vm.VM], and
// see the results immediately. It uses the Charm libraries (Bubbletea,
// Bubbles, and Lipgloss) to create a modern, user-friendly terminal
// interface with features like syntax highlighting and command history.
//
// Key features:
//   - Interactive command input and execution
//   - Command history tracking
//   - Styled output with different colors for results and errors
//   - A single VM (and so a single global table and heap) persisting
//     across commands, so definitions made in one line are visible to the
//     next
//
// The main entry point is the Start function, which initializes and runs
// the REPL with the given username.
package repl

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dr8co/eva/evaerr"
	"github.com/dr8co/eva/lexer"
	"github.com/dr8co/eva/token"
	"github.com/dr8co/eva/vm"
)

const (
	// Prompt is the default prompt for the REPL
	Prompt = "eva> "

	// ContPrompt is the continuation prompt used in multiline input mode within the REPL.
	ContPrompt = "...> "
)

// Options contains configuration options for the REPL
type Options struct {
	NoColor bool // Disable syntax highlighting and colored output
	Debug   bool // Enable debug mode with more verbose output
}

// Start initializes and runs the REPL with the given username and options.
// It creates a new bubbletea program with an initial model and runs it.
// The username is displayed in the welcome message of the REPL.
// If an error occurs while running the program, it is printed to the console.
func Start(username string, options Options) {
	p := tea.NewProgram(initialModel(username, options))
	if _, err := p.Run(); err != nil {
		fmt.Println("Error running program:", err)
	}
}

// Styling
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	// Error styles
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	parseErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	runtimeErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF8700")).
				Bold(true)

	errorTipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAF00"))

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	// Syntax highlighting styles
	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF79C6")).
			Bold(true)

	identifierStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2"))

	literalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	delimiterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BD93F9"))

	stringStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))
)

// specialForms are the symbols colored as keywords in the highlighter.
// They carry no special meaning to the lexer or parser — only gen's tag
// switch treats them specially — but coloring them helps a reader scan a
// program the same way the compiler does.
var specialForms = map[string]bool{
	"begin": true, "var": true, "set": true, "def": true, "lambda": true,
	"if": true, "while": true, "for": true, "class": true, "new": true,
	"prop": true, "super": true, "null": true,
}

// ErrorType represents the type of error that occurred
type ErrorType int

const (
	// NoError indicates that no error occurred.
	NoError ErrorType = iota
	// ParseError indicates an error during lexing or parsing.
	ParseError
	// RuntimeError covers scope-analysis, compile, and VM execution errors.
	RuntimeError
)

// evalResultMsg carries the outcome of an asynchronous evaluation back to
// the bubbletea update loop.
type evalResultMsg struct {
	output    string
	isError   bool
	errorType ErrorType
	elapsed   time.Duration
}

// historyEntry represents a single entry in the REPL history
type historyEntry struct {
	input          string
	output         string
	isError        bool
	errorType      ErrorType
	evaluationTime time.Duration
}

// model is the bubbletea model representing the REPL's state.
type model struct {
	textInput       textinput.Model
	history         []historyEntry
	machine         *vm.VM
	username        string
	evaluating      bool
	currentInput    string
	multilineBuffer string
	isMultiline     bool
	spinner         spinner.Model
	options         Options
}

// initialModel creates a new model with default values
func initialModel(username string, options Options) model {
	ti := textinput.New()
	ti.Placeholder = "Enter Eva code, e.g. (+ 1 2)"
	ti.Focus()
	ti.Width = 80
	ti.Prompt = promptStyle.Render(Prompt)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		textInput:       ti,
		history:         []historyEntry{},
		machine:         vm.New(),
		username:        username,
		evaluating:      false,
		multilineBuffer: "",
		isMultiline:     false,
		spinner:         s,
		options:         options,
	}
}

// Init is the first function that will be called
func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// isBalanced checks whether parentheses are balanced in the input. Eva's
// grammar has no braces or brackets, only the one list delimiter.
func isBalanced(input string) bool {
	depth := 0
	inString := false
	escaped := false
	for _, ch := range input {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return true // a stray ')' is a parse error, not more input needed
			}
		}
	}
	return depth == 0
}

// evalCmd runs input on machine asynchronously, classifying the outcome.
func evalCmd(input string, machine *vm.VM, debug bool) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()

		result, err := machine.Exec(input)
		elapsed := time.Since(start)

		if debug {
			fmt.Printf("DEBUG: eval time: %v\n", elapsed)
		}

		if err != nil {
			var evaErr *evaerr.Error
			if errors.As(err, &evaErr) {
				return evalResultMsg{
					output:    formatRuntimeError(evaErr),
					isError:   true,
					errorType: RuntimeError,
					elapsed:   elapsed,
				}
			}
			return evalResultMsg{
				output:    formatParseError(err.Error()),
				isError:   true,
				errorType: ParseError,
				elapsed:   elapsed,
			}
		}

		return evalResultMsg{
			output:  result.Inspect(),
			elapsed: elapsed,
		}
	}
}

// applyStyle applies a lipgloss style to text, respecting the NoColor option.
func (m model) applyStyle(style lipgloss.Style, text string) string {
	if m.options.NoColor {
		return text
	}
	return style.Render(text)
}

// formatError splits an error's "message\nTips:\n..." shape across styles.
func (m model) formatError(style lipgloss.Style, entry *historyEntry, s *strings.Builder) {
	parts := strings.SplitN(entry.output, "\nTips:", 2)
	if len(parts) > 1 {
		s.WriteString(m.applyStyle(style, parts[0]))
		s.WriteString("\n")
		s.WriteString(m.applyStyle(errorTipStyle, "Tips:"+parts[1]))
		return
	}
	s.WriteString(m.applyStyle(style, entry.output))
}

// Update handles all updates to the model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.evaluating {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case evalResultMsg:
		m.evaluating = false
		m.history = append(m.history, historyEntry{
			input:          m.currentInput,
			output:         msg.output,
			isError:        msg.isError,
			errorType:      msg.errorType,
			evaluationTime: msg.elapsed,
		})
		m.currentInput = ""
		return m, nil

	case tea.KeyMsg:
		if m.evaluating && msg.Type != tea.KeyCtrlC {
			return m, m.spinner.Tick
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit

		case tea.KeyEnter:
			input := m.textInput.Value()

			if input == "" {
				if m.isMultiline {
					if m.multilineBuffer == "" {
						m.isMultiline = false
						return m, nil
					}
					return m.startEval(m.multilineBuffer)
				}
				return m, nil
			}

			if m.isMultiline {
				m.multilineBuffer += "\n" + input
				m.textInput.SetValue("")
				if isBalanced(m.multilineBuffer) {
					return m.startEval(m.multilineBuffer)
				}
				return m, nil
			}

			if !isBalanced(input) {
				m.isMultiline = true
				m.multilineBuffer = input
				m.textInput.SetValue("")
				return m, nil
			}

			m.textInput.SetValue("")
			return m.startEval(input)
		}
	}

	if !m.evaluating {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	if m.evaluating {
		return m, m.spinner.Tick
	}
	return m, cmd
}

// startEval transitions into the evaluating state and returns the command
// that runs buffer on the VM asynchronously.
func (m model) startEval(buffer string) (tea.Model, tea.Cmd) {
	m.evaluating = true
	m.currentInput = buffer
	m.isMultiline = false
	m.multilineBuffer = ""
	return m, evalCmd(buffer, m.machine, m.options.Debug)
}

// View renders the current UI.
func (m model) View() string {
	var s strings.Builder

	s.WriteString(m.applyStyle(titleStyle, " Eva Language REPL "))
	s.WriteString("\n")

	if m.username != "" {
		s.WriteString(fmt.Sprintf("\nHello %s! Feel free to type in Eva code\n", m.username))
	}
	s.WriteString("\n")

	for _, entry := range m.history {
		lines := strings.Split(entry.input, "\n")
		for i, line := range lines {
			if i == 0 {
				s.WriteString(m.applyStyle(promptStyle, Prompt))
			} else {
				s.WriteString(m.applyStyle(promptStyle, ContPrompt))
			}
			s.WriteString(m.highlightLine(line))
			s.WriteString("\n")
		}

		if entry.isError {
			switch entry.errorType {
			case ParseError:
				m.formatError(parseErrorStyle, &entry, &s)
			case RuntimeError:
				m.formatError(runtimeErrorStyle, &entry, &s)
			default:
				s.WriteString(m.applyStyle(errorStyle, entry.output))
			}
		} else {
			s.WriteString(m.applyStyle(resultStyle, entry.output))
		}

		if entry.evaluationTime > 10*time.Millisecond {
			s.WriteString(m.applyStyle(historyStyle, fmt.Sprintf(" (%.2fs)", entry.evaluationTime.Seconds())))
		}

		s.WriteString("\n\n")
	}

	if m.evaluating {
		s.WriteString(m.applyStyle(promptStyle, Prompt))
		s.WriteString(m.highlightLine(m.currentInput))
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(" Evaluating...")
		s.WriteString("\n\n")
	}

	if m.isMultiline && !m.evaluating {
		s.WriteString(m.applyStyle(historyStyle, "Current multiline input:\n"))
		s.WriteString(m.highlightLine(m.multilineBuffer))
		s.WriteString("\n")
	}

	if !m.evaluating {
		if m.isMultiline {
			m.textInput.Prompt = m.applyStyle(promptStyle, ContPrompt)
		} else {
			m.textInput.Prompt = m.applyStyle(promptStyle, Prompt)
		}
		s.WriteString(m.textInput.View())
		s.WriteString("\n")
	}

	helpText := "\nPress Esc or Ctrl+C/D to exit"
	if m.isMultiline {
		helpText += " | Multiline mode: enter an empty line to evaluate, or keep typing"
	} else {
		helpText += " | Unbalanced parentheses enter multiline mode automatically"
	}
	s.WriteString(m.applyStyle(historyStyle, helpText))

	return s.String()
}

// highlightLine tokenizes a single line of Eva source and renders each
// token in its syntax-highlighting style.
func (m model) highlightLine(line string) string {
	l := lexer.New(line)
	var s strings.Builder

	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}

		switch tok.Type {
		case token.LPAREN, token.RPAREN:
			s.WriteString(m.applyStyle(delimiterStyle, tok.Literal))
		case token.NUMBER:
			s.WriteString(m.applyStyle(literalStyle, tok.Literal))
		case token.STRING:
			s.WriteString(m.applyStyle(stringStyle, `"`+tok.Literal+`"`))
		case token.SYMBOL:
			if specialForms[tok.Literal] {
				s.WriteString(m.applyStyle(keywordStyle, tok.Literal))
			} else {
				s.WriteString(m.applyStyle(identifierStyle, tok.Literal))
			}
		default:
			s.WriteString(tok.Literal)
		}
		s.WriteString(" ")
	}

	return strings.TrimRight(s.String(), " ")
}

// formatParseError formats a lex/parse error into a string with tips.
func formatParseError(msg string) string {
	var s strings.Builder
	s.WriteString("Parse Error:\n")
	s.WriteString("  " + msg + "\n")
	s.WriteString("\nTips:\n")
	s.WriteString("  • Check for missing or extra parentheses\n")
	s.WriteString("  • Make sure every string literal is closed\n")
	return s.String()
}

// formatRuntimeError formats a scope/compile/VM error into a string with
// tips tailored to its evaerr.Kind.
func formatRuntimeError(e *evaerr.Error) string {
	var s strings.Builder
	s.WriteString("Runtime Error:\n")
	s.WriteString("  " + e.Error() + "\n")
	s.WriteString("\nTips:\n")

	switch e.Kind {
	case evaerr.Reference:
		s.WriteString("  • Check that the name is declared with var/def before use\n")
	case evaerr.Type:
		s.WriteString("  • Check the operand types match what the operation expects\n")
	case evaerr.Property:
		s.WriteString("  • Check the property is defined on the instance or one of its superclasses\n")
	case evaerr.StackOverflow:
		s.WriteString("  • Check for runaway or unbounded recursion\n")
	default:
		s.WriteString("  • Re-check the expression that produced this error\n")
	}

	return s.String()
}
