package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Confirmer blocks on a single-keystroke decision. Any key proceeds; the
// cancellation keys decline. There is no timeout: the prompt waits for the
// operator indefinitely.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// KeyConfirmer implements Confirmer with a minimal bubbletea program.
type KeyConfirmer struct {
	styles *Styles
}

// NewKeyConfirmer returns a Confirmer rendering with the provided styles.
func NewKeyConfirmer(styles *Styles) *KeyConfirmer {
	return &KeyConfirmer{styles: styles}
}

// Confirm shows the prompt and waits for one keystroke.
func (c *KeyConfirmer) Confirm(prompt string) (bool, error) {
	m := confirmModel{prompt: prompt, styles: c.styles}

	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return false, fmt.Errorf("confirm prompt failed: %w", err)
	}

	final, ok := result.(confirmModel)
	if !ok {
		return false, nil
	}

	return final.confirmed, nil
}

// confirmModel is a one-keystroke dialog.
type confirmModel struct {
	prompt    string
	styles    *Styles
	confirmed bool
	done      bool
}

// Init implements tea.Model.
func (m confirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "Q", "esc", "ctrl+c":
			m.confirmed = false
		default:
			m.confirmed = true
		}

		m.done = true

		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m confirmModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s ",
		m.styles.Title.Render(m.prompt),
		m.styles.Hint.Render("[any key continues, q cancels]"),
	)
}

// StaticConfirmer always answers with a fixed decision. It backs
// non-interactive runs and tests.
type StaticConfirmer struct {
	// Proceed is the canned answer.
	Proceed bool
}

// Confirm returns the canned answer without prompting.
func (c *StaticConfirmer) Confirm(string) (bool, error) {
	return c.Proceed, nil
}
