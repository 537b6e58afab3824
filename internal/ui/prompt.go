package ui

import (
	"fmt"
	"os"

	survey "github.com/AlecAivazis/survey/v2"
)

// Confirm asks a yes/no question on the terminal. Question and answer are
// recorded in the run log.
func (l *Logger) Confirm(text string, defaultAnswer bool) (bool, error) {
	l.mu.Lock()
	l.endTailLocked()
	l.recordLocked("[ASK ] " + text + "\n")
	l.mu.Unlock()

	answer := defaultAnswer
	prompt := &survey.Confirm{Message: text, Default: defaultAnswer}
	if err := survey.AskOne(prompt, &answer, survey.WithStdio(os.Stdin, os.Stdout, os.Stderr)); err != nil {
		l.Error("prompt failed: %v", err)
		return false, err
	}

	l.record(fmt.Sprintf("[ASK ] answer: %t\n", answer))
	return answer, nil
}
