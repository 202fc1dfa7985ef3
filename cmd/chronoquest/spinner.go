package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const spinnerInterval = 90 * time.Millisecond

var spinnerFrames = []string{"◴", "◷", "◶", "◵"}

// spinner animates a status line while a network call runs. On a non-TTY
// it prints the message once.
type spinner struct {
	w       io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
}

func startSpinner(w io.Writer, message string) *spinner {
	s := &spinner{w: w, message: message, stop: make(chan struct{}), done: make(chan struct{})}
	if !isTTY() {
		fmt.Fprintf(w, "%s...\n", message)
		close(s.done)
		return s
	}

	go func() {
		defer close(s.done)
		style := lipgloss.NewStyle().Foreground(colorPrimary)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(w, "\r%s %s", style.Render(spinnerFrames[i%len(spinnerFrames)]), message)
			select {
			case <-s.stop:
				fmt.Fprint(w, "\r"+strings.Repeat(" ", lipgloss.Width(message)+4)+"\r")
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}

func (s *spinner) Stop() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.stop)
	<-s.done
}

// runWithSpinner runs op behind a spinner.
func runWithSpinner(w io.Writer, message string, op func() error) error {
	if outputJSON {
		return op()
	}
	s := startSpinner(w, message)
	err := op()
	s.Stop()
	return err
}
