package cli

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	bannedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// Output handles formatting responses in text or JSON format
type Output struct {
	writer   io.Writer
	jsonMode bool
}

func NewOutput(w io.Writer, jsonMode bool) *Output {
	return &Output{
		writer:   w,
		jsonMode: jsonMode,
	}
}

// IsJSON returns true if output is in JSON mode
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

func (o *Output) Error(err error) {
	if o.jsonMode {
		o.writeJSON(map[string]any{
			"error": err.Error(),
		})
	} else {
		fmt.Fprintf(o.writer, "Error: %v\n", err)
	}
}

// ErrorWithDetails outputs an error with additional details
func (o *Output) ErrorWithDetails(message string, details string) {
	if o.jsonMode {
		o.writeJSON(map[string]any{
			"error":   message,
			"details": details,
		})
	} else {
		fmt.Fprintf(o.writer, "Error: %s (%s)\n", message, details)
	}
}

// Success outputs a success message (text mode only, JSON uses specific methods)
func (o *Output) Success(format string, args ...any) {
	if !o.jsonMode {
		fmt.Fprintf(o.writer, format, args...)
	}
}

// Println outputs a line with newline (text mode only)
func (o *Output) Println(text string) {
	if !o.jsonMode {
		fmt.Fprintln(o.writer, text)
	}
}

// JSON outputs any value as JSON
func (o *Output) JSON(v any) {
	if o.jsonMode {
		o.writeJSON(v)
	}
}

func (o *Output) writeJSON(v any) {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(o.writer, `{"error":"failed to marshal JSON: %s"}`+"\n", err.Error())
		return
	}
	fmt.Fprintln(o.writer, string(data))
}

// AttemptItem is one address in the attempts listing
type AttemptItem struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
	Banned  bool   `json:"banned"`
}

// AttemptsResponse represents the attempts output
type AttemptsResponse struct {
	Store       string        `json:"store"`
	MaxAttempts int           `json:"max_attempts"`
	Attempts    []AttemptItem `json:"attempts"`
	Count       int           `json:"count"`
}

// ResetResponse represents the reset output
type ResetResponse struct {
	Status  string `json:"status"`
	Cleared int    `json:"cleared"`
}

// SecretResponse represents the set-secret output
type SecretResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// HelpCommand represents a command in help output
type HelpCommand struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Usage       string   `json:"usage"`
	Flags       []string `json:"flags,omitempty"`
}

// HelpResponse represents the help output
type HelpResponse struct {
	Version     string        `json:"version"`
	Commands    []HelpCommand `json:"commands"`
	GlobalFlags []string      `json:"global_flags"`
}
