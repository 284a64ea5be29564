// Package cli implements "formgate admin", the offline tool for inspecting
// and editing the credential record.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/deemkeen/formgate/util"
)

// Session is where commands read input and write output, usually stdin and stdout
type Session interface {
	io.Reader
	io.Writer
}

// Store is the part of db.BanStore the admin commands use
type Store interface {
	Disabled() bool
	Snapshot() map[string]int
	ResetAll() (int, error)
	SetSecret(hash string) error
	Location() string
}

// Handler processes CLI commands
type Handler struct {
	session  Session
	store    Store
	output   *Output
	jsonMode bool
	conf     *util.AppConfig
}

func NewHandler(s Session, store Store, conf *util.AppConfig) *Handler {
	return &Handler{
		session: s,
		store:   store,
		conf:    conf,
	}
}

// Execute parses and executes a CLI command
func (h *Handler) Execute(args []string) error {
	args, h.jsonMode = parseGlobalFlags(args)
	h.output = NewOutput(h.session, h.jsonMode)

	if len(args) == 0 {
		return h.showHelp()
	}

	cmd := strings.ToLower(args[0])
	switch cmd {
	case "attempts":
		return h.handleAttempts()
	case "reset":
		return h.handleReset()
	case "set-secret":
		return h.handleSetSecret()
	case "--help", "-h", "help":
		return h.showHelp()
	default:
		err := fmt.Errorf("unknown command: %s", cmd)
		h.output.Error(err)
		return err
	}
}

// parseGlobalFlags extracts global flags like --json from args
func parseGlobalFlags(args []string) ([]string, bool) {
	jsonMode := false
	var filtered []string

	for _, arg := range args {
		switch arg {
		case "--json", "-j":
			jsonMode = true
		default:
			filtered = append(filtered, arg)
		}
	}

	return filtered, jsonMode
}

func (h *Handler) showHelp() error {
	if h.output.IsJSON() {
		h.output.JSON(HelpResponse{
			Version: util.GetVersion(),
			Commands: []HelpCommand{
				{Name: "attempts", Description: "List failed authentication attempts per address", Usage: "attempts"},
				{Name: "reset", Description: "Clear every attempt counter, lifting all bans", Usage: "reset"},
				{Name: "set-secret", Description: "Store the hash of user:password read from stdin", Usage: "set-secret"},
				{Name: "help", Description: "Show this help message", Usage: "help"},
			},
			GlobalFlags: []string{"--json, -j: output in JSON format"},
		})
		return nil
	}

	h.output.Println(titleStyle.Render(util.Name + " admin") + " - manage the credential record")
	h.output.Println("")
	h.output.Println("Usage: formgate admin <command> [options]")
	h.output.Println("")
	h.output.Println("Commands:")
	h.output.Println("  attempts      List failed authentication attempts per address")
	h.output.Println("  reset         Clear every attempt counter, lifting all bans")
	h.output.Println("  set-secret    Store the hash of user:password read from stdin")
	h.output.Println("  help          Show this help message")
	h.output.Println("")
	h.output.Println("Global flags:")
	h.output.Println("  --json, -j    Output in JSON format")
	h.output.Println("")
	h.output.Println("Examples:")
	h.output.Println("  formgate admin attempts -j")
	h.output.Println("  echo 'admin:hunter2' | formgate admin set-secret")
	h.output.Println("")
	h.output.Println("Stop the server before running reset or set-secret.")
	return nil
}
