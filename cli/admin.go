package cli

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/deemkeen/formgate/util"
)

var ErrEmptySecret = errors.New("empty secret, expected user:password on stdin")

func (h *Handler) handleAttempts() error {
	if h.store.Disabled() {
		err := fmt.Errorf("no credential record at %s, authentication is disabled", h.store.Location())
		h.output.Error(err)
		return err
	}

	snap := h.store.Snapshot()
	items := make([]AttemptItem, 0, len(snap))
	for addr, n := range snap {
		items = append(items, AttemptItem{
			Address: addr,
			Count:   n,
			Banned:  !h.conf.Conf.DisableBan && n >= h.conf.Conf.AuthAttempts,
		})
	}
	slices.SortFunc(items, func(a, b AttemptItem) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})

	if h.output.IsJSON() {
		h.output.JSON(AttemptsResponse{
			Store:       h.store.Location(),
			MaxAttempts: h.conf.Conf.AuthAttempts,
			Attempts:    items,
			Count:       len(items),
		})
		return nil
	}

	if len(items) == 0 {
		h.output.Println("No attempts recorded.")
		return nil
	}
	h.output.Println(titleStyle.Render(fmt.Sprintf("Failed attempts in %s (ban after %d)", h.store.Location(), h.conf.Conf.AuthAttempts)))
	for _, item := range items {
		line := fmt.Sprintf("  %-40s %d", item.Address, item.Count)
		if item.Banned {
			line += " " + bannedStyle.Render("banned")
		}
		h.output.Println(line)
	}
	return nil
}

func (h *Handler) handleReset() error {
	cleared, err := h.store.ResetAll()
	if err != nil {
		h.output.Error(err)
		return err
	}

	if h.output.IsJSON() {
		h.output.JSON(ResetResponse{Status: "ok", Cleared: cleared})
		return nil
	}
	if cleared == 0 {
		h.output.Println("No attempts to reset.")
		return nil
	}
	h.output.Success("Reset attempts for %d address(es).\n", cleared)
	return nil
}

func (h *Handler) handleSetSecret() error {
	line, err := bufio.NewReader(h.session).ReadString('\n')
	if err != nil && line == "" {
		err = ErrEmptySecret
		h.output.Error(err)
		return err
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		h.output.Error(ErrEmptySecret)
		return ErrEmptySecret
	}
	if !strings.Contains(secret, ":") {
		h.output.ErrorWithDetails("secret must look like user:password", "the browser sends both parts joined by a colon")
		return fmt.Errorf("secret without a colon")
	}

	if err := h.store.SetSecret(util.HashSecret([]byte(secret))); err != nil {
		h.output.Error(err)
		return err
	}

	if h.output.IsJSON() {
		h.output.JSON(SecretResponse{Status: "ok", Store: h.store.Location()})
		return nil
	}
	h.output.Success("Stored new secret in %s.\n", h.store.Location())
	return nil
}
