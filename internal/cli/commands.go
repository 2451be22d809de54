// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// commands.go - Slash command parsing and session selection for the REPL.

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/brainchat/internal/app"
	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/storage"
	"github.com/jeranaias/brainchat/internal/util"
)

// Slash command names after alias resolution.
const (
	cmdHelp   = "/help"
	cmdNew    = "/new"
	cmdList   = "/list"
	cmdSwitch = "/switch"
	cmdDelete = "/delete"
	cmdPin    = "/pin"
	cmdModel  = "/model"
	cmdStatus = "/status"
	cmdQuit   = "/quit"
)

var commandAliases = map[string]string{
	"/":       cmdHelp,
	"/h":      cmdHelp,
	"/?":      cmdHelp,
	"/help":   cmdHelp,
	"/n":      cmdNew,
	"/new":    cmdNew,
	"/l":      cmdList,
	"/ls":     cmdList,
	"/list":   cmdList,
	"/sw":     cmdSwitch,
	"/switch": cmdSwitch,
	"/rm":     cmdDelete,
	"/delete": cmdDelete,
	"/pin":    cmdPin,
	"/m":      cmdModel,
	"/model":  cmdModel,
	"/s":      cmdStatus,
	"/status": cmdStatus,
	"/q":      cmdQuit,
	"/quit":   cmdQuit,
	"/exit":   cmdQuit,
}

// slashCommand is one parsed REPL command.
type slashCommand struct {
	Name string
	Args []string
}

// parseSlashCommand splits a "/name arg..." line. ok is false for lines that
// are not commands. Unknown names are returned as typed.
func parseSlashCommand(input string) (cmd slashCommand, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return slashCommand{}, false
	}
	parts := strings.Fields(input)
	name := strings.ToLower(parts[0])
	if canonical, found := commandAliases[name]; found {
		name = canonical
	}
	return slashCommand{Name: name, Args: parts[1:]}, true
}

// completeCommand returns the command names starting with line.
func completeCommand(line string) []string {
	if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
		return nil
	}
	var out []string
	for _, name := range []string{cmdHelp, cmdNew, cmdList, cmdSwitch, cmdDelete, cmdPin, cmdModel, cmdStatus, cmdQuit} {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			out = append(out, name)
		}
	}
	return out
}

// resolveSession picks a session by 1-based list number or id. An empty
// selector means the active session.
func resolveSession(selector string, sessions []model.ChatSession, activeID string) (model.ChatSession, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		for _, s := range sessions {
			if s.ID == activeID {
				return s, nil
			}
		}
		return model.ChatSession{}, fmt.Errorf("no active session")
	}

	if n, err := strconv.Atoi(selector); err == nil {
		if n < 1 || n > len(sessions) {
			return model.ChatSession{}, fmt.Errorf("no session #%d (have %d)", n, len(sessions))
		}
		return sessions[n-1], nil
	}

	var match []model.ChatSession
	for _, s := range sessions {
		if s.ID == selector {
			return s, nil
		}
		if strings.HasPrefix(s.ID, selector) {
			match = append(match, s)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return model.ChatSession{}, fmt.Errorf("no session matches %q", selector)
	default:
		return model.ChatSession{}, fmt.Errorf("%q matches %d sessions", selector, len(match))
	}
}

// formatSessionMenu lists sessions for the REPL, pinned first, numbered in
// collection order so numbers match what /switch accepts.
func formatSessionMenu(sessions []model.ChatSession, activeID string, width int) string {
	if len(sessions) == 0 {
		return DimStyle.Render("No sessions.")
	}

	index := make(map[string]int, len(sessions))
	for i, s := range sessions {
		index[s.ID] = i + 1
	}
	var pinned, others []model.ChatSession
	for _, s := range sessions {
		if s.IsPinned {
			pinned = append(pinned, s)
		} else {
			others = append(others, s)
		}
	}

	titleWidth := width - 16
	if titleWidth < 20 {
		titleWidth = 20
	}

	var sb strings.Builder
	writeGroup := func(header string, group []model.ChatSession) {
		if len(group) == 0 {
			return
		}
		sb.WriteString(TitleStyle.Render(header) + "\n")
		for _, s := range group {
			marker := "  "
			if s.ID == activeID {
				marker = ActiveStyle.Render("> ")
			}
			title := util.TruncateWidth(util.SingleLine(s.Title), titleWidth)
			line := fmt.Sprintf("%s%3d. %s", marker, index[s.ID], title)
			if s.IsPinned {
				line += " " + PinStyle.Render("*")
			}
			line += DimStyle.Render(fmt.Sprintf(" (%d)", len(s.Messages)))
			sb.WriteString(line + "\n")
			if preview := storage.Preview(s, titleWidth); preview != "" && preview != s.Title {
				sb.WriteString("       " + DimStyle.Render(preview) + "\n")
			}
		}
	}
	writeGroup("Pinned", pinned)
	writeGroup("Chats", others)
	return strings.TrimRight(sb.String(), "\n")
}

// formatStatus renders the model and session summary shown by /status.
func formatStatus(st app.State) string {
	var sb strings.Builder
	modelID := st.Model.CurrentModelID
	if modelID == "" {
		modelID = "(none)"
	}
	status := "loading"
	if st.Model.IsLoaded {
		status = "ready"
	}

	sb.WriteString(RenderLabel("Model:") + ValueStyle.Render(modelID) + " " + RenderStatus(status) + "\n")
	sb.WriteString(RenderLabel("Status:") + ValueStyle.Render(st.Model.StatusText) + "\n")
	if !st.Model.IsLoaded && st.Model.LoadProgressPercent > 0 {
		sb.WriteString(RenderLabel("Progress:") + ValueStyle.Render(fmt.Sprintf("%d%%", st.Model.LoadProgressPercent)) + "\n")
	}
	sb.WriteString(RenderLabel("Sessions:") + ValueStyle.Render(strconv.Itoa(len(st.Sessions))) + "\n")
	sb.WriteString(RenderLabel("Messages:") + ValueStyle.Render(strconv.Itoa(len(st.Messages))) + "\n")
	if st.IsBusy {
		sb.WriteString(RenderLabel("Busy:") + WarningStyle.Render("generating") + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
