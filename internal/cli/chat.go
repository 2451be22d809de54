// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL.
//
// Command: chat
// Short:   Start an interactive chat session
//
// Examples:
//   brainchat chat                 Start chat with the configured model
//   brainchat chat --model pro     Load the pro tier instead
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /new, /n            Start a new chat
//   /list, /l           List chats
//   /switch <n>         Switch to chat n
//   /delete [n]         Delete chat n (default: current), after confirming
//   /pin [n]            Pin or unpin chat n (default: current)
//   /model [name]       Show or switch model (lite, pro or an Ollama tag)
//   /status, /s         Show model and session status
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel current generation
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/brainchat/internal/app"
	"github.com/jeranaias/brainchat/internal/chat"
	"github.com/jeranaias/brainchat/internal/config"
	"github.com/jeranaias/brainchat/internal/lifecycle"
	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/util"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat with the local model. Type a message and press
Enter. Commands start with a slash; /help lists them.

Examples:
  brainchat chat
  brainchat chat --model pro`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model to load (lite, pro or an Ollama tag)")
}

// errLoadFailed is reported when the model could not be loaded.
var errLoadFailed = errors.New("model failed to load")

// =============================================================================
// LINE INPUT
// =============================================================================

// ChatCLI wraps liner for line editing and persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates the line editor and loads previous input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory reads the history file if it exists.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput prompts for one line and records non-empty input in history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Confirm asks a yes/no question. Anything but y or yes, including Ctrl+C,
// is a no. Answers are not added to history.
func (c *ChatCLI) Confirm(question string) bool {
	answer, err := c.line.Prompt(WarningStyle.Render(question) + " [y/N] ")
	if err != nil {
		return false
	}
	return isYes(answer)
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// SaveHistory writes history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL STATE
// =============================================================================

// chatCore is the part of the core the REPL drives.
type chatCore interface {
	State() app.State
	Catalog() model.Catalog
	Subscribe() (<-chan struct{}, func())
	CreateSession() string
	DeleteSession(id string)
	TogglePin(id string)
	SetActive(id string)
	Send(ctx context.Context, text string) (model.Message, error)
	LoadModel(ctx context.Context, nameOrID string) error
}

// Questions asked before destructive or slow commands.
const (
	confirmDeleteText = "Are you sure you want to delete this chat?"
	confirmSwitchText = "Switching models requires re-loading engine weights. Continue?"
)

// repl holds one interactive session's output state.
type repl struct {
	core      chatCore
	out       io.Writer
	confirm   func(question string) bool
	md        *markdownRenderer
	width     int
	startTime time.Time
	sent      int
}

func newREPL(core chatCore, out io.Writer, width int) *repl {
	return &repl{
		core:      core,
		out:       out,
		confirm:   func(string) bool { return false },
		md:        newMarkdownRenderer(width),
		width:     width,
		startTime: time.Now(),
	}
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

func runChat(cmd *cobra.Command, args []string) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, _, err := newLogger(cfg, defaultLogFile())
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, logger, modelFlag)
	if err != nil {
		return err
	}
	defer func() { _ = rt.close() }()

	ctx := context.Background()
	if err := rt.client.CheckRunning(ctx); err != nil {
		return fmt.Errorf("Ollama is not reachable at %s. Start it with: ollama serve", cfg.Backend.OllamaURL)
	}
	if err := rt.app.OnStart(ctx); err != nil {
		return err
	}

	r := newREPL(rt.app, cmd.OutOrStdout(), GetTerminalWidth())
	r.printWelcome()

	waitCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	if err := r.watchLoad(waitCtx, nil); err != nil {
		fmt.Fprintf(r.out, "%s %v. Use /model to try another model.\n", WarningStyle.Render("[Warning]"), err)
	}
	stop()

	input := NewChatCLI()
	defer input.Close()
	r.confirm = input.Confirm

	for {
		line, err := input.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt and Ctrl+D both exit
			fmt.Fprintln(r.out)
			r.printExitSummary()
			return nil
		}

		cont, err := r.handleLine(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
		if !cont {
			r.printExitSummary()
			return nil
		}
	}
}

// handleLine runs one line of input. cont is false when the user asked to
// exit.
func (r *repl) handleLine(ctx context.Context, line string) (cont bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return true, nil
	}
	if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
		return false, nil
	}
	if cmd, ok := parseSlashCommand(line); ok {
		return r.handleSlashCommand(ctx, cmd)
	}
	return true, r.sendMessage(ctx, line)
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// sendMessage runs one turn. Ctrl+C cancels the request.
func (r *repl) sendMessage(ctx context.Context, text string) error {
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprintln(r.out, DimStyle.Render("thinking..."))
	start := time.Now()
	reply, err := r.core.Send(sendCtx, text)
	if err != nil {
		return r.describeSendError(err)
	}
	r.sent++

	fmt.Fprintln(r.out, AssistantLabelStyle.Render("ai>"))
	fmt.Fprintln(r.out, r.md.Render(reply.Content))
	fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("(%s)", time.Since(start).Round(time.Millisecond))))
	return nil
}

func (r *repl) describeSendError(err error) error {
	var ierr *chat.InferenceError
	switch {
	case errors.Is(err, context.Canceled):
		return errors.New("cancelled")
	case errors.Is(err, chat.ErrModelNotReady):
		return errors.New("model is not loaded yet; check /status or pick one with /model")
	case errors.Is(err, chat.ErrBusy):
		return errors.New("still generating the previous reply")
	case errors.Is(err, chat.ErrEmptyMessage):
		return nil
	case errors.As(err, &ierr):
		return fmt.Errorf("generation failed: %v", ierr.Cause)
	default:
		return err
	}
}

// watchLoad prints load progress. With a nil done channel it waits for the
// current load to finish; otherwise it returns what done delivers.
func (r *repl) watchLoad(ctx context.Context, done <-chan error) error {
	updates, cancel := r.core.Subscribe()
	defer cancel()

	last := ""
	defer func() {
		if last != "" {
			fmt.Fprintln(r.out)
		}
	}()

	for {
		st := r.core.State().Model
		if done == nil {
			if st.IsLoaded {
				r.printProgress(&last, SuccessStyle.Render("Ready: ")+st.CurrentModelID)
				return nil
			}
			if st.StatusText == lifecycle.StatusLoadFailed {
				return errLoadFailed
			}
		}
		if st.StatusText != "" && !st.IsLoaded {
			r.printProgress(&last, DimStyle.Render(st.StatusText))
		}

		select {
		case err := <-done:
			return err
		case _, ok := <-updates:
			if !ok {
				return app.ErrClosed
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// printProgress rewrites the current line when text changes.
func (r *repl) printProgress(last *string, text string) {
	if text == *last {
		return
	}
	*last = text
	fmt.Fprintf(r.out, "\r\033[K%s", text)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs a parsed command. cont is false for /quit.
func (r *repl) handleSlashCommand(ctx context.Context, cmd slashCommand) (cont bool, err error) {
	arg := strings.Join(cmd.Args, " ")

	switch cmd.Name {
	case cmdHelp:
		r.printHelp()

	case cmdQuit:
		return false, nil

	case cmdNew:
		r.core.CreateSession()
		fmt.Fprintln(r.out, SuccessStyle.Render("[New chat]"))

	case cmdList:
		st := r.core.State()
		fmt.Fprintln(r.out, formatSessionMenu(st.Sessions, st.ActiveID, r.width))

	case cmdSwitch:
		if arg == "" {
			return true, errors.New("usage: /switch <n>")
		}
		st := r.core.State()
		s, err := resolveSession(arg, st.Sessions, st.ActiveID)
		if err != nil {
			return true, err
		}
		r.core.SetActive(s.ID)
		fmt.Fprintf(r.out, "%s %s\n", SuccessStyle.Render("[Switched]"), s.Title)
		r.printHistory(s)

	case cmdDelete:
		st := r.core.State()
		s, err := resolveSession(arg, st.Sessions, st.ActiveID)
		if err != nil {
			return true, err
		}
		if !r.confirm(confirmDeleteText) {
			fmt.Fprintln(r.out, DimStyle.Render("[Cancelled]"))
			return true, nil
		}
		r.core.DeleteSession(s.ID)
		fmt.Fprintf(r.out, "%s %s\n", WarningStyle.Render("[Deleted]"), s.Title)

	case cmdPin:
		st := r.core.State()
		s, err := resolveSession(arg, st.Sessions, st.ActiveID)
		if err != nil {
			return true, err
		}
		r.core.TogglePin(s.ID)
		verb := "[Pinned]"
		if s.IsPinned {
			verb = "[Unpinned]"
		}
		fmt.Fprintf(r.out, "%s %s\n", PinStyle.Render(verb), s.Title)

	case cmdModel:
		return true, r.handleModelCommand(ctx, arg)

	case cmdStatus:
		fmt.Fprintln(r.out, formatStatus(r.core.State()))

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", cmd.Name)
	}
	return true, nil
}

// handleModelCommand shows the catalog, or loads a model and waits for it.
// Switching away from the current model asks first.
func (r *repl) handleModelCommand(ctx context.Context, nameOrID string) error {
	if nameOrID == "" {
		current := r.core.State().Model.CurrentModelID
		fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Current:"), ValueStyle.Render(current))
		for _, m := range r.core.Catalog().Models() {
			marker := "  "
			if m.ID == current {
				marker = ActiveStyle.Render("> ")
			}
			fmt.Fprintf(r.out, "%s%-5s %s\n", marker, m.Tier, m.ID)
		}
		return nil
	}

	target := r.core.Catalog().Resolve(nameOrID)
	if target.ID != r.core.State().Model.CurrentModelID && !r.confirm(confirmSwitchText) {
		fmt.Fprintln(r.out, DimStyle.Render("[Cancelled]"))
		return nil
	}

	loadCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- r.core.LoadModel(loadCtx, nameOrID) }()
	if err := r.watchLoad(loadCtx, done); err != nil {
		if errors.Is(err, lifecycle.ErrSuperseded) {
			return errors.New("load replaced by a newer request")
		}
		return err
	}
	fmt.Fprintf(r.out, "%s %s\n", SuccessStyle.Render("[Model]"), r.core.State().Model.CurrentModelID)
	return nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (r *repl) printWelcome() {
	st := r.core.State()
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("brainchat"))
	fmt.Fprintln(r.out, RenderSeparator(30))
	if active, ok := activeSession(st); ok && len(active.Messages) > 0 {
		fmt.Fprintf(r.out, "%s %s (%d messages)\n", RenderLabel("Resuming:"), active.Title, len(active.Messages))
	}
	fmt.Fprintf(r.out, "%s %d\n", RenderLabel("Chats:"), len(st.Sessions))
	fmt.Fprintln(r.out, DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(r.out)
}

func (r *repl) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new, /n", "Start a new chat"},
		{"/list, /l", "List chats"},
		{"/switch <n>", "Switch to chat n"},
		{"/delete [n]", "Delete chat n (default: current)"},
		{"/pin [n]", "Pin or unpin chat n (default: current)"},
		{"/model [name]", "Show or switch model (lite, pro, tag)"},
		{"/status, /s", "Show model and session status"},
		{"/quit, /q", "Exit chat"},
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("Available Commands"))
	fmt.Fprintln(r.out, RenderSeparator(20))
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n", ValueStyle.Render(fmt.Sprintf("%-15s", c.cmd)), DimStyle.Render(c.desc))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, DimStyle.Render("Tip: Ctrl+C cancels the current reply, Ctrl+D exits"))
}

// printHistory shows a session's messages, one line each.
func (r *repl) printHistory(s model.ChatSession) {
	for _, msg := range s.Messages {
		label := UserLabelStyle.Render("you>")
		if msg.IsAssistant() {
			label = AssistantLabelStyle.Render("ai> ")
		}
		fmt.Fprintf(r.out, "  %s %s\n", label, util.TruncateWidth(util.SingleLine(msg.Content), r.width-10))
	}
}

func (r *repl) printExitSummary() {
	if r.sent == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("Goodbye!"))
		return
	}
	elapsed := time.Since(r.startTime).Round(time.Second)
	fmt.Fprintf(r.out, "%s %d messages in %s. Goodbye!\n", DimStyle.Render("Session:"), r.sent, elapsed)
}

func activeSession(st app.State) (model.ChatSession, bool) {
	for _, s := range st.Sessions {
		if s.ID == st.ActiveID {
			return s, true
		}
	}
	return model.ChatSession{}, false
}
