package main

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"

	"blockmsg/dapp"
	"blockmsg/styles"
)

// -------------------- MODEL --------------------

// model represents the application state following The Elm Architecture
type model struct {
	w, h int

	app    *app
	client *dapp.Client
	// ctx bounds every effect; cancelled on quit
	ctx    context.Context
	cancel context.CancelFunc

	// dApp state, changed only through dispatch
	state dapp.State

	// message composer
	input   textinput.Model
	editing bool

	spin spinner.Model

	// clipboard feedback
	copiedMsg     string
	copiedMsgTime time.Time

	showQR bool

	// wallet approvals, answered one at a time
	approvals    []approvalRequestMsg
	approvalForm *huh.Form

	// account list popup
	showAccountPopup bool
	accountCursor    int
	accountList      []common.Address

	// logger panel
	logEnabled  bool
	logger      *log.Logger
	logBuffer   *logBuffer
	logViewport viewport.Model
	logReady    bool
	logSpinner  spinner.Model
}

// -------------------- INIT --------------------

// newModel creates the model around a configured app
func newModel(a *app, logger *log.Logger, buf *logBuffer) model {
	ctx, cancel := context.WithCancel(context.Background())

	// message input
	in := textinput.New()
	in.Placeholder = "Write something for the board…"
	in.Prompt = "Message: "
	in.PromptStyle = lipgloss.NewStyle().Foreground(styles.CAccent)
	in.TextStyle = lipgloss.NewStyle().Foreground(styles.CText)
	in.Cursor.Style = lipgloss.NewStyle().Foreground(styles.CAccent2)
	in.CharLimit = 280
	in.Width = 48

	// spinner
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(styles.CAccent2)

	// Initialize log viewport
	vp := viewport.New(0, 20) // Will be resized in Update on first WindowSizeMsg
	vp.Style = lipgloss.NewStyle().
		Foreground(styles.CText).
		Background(styles.CPanel)

	// Initialize log spinner
	logSpin := spinner.New()
	logSpin.Spinner = spinner.Dot
	logSpin.Style = lipgloss.NewStyle().Foreground(styles.CAccent2)

	return model{
		app:         a,
		client:      a.client,
		ctx:         ctx,
		cancel:      cancel,
		input:       in,
		spin:        sp,
		logEnabled:  a.cfg.Logger,
		logger:      logger,
		logBuffer:   buf,
		logViewport: vp,
		logSpinner:  logSpin,
	}
}

// Init implements tea.Model interface and returns initial commands
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick}
	if m.logEnabled {
		cmds = append(cmds, initLogViewport(), m.logSpinner.Tick)
	}
	for _, eff := range m.client.Init() {
		cmds = append(cmds, effectCmd(m.ctx, eff))
	}
	return tea.Batch(cmds...)
}

// newLogger creates the styled logger behind the log panel
func newLogger(buf *logBuffer) *log.Logger {
	logger := log.NewWithOptions(buf, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	logger.SetLevel(log.DebugLevel)
	logger.SetStyles(&log.Styles{
		Timestamp: lipgloss.NewStyle().Foreground(cMuted),
		Caller:    lipgloss.NewStyle().Faint(true),
		Prefix:    lipgloss.NewStyle().Bold(true).Foreground(cAccent2),
		Message:   lipgloss.NewStyle().Foreground(cText),
		Key:       lipgloss.NewStyle().Foreground(cAccent),
		Value:     lipgloss.NewStyle().Foreground(cText),
		Separator: lipgloss.NewStyle().Faint(true),
		Levels: map[log.Level]lipgloss.Style{
			log.DebugLevel: lipgloss.NewStyle().Foreground(cMuted).SetString("DEBUG"),
			log.InfoLevel:  lipgloss.NewStyle().Foreground(cAccent2).SetString("INFO"),
			log.WarnLevel:  lipgloss.NewStyle().Foreground(cWarn).SetString("WARN"),
			log.ErrorLevel: lipgloss.NewStyle().Foreground(cError).SetString("ERROR"),
		},
	})
	return logger
}

// runTUI starts the interactive dApp
func runTUI(opts *rootOptions) error {
	buf := &logBuffer{}
	logger := newLogger(buf)

	var p *tea.Program
	approver := promptApprover(func(msg tea.Msg) { p.Send(msg) })

	a, err := setup(opts, logger, approver)
	if err != nil {
		return err
	}
	defer a.close()

	m := newModel(a, logger, buf)
	defer m.cancel()

	p = tea.NewProgram(&m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
