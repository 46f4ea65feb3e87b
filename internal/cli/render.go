package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/linewalk/internal/walk"
)

// Color palette.
var (
	crawlColor   = lipgloss.Color("#3B82F6") // Blue
	analyzeColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for text output.
var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(10)

	seqStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(6).
			Align(lipgloss.Right)

	crawlStyle = lipgloss.NewStyle().
			Foreground(crawlColor).
			Width(8)

	analyzeStyle = lipgloss.NewStyle().
			Foreground(analyzeColor).
			Width(8)

	successStyle = lipgloss.NewStyle().Foreground(successColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
)

// traceView is what the text renderer shows for one run.
type traceView struct {
	RunID  string
	Digest string
	Result walk.Result
}

// renderTrace writes a run summary followed by one line per event.
func renderTrace(w io.Writer, v traceView) {
	fmt.Fprintln(w, titleStyle.Render("run "+v.RunID))
	renderField(w, "config", v.Result.Config.String())
	renderField(w, "reason", renderReason(v.Result))
	if v.Result.Rejection != nil {
		renderField(w, "rejection", errorStyle.Render(v.Result.Rejection.Message))
	}
	renderField(w, "events", fmt.Sprintf("%d", len(v.Result.Events)))
	if v.Digest != "" {
		renderField(w, "digest", v.Digest)
	}

	if len(v.Result.Events) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, ev := range v.Result.Events {
		fmt.Fprintln(w, renderEvent(ev))
	}
}

func renderField(w io.Writer, label, value string) {
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value))
}

func renderReason(r walk.Result) string {
	if r.Rejected() && r.Rejection != nil {
		return errorStyle.Render(fmt.Sprintf("%s (%s)", r.Reason, r.Rejection.Code))
	}
	return successStyle.Render(string(r.Reason))
}

// renderEvent renders "    #0 crawl   1".
func renderEvent(ev walk.Event) string {
	style := crawlStyle
	if ev.Phase == walk.PhaseAnalyze {
		style = analyzeStyle
	}
	return strings.Join([]string{
		seqStyle.Render(fmt.Sprintf("#%d", ev.Seq)),
		style.Render(ev.Phase.String()),
		fmt.Sprintf("%d", ev.Position),
	}, " ")
}

// statusMark renders a pass/fail check mark.
func statusMark(ok bool) string {
	if ok {
		return successStyle.Render("✓")
	}
	return errorStyle.Render("✗")
}
