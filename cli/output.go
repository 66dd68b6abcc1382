package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/compozy/molrag/engine/answer"
	"github.com/compozy/molrag/engine/knowledge"
)

// Output format constants
const (
	OutputFormatJSON = "json"
	OutputFormatText = "text"
	OutputFormatAuto = "auto"
)

// isRunningInCI checks if we're running in a CI/CD environment
func isRunningInCI() bool {
	if os.Getenv("CI") != "" {
		return true
	}
	return hasAnyEnvVar(getCIEnvironmentVars())
}

// getCIEnvironmentVars returns list of CI environment variables
func getCIEnvironmentVars() []string {
	return []string{
		"JENKINS_HOME",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"TRAVIS",
		"BUILDKITE",
		"DRONE",
		"TF_BUILD",           // Azure DevOps
		"BITBUCKET_COMMIT",   // Bitbucket Pipelines
		"CODEBUILD_BUILD_ID", // AWS CodeBuild
		"TEAMCITY_VERSION",
		"CONTINUOUS_INTEGRATION",
	}
}

func hasAnyEnvVar(vars []string) bool {
	for _, v := range vars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// isInteractiveEnvironment reports whether stdout is a human facing terminal.
func isInteractiveEnvironment() bool {
	if isRunningInCI() {
		return false
	}
	if !isTerminal(os.Stdout) {
		return false
	}
	term := os.Getenv("TERM")
	return term != "dumb" && term != ""
}

// DetectOutputFormat honours --output and falls back to text on terminals,
// JSON everywhere else.
func DetectOutputFormat(cmd *cobra.Command) string {
	if format, err := cmd.Flags().GetString("output"); err == nil {
		switch strings.ToLower(format) {
		case OutputFormatJSON:
			return OutputFormatJSON
		case OutputFormatText:
			return OutputFormatText
		}
	}
	if isInteractiveEnvironment() {
		return OutputFormatText
	}
	return OutputFormatJSON
}

// ShouldUseColor determines if colored output should be used
func ShouldUseColor(cmd *cobra.Command) bool {
	if noColor, err := cmd.Flags().GetBool("no-color"); err == nil && noColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isInteractiveEnvironment()
}

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{title: plain, label: plain, muted: plain, warning: plain}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label:   lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

// Renderer writes command results as styled text or JSON.
type Renderer struct {
	w      io.Writer
	format string
	styles styles
}

func NewRenderer(w io.Writer, format string, color bool) *Renderer {
	return &Renderer{w: w, format: format, styles: newStyles(color)}
}

func newRendererFor(cmd *cobra.Command) *Renderer {
	return NewRenderer(cmd.OutOrStdout(), DetectOutputFormat(cmd), ShouldUseColor(cmd))
}

type passageView struct {
	ID    string  `json:"id"`
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
	Title string  `json:"title,omitempty"`
	URL   string  `json:"url,omitempty"`
	Text  string  `json:"text"`
}

type answerView struct {
	RequestID      string                    `json:"request_id"`
	Answer         string                    `json:"answer"`
	Verdict        answer.Verdict            `json:"verdict"`
	Outcome        answer.Outcome            `json:"outcome"`
	UsedWebSearch  bool                      `json:"used_web_search"`
	TrustedSources []answer.TrustedSource    `json:"trusted_sources,omitempty"`
	Passages       []passageView             `json:"passages"`
	History        []answer.ConversationTurn `json:"history,omitempty"`
}

type verdictView struct {
	Query    string         `json:"query"`
	Verdict  answer.Verdict `json:"verdict"`
	Passages []passageView  `json:"passages"`
}

func toPassageViews(passages []knowledge.Passage) []passageView {
	out := make([]passageView, len(passages))
	for i := range passages {
		p := &passages[i]
		out[i] = passageView{ID: p.ID, Rank: p.Rank, Score: p.Score, Title: p.Title, URL: p.URL, Text: p.Text}
	}
	return out
}

func (r *Renderer) writeJSON(data any) error {
	encoder := json.NewEncoder(r.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Answer renders a router result. withHistory adds the updated history to JSON output.
func (r *Renderer) Answer(res *answer.AnswerResult, withHistory bool) error {
	if r.format == OutputFormatJSON {
		view := answerView{
			RequestID:      res.RequestID.String(),
			Answer:         res.Answer,
			Verdict:        res.Verdict,
			Outcome:        res.Outcome,
			UsedWebSearch:  res.UsedWebSearch,
			TrustedSources: res.TrustedSources,
			Passages:       toPassageViews(res.Context.Passages),
		}
		if withHistory {
			view.History = res.History
		}
		return r.writeJSON(view)
	}
	var b strings.Builder
	b.WriteString(res.Answer)
	b.WriteString("\n")
	if len(res.TrustedSources) > 0 {
		b.WriteString("\n")
		b.WriteString(r.styles.label.Render("Sources"))
		b.WriteString("\n")
		for _, s := range res.TrustedSources {
			name := s.Title
			if name == "" {
				name = s.Domain
			}
			fmt.Fprintf(&b, "  %s %s\n", name, r.styles.muted.Render(s.URL))
		}
	}
	meta := fmt.Sprintf("%s · %d passages", res.Outcome, res.Context.Len())
	if res.UsedWebSearch {
		meta += " · web search"
	}
	b.WriteString(r.styles.muted.Render(meta))
	b.WriteString("\n")
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Passages renders a retrieval bundle.
func (r *Renderer) Passages(bundle *knowledge.ContextBundle) error {
	if r.format == OutputFormatJSON {
		return r.writeJSON(struct {
			Passages []passageView `json:"passages"`
		}{Passages: toPassageViews(bundle.Passages)})
	}
	if bundle.Len() == 0 {
		_, err := fmt.Fprintln(r.w, r.styles.warning.Render("No passages found"))
		return err
	}
	var b strings.Builder
	for _, p := range bundle.Passages {
		heading := p.Title
		if heading == "" {
			heading = p.ID
		}
		fmt.Fprintf(&b, "%s %s\n", r.styles.title.Render(fmt.Sprintf("%d. %s", p.Rank, heading)),
			r.styles.muted.Render(fmt.Sprintf("(score %.4f)", p.Score)))
		if p.URL != "" {
			fmt.Fprintf(&b, "   %s\n", r.styles.muted.Render(p.URL))
		}
		fmt.Fprintf(&b, "   %s\n\n", truncate(p.Text, 280))
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Verdict renders a judge decision together with the context it saw.
func (r *Renderer) Verdict(query string, verdict answer.Verdict, bundle *knowledge.ContextBundle) error {
	if r.format == OutputFormatJSON {
		return r.writeJSON(verdictView{Query: query, Verdict: verdict, Passages: toPassageViews(bundle.Passages)})
	}
	style := r.styles.title
	if verdict != answer.VerdictSufficient {
		style = r.styles.warning
	}
	_, err := fmt.Fprintf(r.w, "%s %s\n", style.Render(verdict.String()),
		r.styles.muted.Render(fmt.Sprintf("(%d passages)", bundle.Len())))
	return err
}

func truncate(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "…"
}
