package agent

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/claybowl/taygency/internal/skills"
	"github.com/claybowl/taygency/internal/tasks"
	"github.com/claybowl/taygency/internal/tools"
)

// DefaultPersona opens every system prompt.
const DefaultPersona = `You are Taygency, a calm and practical personal task assistant. People message you from email, text or voice with whatever is on their mind. You turn it into organized tasks, keep their workspace tidy, and answer questions about what they have on their plate.`

// Guidelines are the fixed operating rules appended to every prompt.
const Guidelines = `## Guidelines

- Use the tools to change anything. Never claim a task was created, updated or completed unless the tool call succeeded.
- Capture every actionable item as its own task. Ask a short question only when a request cannot be acted on at all.
- Relative dates ("tomorrow", "Friday") are resolved against the current date and timezone above and passed as YYYY-MM-DD.
- Before creating a task that may already exist, check with list_tasks.
- When a skill matches the request, load it with execute_skill and follow its instructions.
- If a tool fails, read the error, fix the input and retry once, or explain the problem plainly.
- Keep the reply focused on what changed and what the user should do next.`

// channelStyles gives reply formatting guidance per channel.
var channelStyles = map[string]string{
	"sms":   "The user is on SMS. Reply in plain text, at most two short sentences, with no markdown, lists or emoji.",
	"voice": "The reply will be read aloud. Use plain spoken sentences, no markdown, symbols or IDs, and keep it under three sentences.",
	"email": "The user is on email. A short greeting is fine. Use markdown lists when summarizing several tasks.",
}

const defaultChannelStyle = "Use concise markdown: short paragraphs, bullet lists for several items, bold for task titles."

// ChannelStyle returns the reply guidance for a channel.
func ChannelStyle(channel string) string {
	if style, ok := channelStyles[NormalizeChannel(channel)]; ok {
		return style
	}
	return defaultChannelStyle
}

// PromptContext holds the workspace state a system prompt is built from.
type PromptContext struct {
	Channel            string
	Request            map[string]any // channel adapter context: sender, subject, ...
	Now                time.Time
	Timezone           string
	RecentTasks        []*tasks.Task
	Skills             []*skills.Skill
	Tools              []tools.ToolSpec
	CustomInstructions string
}

// PromptComposer assembles the system prompt section by section.
type PromptComposer struct {
	persona string
}

// NewPromptComposer creates a PromptComposer. An empty persona selects DefaultPersona.
func NewPromptComposer(persona string) *PromptComposer {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	return &PromptComposer{persona: persona}
}

// Compose builds the system prompt.
func (pc *PromptComposer) Compose(pctx PromptContext) string {
	sections := []string{
		pc.persona,
		currentContext(pctx),
		recentTasks(pctx.RecentTasks),
	}
	if s := availableSkills(pctx.Skills); s != "" {
		sections = append(sections, s)
	}
	if s := availableTools(pctx.Tools); s != "" {
		sections = append(sections, s)
	}
	sections = append(sections, "## Response Style\n\n"+ChannelStyle(pctx.Channel), Guidelines)
	if pctx.CustomInstructions != "" {
		sections = append(sections, "## Additional Instructions\n\n"+strings.TrimSpace(pctx.CustomInstructions))
	}
	return strings.Join(sections, "\n\n")
}

func currentContext(pctx PromptContext) string {
	now := pctx.Now
	tz := pctx.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		now = now.In(loc)
	} else {
		tz = "UTC"
		now = now.UTC()
	}
	var sb strings.Builder
	sb.WriteString("## Current Context\n\n")
	fmt.Fprintf(&sb, "- Date: %s\n", now.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&sb, "- Time: %s (%s)\n", now.Format("15:04"), tz)
	fmt.Fprintf(&sb, "- Channel: %s", NormalizeChannel(pctx.Channel))
	for _, k := range slices.Sorted(maps.Keys(pctx.Request)) {
		switch v := pctx.Request[k].(type) {
		case string, bool, float64, int, int64:
			fmt.Fprintf(&sb, "\n- %s: %v", k, v)
		}
	}
	return sb.String()
}

func recentTasks(list []*tasks.Task) string {
	if len(list) == 0 {
		return "## Recent Tasks\n\nNo active tasks yet."
	}
	var sb strings.Builder
	sb.WriteString("## Recent Tasks\n\n")
	for _, t := range list {
		fmt.Fprintf(&sb, "- [%s] %s (%s, %s)", t.ID, t.Title, t.Priority, t.Category)
		if t.Due != nil {
			fmt.Fprintf(&sb, " due %s", t.Due.Format("2006-01-02"))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func availableSkills(list []*skills.Skill) string {
	if len(list) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Available Skills\n\n")
	for _, s := range list {
		fmt.Fprintf(&sb, "- **%s**", s.Name)
		if s.Description != "" {
			fmt.Fprintf(&sb, ": %s", s.Description)
		}
		if s.Trigger != "" {
			fmt.Fprintf(&sb, " Use when: %s", s.Trigger)
		}
		if s.IsCode() {
			names := make([]string, len(s.Tools))
			for i, st := range s.Tools {
				names[i] = st.Name
			}
			fmt.Fprintf(&sb, " (tools: %s)", strings.Join(names, ", "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func availableTools(specs []tools.ToolSpec) string {
	if len(specs) == 0 {
		return ""
	}
	sorted := make([]tools.ToolSpec, len(specs))
	copy(sorted, specs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var sb strings.Builder
	sb.WriteString("## Available Tools\n\n")
	sb.WriteString("You have access to the following tools:\n")
	for _, s := range sorted {
		if s.Description != "" {
			fmt.Fprintf(&sb, "- **%s**: %s\n", s.Name, s.Description)
		} else {
			fmt.Fprintf(&sb, "- **%s**\n", s.Name)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
