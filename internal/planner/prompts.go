package planner

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// defaultPlannerPrompt is used when no prompt files are installed.
const defaultPlannerPrompt = `You are Lulo, a browser automation planner.
Turn the user's request into an ordered list of steps and submit it
with the propose_steps tool. Available actions: navigate, browse,
click, type, extract, email, search, guide, preview, think.
Each step needs a short human-readable description; the user reads the
descriptions as your reply. Use "think" for narration without a
browser effect. Prefer "browse" to open pages, "click"/"type" with a
CSS selector or the visible text of the element, "email" with
to/subject/body fields and "search" with a query field.`

// PromptManager assembles the planner system prompt from a directory
// of markdown fragments, in a fixed order so the prompt is stable
// across runs.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetPlannerPrompt concatenates the prompt fragments, or falls back
// to the built-in prompt when none are installed.
func (pm *PromptManager) GetPlannerPrompt() string {
	files, err := os.ReadDir(pm.Directory)
	if err != nil {
		return defaultPlannerPrompt
	}

	order := map[string]int{
		"identity.md": 1,
		"safety.md":   2,
		"planner.md":  3,
		"sites.md":    4,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
			continue
		}
		path := filepath.Join(pm.Directory, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
			continue
		}
		contents = append(contents, string(data))
	}

	if len(contents) == 0 {
		return defaultPlannerPrompt
	}
	return strings.Join(contents, "\n\n---\n\n")
}
