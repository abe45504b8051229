package session

// CategoryOther is the activity bucket for tools with no explicit mapping.
const CategoryOther = "other"

// toolCategories maps tool names to activity_breakdown buckets. The table is
// owned by this package; instrumentation outside the engine only passes tool
// names.
var toolCategories = map[string]string{
	"read":       "navigation",
	"open":       "navigation",
	"list":       "navigation",
	"edit":       "editing",
	"write":      "editing",
	"patch":      "editing",
	"format":     "editing",
	"grep":       "searching",
	"glob":       "searching",
	"search":     "searching",
	"bash":       "execution",
	"run":        "execution",
	"test":       "execution",
	"build":      "execution",
	"fetch":      "research",
	"web_search": "research",
}

// Categorize returns the activity bucket for a tool name.
func Categorize(toolName string) string {
	if cat, ok := toolCategories[toolName]; ok {
		return cat
	}
	return CategoryOther
}
