package ndchat

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values. A negative
// index means "no color".
type Theme struct {
	UserMsg  int // User message accent
	Status   int // Ephemeral status lines and the pending indicator
	ToolCall int // Tool call and tool result headers
	Error    int // Tool errors and terminal errors
	Success  int // Successful tool results
	Muted    int // Status bar, placeholders, tool arguments
	Accent   int // Headings, links
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		UserMsg:  4,
		Status:   6,
		ToolCall: 3,
		Error:    1,
		Success:  2,
		Muted:    8,
		Accent:   5,
	}
}
