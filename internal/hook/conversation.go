package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AppendConversation adds one exchange to the Markdown log at path,
// writing the "# LLM Conversations" header when the file is new.
func AppendConversation(path string, in Interaction, at time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating conversation directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening conversation log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("opening conversation log: %w", err)
	}
	if info.Size() == 0 {
		if _, err := f.WriteString("# LLM Conversations\n"); err != nil {
			return fmt.Errorf("writing conversation log: %w", err)
		}
	}

	entry := fmt.Sprintf("---\n\n## %s\n\n**User:**\n%s\n\n**LLM:**\n%s\n\n",
		at.Format("2006-01-02 15:04:05"), in.Prompt, in.Response)
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("writing conversation log: %w", err)
	}
	return nil
}
