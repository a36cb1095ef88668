package oracle

import (
	"fmt"
	"strings"

	"github.com/groktime-project/groktime/internal/core"
)

// Instructions is the system prompt sent with every request.
func Instructions(vocab core.Vocabulary) string {
	return fmt.Sprintf(`You produce Grok patterns that parse a single log line in full.

Only use field names from this list: %s

Rules:
- Choose the most specific Grok pattern for each field: INT or NUMBER for numbers such as ports and pids, IP for addresses, PATH for file paths, USERNAME for logins, HOSTNAME for host names (not HOST), SYSLOGTIMESTAMP or HTTPDATE for timestamps.
- Prefer WORD over DATA. Use DATA only when a field may contain spaces and is bounded by clear delimiters on both sides.
- Use GREEDYDATA only at the end of a pattern.
- Treat known literal words in the log line as literal text in the pattern, not as fields to capture.
- Escape literal square brackets with a backslash: \[ and \].
- Values you do not want to keep may use an unnamed reference such as %%{WORD}.
- The pattern must match the whole line.
- Return the Grok pattern in the pattern field and an explanation in the note field.`,
		strings.Join(vocab.Names(), ", "))
}
