package assignment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Metadata is the machine-parseable footer embedded in every assignment
// comment so the decision inputs can be audited later.
type Metadata struct {
	Assignees  []string   `json:"assignees"`
	PriceLabel string     `json:"priceLabel,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Revision   string     `json:"revision,omitempty"`
}

const (
	metadataOpen  = "<!-- assignbot-metadata\n"
	metadataClose = "\n-->"
)

// renderMetadata serializes the metadata block into an HTML comment.
func renderMetadata(m Metadata) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal assignment metadata: %w", err)
	}
	return metadataOpen + string(data) + metadataClose, nil
}

// ParseMetadata extracts the metadata block from a previously posted
// assignment comment.
func ParseMetadata(body string) (*Metadata, error) {
	start := strings.Index(body, metadataOpen)
	if start < 0 {
		return nil, fmt.Errorf("comment has no metadata block")
	}
	rest := body[start+len(metadataOpen):]
	end := strings.Index(rest, metadataClose)
	if end < 0 {
		return nil, fmt.Errorf("metadata block is unterminated")
	}

	var m Metadata
	if err := json.Unmarshal([]byte(rest[:end]), &m); err != nil {
		return nil, fmt.Errorf("failed to parse assignment metadata: %w", err)
	}
	return &m, nil
}

const tipsBlock = `<h3>Tips</h3>
<ul>
<li>Use <code>/stop</code> to release the task if you can no longer work on it.</li>
<li>Open a draft pull request early so reviewers can follow your progress.</li>
<li>Link the pull request to this issue with a closing keyword.</li>
</ul>`

// renderAssignmentComment builds the comment posted when a task is assigned:
// an optional staleness warning, the deadline, the payout wallet (or a nudge
// to register one), the tips block and the metadata footer.
func renderAssignmentComment(stale bool, deadline *time.Time, wallet string, meta Metadata) (string, error) {
	var b strings.Builder

	if stale {
		b.WriteString("> [!WARNING]\n> This task was created a while ago. Check with the maintainers that it is still relevant before starting work.\n\n")
	}

	b.WriteString("| | |\n|---|---|\n")
	if deadline != nil {
		fmt.Fprintf(&b, "| Deadline | %s |\n", deadline.Format(time.RFC1123))
	}
	if wallet != "" {
		fmt.Fprintf(&b, "| Beneficiary | %s |\n", wallet)
	} else {
		b.WriteString("| Beneficiary | register your wallet to receive payouts |\n")
	}
	b.WriteString("\n")

	b.WriteString(tipsBlock)
	b.WriteString("\n\n")

	footer, err := renderMetadata(meta)
	if err != nil {
		return "", err
	}
	b.WriteString(footer)

	return b.String(), nil
}
