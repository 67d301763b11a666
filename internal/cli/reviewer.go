package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Veraticus/spice-tagger/internal/catalog"
	"github.com/Veraticus/spice-tagger/internal/model"
)

// ReviewStats counts what happened during an interactive review.
type ReviewStats struct {
	Reviewed  int
	Accepted  int
	Corrected int
	Skipped   int
}

// Decision is the user's answer for one reviewed transaction.
type Decision struct {
	Tag     string
	Skipped bool
	// Corrected is set when the tag was not the one the engine proposed.
	Corrected bool
}

// Reviewer asks the user to settle predictions the engine could not decide.
type Reviewer struct {
	writer     io.Writer
	reader     *LineReader
	catalog    *catalog.Catalog
	recentTags []string
	stats      ReviewStats
	mu         sync.Mutex
}

// NewReviewer creates a reviewer reading answers from reader. Custom tags
// must exist in c.
func NewReviewer(reader io.Reader, writer io.Writer, c *catalog.Catalog) *Reviewer {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	if c == nil {
		c = catalog.Default()
	}

	return &Reviewer{
		reader:  NewLineReader(reader),
		writer:  writer,
		catalog: c,
	}
}

// Review shows one transaction with its prediction and returns the user's decision.
func (r *Reviewer) Review(ctx context.Context, tx model.Transaction, p model.Prediction) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	if _, err := fmt.Fprintln(r.writer, RenderBox("Review", r.formatTransaction(tx, p))); err != nil {
		return Decision{}, fmt.Errorf("failed to write review box: %w", err)
	}

	proposed, hasProposal := p.Category()
	suggestions := p.Suggestions()

	var options strings.Builder
	options.WriteString(FormatPrompt("Options:") + "\n")
	valid := make([]string, 0, len(suggestions)+3)
	if hasProposal {
		fmt.Fprintf(&options, "  [A] Accept %s\n", SuccessStyle.Render(proposed))
		valid = append(valid, "a")
	}
	for i, s := range suggestions {
		fmt.Fprintf(&options, "  [%d] %s %s\n", i+1, s.Category, FormatConfidence(s.Confidence))
		valid = append(valid, strconv.Itoa(i+1))
	}
	options.WriteString("  [C] Choose another tag\n")
	options.WriteString("  [S] Skip\n")
	valid = append(valid, "c", "s")

	if _, err := fmt.Fprintln(r.writer, options.String()); err != nil {
		return Decision{}, fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := r.promptChoice(ctx, "Choice", valid)
	if err != nil {
		return Decision{}, err
	}

	var decision Decision
	switch choice {
	case "a":
		decision = Decision{Tag: proposed}
	case "c":
		tag, err := r.promptTag(ctx)
		if err != nil {
			return Decision{}, err
		}
		decision = Decision{Tag: tag, Corrected: tag != proposed}
	case "s":
		decision = Decision{Skipped: true}
	default:
		idx, _ := strconv.Atoi(choice)
		tag := suggestions[idx-1].Category
		decision = Decision{Tag: tag, Corrected: hasProposal && tag != proposed}
	}

	r.record(decision)
	return decision, nil
}

// Stats returns a copy of the review counters.
func (r *Reviewer) Stats() ReviewStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Reviewer) record(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Reviewed++
	switch {
	case d.Skipped:
		r.stats.Skipped++
		return
	case d.Corrected:
		r.stats.Corrected++
	default:
		r.stats.Accepted++
	}

	for i, t := range r.recentTags {
		if t == d.Tag {
			r.recentTags = append(r.recentTags[:i], r.recentTags[i+1:]...)
			break
		}
	}
	r.recentTags = append([]string{d.Tag}, r.recentTags...)
	if len(r.recentTags) > 5 {
		r.recentTags = r.recentTags[:5]
	}
}

func (r *Reviewer) formatTransaction(tx model.Transaction, p model.Prediction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Payee:  %s\n", BoldStyle.Render(tx.Payee()))
	if tx.Name != "" && tx.Name != tx.Payee() {
		fmt.Fprintf(&b, "Raw:    %s\n", SubtleStyle.Render(tx.Name))
	}
	if !tx.Date.IsZero() {
		fmt.Fprintf(&b, "Date:   %s\n", tx.Date.Format("Jan 2, 2006"))
	}
	fmt.Fprintf(&b, "Amount: %.2f\n", tx.Amount)
	if category, ok := p.Category(); ok {
		fmt.Fprintf(&b, "Guess:  %s %s (%s)", category, FormatConfidence(p.Confidence()), p.Source())
	} else {
		fmt.Fprintf(&b, "Guess:  %s", SubtleStyle.Render(string(p.Source())))
	}
	return b.String()
}

func (r *Reviewer) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if _, err := fmt.Fprintf(r.writer, "%s: ", FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := r.reader.ReadLine(ctx)
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("input terminated")
			}
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(r.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

// promptTag reads a tag name, matching catalog names case-insensitively.
func (r *Reviewer) promptTag(ctx context.Context) (string, error) {
	r.mu.Lock()
	recent := append([]string(nil), r.recentTags...)
	r.mu.Unlock()

	var list strings.Builder
	if len(recent) > 0 {
		list.WriteString(FormatInfo("Recent: "+strings.Join(recent, ", ")) + "\n")
	}
	list.WriteString(SubtleStyle.Render("Tags: " + strings.Join(r.catalog.Names(), ", ")))
	if _, err := fmt.Fprintln(r.writer, list.String()); err != nil {
		return "", fmt.Errorf("failed to write tag list: %w", err)
	}

	for {
		if _, err := fmt.Fprint(r.writer, FormatPrompt("Tag")); err != nil {
			return "", fmt.Errorf("failed to write tag prompt: %w", err)
		}

		input, err := r.reader.ReadLine(ctx)
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("input terminated")
			}
			return "", err
		}

		for _, name := range r.catalog.Names() {
			if strings.EqualFold(name, input) {
				return name, nil
			}
		}

		if _, err := fmt.Fprintln(r.writer, FormatError(fmt.Sprintf("Unknown tag %q. Please try again.", input))); err != nil {
			slog.Warn("Failed to write unknown tag error", "error", err)
		}
	}
}
