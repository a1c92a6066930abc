package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/catalog-mapper/internal/engine"
	"github.com/Veraticus/catalog-mapper/internal/marketplace"
	"github.com/Veraticus/catalog-mapper/internal/model"
)

// ErrInputClosed is returned when input ends before a choice is made.
var ErrInputClosed = errors.New("input terminated")

// Action is the reviewer's answer to a pending decision.
type Action int

// Reviewer actions.
const (
	ActionPick Action = iota
	ActionCustom
	ActionSkip
)

// Choice is a reviewer's answer. TypeID and DescriptionCategoryID are set
// for ActionPick and ActionCustom; a nil DescriptionCategoryID falls back to
// the type id when the decision is resolved.
type Choice struct {
	DescriptionCategoryID *int64
	Action                Action
	TypeID                int64
}

// Prompter asks a human to settle pending decisions on the console.
type Prompter struct {
	writer    io.Writer
	reader    *LineReader
	threshold float64
}

// NewPrompter creates a prompter. Nil reader and writer default to stdin and
// stdout.
func NewPrompter(reader io.Reader, writer io.Writer, threshold float64) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader:    NewLineReader(reader),
		writer:    writer,
		threshold: threshold,
	}
}

// ReviewDecision shows up to five suggestions and reads the reviewer's
// choice: a suggestion number, 0 for custom ids or s to skip.
func (p *Prompter) ReviewDecision(ctx context.Context, d engine.DecisionDetails) (Choice, error) {
	if _, err := fmt.Fprintln(p.writer, RenderBox("Category decision", p.formatDecision(d))); err != nil {
		return Choice{}, fmt.Errorf("failed to write decision box: %w", err)
	}

	suggestions := d.Suggestions.TopN(engine.SuggestionCount)
	valid := make(map[string]int, len(suggestions))
	for i := range suggestions {
		valid[strconv.Itoa(i+1)] = i
	}

	for {
		input, err := p.prompt(ctx, fmt.Sprintf("Choose 1-%d, 0 for custom ids, s to skip", len(suggestions)))
		if err != nil {
			return Choice{}, err
		}

		switch choice := strings.ToLower(input); choice {
		case "s":
			return Choice{Action: ActionSkip}, nil
		case "0":
			return p.promptCustom(ctx)
		default:
			if i, ok := valid[choice]; ok {
				c := suggestions[i]
				return Choice{
					Action:                ActionPick,
					TypeID:                c.TypeID,
					DescriptionCategoryID: c.DescriptionCategoryID,
				}, nil
			}
		}

		p.warn("Invalid choice. Please try again.")
	}
}

func (p *Prompter) formatDecision(d engine.DecisionDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Offer:"), d.Name)
	fmt.Fprintf(&b, "%s %s\n", SubtleStyle.Render("Offer id:"), d.OfferID)
	fmt.Fprintf(&b, "%s %s (threshold %s)\n\n",
		SubtleStyle.Render("Best match:"),
		FormatScore(d.Similarity, p.threshold),
		formatPercent(p.threshold))

	for i, c := range d.Suggestions.TopN(engine.SuggestionCount) {
		fmt.Fprintf(&b, "  [%d] %s  %s  %s\n",
			i+1,
			c.TypeName,
			SubtleStyle.Render(fmt.Sprintf("type %d / category %s", c.TypeID, formatCategory(c))),
			FormatScore(c.Similarity, p.threshold))
	}
	b.WriteString("  [0] Enter ids manually\n")
	b.WriteString("  [s] Skip this offer")
	return b.String()
}

func (p *Prompter) promptCustom(ctx context.Context) (Choice, error) {
	typeID, err := p.promptID(ctx, "Type id", false)
	if err != nil {
		return Choice{}, err
	}

	categoryID, err := p.promptID(ctx, "Description category id (empty = type id)", true)
	if err != nil {
		return Choice{}, err
	}

	choice := Choice{Action: ActionCustom, TypeID: typeID}
	if categoryID != 0 {
		choice.DescriptionCategoryID = &categoryID
	}
	return choice, nil
}

// promptID reads a positive id. With optional set, an empty answer returns 0.
func (p *Prompter) promptID(ctx context.Context, label string, optional bool) (int64, error) {
	for {
		input, err := p.prompt(ctx, label)
		if err != nil {
			return 0, err
		}
		if input == "" && optional {
			return 0, nil
		}

		id, err := strconv.ParseInt(input, 10, 64)
		if err == nil && id > 0 {
			return id, nil
		}
		p.warn("Please enter a positive whole number.")
	}
}

func (p *Prompter) prompt(ctx context.Context, label string) (string, error) {
	if _, err := fmt.Fprint(p.writer, FormatPrompt(label)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	input, err := p.reader.ReadLine(ctx)
	if errors.Is(err, io.EOF) {
		return "", ErrInputClosed
	}
	return input, err
}

func (p *Prompter) warn(msg string) {
	if _, err := fmt.Fprintln(p.writer, FormatError(msg)); err != nil {
		slog.Warn("Failed to write error message", "error", err)
	}
}

// ShowStatus prints a one-box summary of a session.
func (p *Prompter) ShowStatus(st engine.Status) error {
	_, err := fmt.Fprintln(p.writer, RenderBox("Session", FormatStatus(st)))
	return err
}

// FormatStatus renders the counters of a session status.
func FormatStatus(st engine.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", st.Message)
	fmt.Fprintf(&b, "Offers considered: %d of %d\n", st.CurrentIndex, st.TotalToConsider)
	fmt.Fprintf(&b, "Items ready: %s\n", SuccessStyle.Render(strconv.Itoa(st.ItemsReady)))
	fmt.Fprintf(&b, "Auto-resolved: %d  By decision: %d\n",
		st.Stats[model.StateAutoResolved], st.Stats[model.StateResolvedByDecision])
	fmt.Fprintf(&b, "Skipped: missing fields %d, invalid %d, no candidates %d, by reviewer %d",
		st.Stats[model.StateSkippedFieldMissing],
		st.Stats[model.StateSkippedInvalid],
		st.Stats[model.StateSkippedNoCandidates],
		st.Stats[model.StateSkippedByUser])
	if st.Filtered > 0 {
		fmt.Fprintf(&b, "\nFiltered by keyword: %d", st.Filtered)
	}
	if st.TaskID != 0 {
		fmt.Fprintf(&b, "\nTask id: %d", st.TaskID)
	}
	if st.Error != "" {
		fmt.Fprintf(&b, "\n%s", FormatError(st.Error))
	}
	return b.String()
}

// Confirm asks a yes/no question; anything but y or yes is no.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	input, err := p.prompt(ctx, question+" [y/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(input) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// SubmissionProgress returns a marketplace batch callback that drives a
// progress bar over totalItems.
func SubmissionProgress(w io.Writer, totalItems int) func(marketplace.BatchResult) {
	bar := progressbar.NewOptions(totalItems,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Submitting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(w) }),
	)

	return func(r marketplace.BatchResult) {
		if r.Err != nil {
			bar.Describe(fmt.Sprintf("Batch %d/%d failed", r.Index+1, r.Total))
		} else {
			bar.Describe(fmt.Sprintf("Batch %d/%d task %d", r.Index+1, r.Total, r.TaskID))
		}
		_ = bar.Add(r.Items)
	}
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func formatCategory(c model.Candidate) string {
	if c.DescriptionCategoryID == nil {
		return "-"
	}
	return strconv.FormatInt(*c.DescriptionCategoryID, 10)
}
